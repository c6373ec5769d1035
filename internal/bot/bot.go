// Package bot wires the engines together: it implements the control
// API handed to the policy handler, routes external events into the
// two queues, and coordinates shutdown.
package bot

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Nicklason/tf2-automatic-sub001/internal/crafting"
	"github.com/Nicklason/tf2-automatic-sub001/internal/gamecoord"
	"github.com/Nicklason/tf2-automatic-sub001/internal/handler"
	"github.com/Nicklason/tf2-automatic-sub001/internal/inventory"
	"github.com/Nicklason/tf2-automatic-sub001/internal/jsonl"
	"github.com/Nicklason/tf2-automatic-sub001/internal/marketplace"
	"github.com/Nicklason/tf2-automatic-sub001/internal/offers"
	"github.com/Nicklason/tf2-automatic-sub001/internal/persist"
	"github.com/Nicklason/tf2-automatic-sub001/internal/shutdown"
	"github.com/Nicklason/tf2-automatic-sub001/internal/throttle"
	"github.com/Nicklason/tf2-automatic-sub001/internal/tradeoffer"
	"github.com/Nicklason/tf2-automatic-sub001/internal/websession"
)

// Deps are the collaborators the bot is assembled from. Listings may
// be nil when the marketplace integration is disabled.
type Deps struct {
	Trades   *tradeoffer.Client
	Web      *websession.Session
	GC       *gamecoord.Session
	Inv      *inventory.Store
	Files    *persist.Store
	Listings *marketplace.Registry
	Events   *jsonl.Writer

	AppID uint32
}

type Bot struct {
	deps  Deps
	reg   *handler.Registry
	bound *handler.Bound

	throttle *throttle.Throttle
	craftQ   *crafting.Queue
	offerQ   *offers.Queue

	ctx    context.Context
	cancel context.CancelFunc

	shutdownOnce sync.Once
	done         chan struct{}
}

// New binds the policy handler and assembles the engines. Binding
// failures are startup failures; the process should not continue.
func New(deps Deps, policy any) (*Bot, error) {
	b := &Bot{
		deps: deps,
		reg:  handler.NewRegistry(),
		done: make(chan struct{}),
	}

	bound, err := b.reg.Bind(policy)
	if err != nil {
		return nil, err
	}
	b.bound = bound

	b.throttle = throttle.New(throttle.Options{
		OnChange: func(attempts []time.Time) {
			b.bound.OnLoginAttempts(attempts)
		},
	})

	b.craftQ = crafting.New(deps.GC, deps.Inv, bound, crafting.Options{AppID: deps.AppID})
	b.offerQ = offers.New(deps.Trades, deps.Trades, deps.Web, bound, offers.Options{})

	return b, nil
}

// Start restores persisted state, launches the queues, and hands
// control to the policy. It returns once the bot is running.
func (b *Bot) Start(ctx context.Context) {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.restoreState()

	b.craftQ.Start(b.ctx)
	b.offerQ.Start(b.ctx)
	if b.deps.Listings != nil {
		b.deps.Listings.Start(b.ctx)
	}

	b.bound.OnRun(b)
	b.logEvent(botLogEvent{Event: "start"})
	b.bound.OnReady()
}

// Done is closed when shutdown has fully drained.
func (b *Bot) Done() <-chan struct{} { return b.done }

func (b *Bot) restoreState() {
	attempts, found, err := b.deps.Files.ReadLoginAttempts()
	if err != nil {
		log.Printf("[warn] restore login attempts: %v", err)
	} else if found {
		b.throttle.SetAttempts(attempts)
	}

	pd, found, err := b.deps.Files.ReadPollData()
	if err != nil {
		log.Printf("[warn] restore poll data: %v", err)
	} else if found {
		b.bound.OnPollData(pd)
	}
}

// BeforeLogin applies the login throttle: it notifies the policy and
// sleeps out any required backoff, then records the attempt.
func (b *Bot) BeforeLogin(ctx context.Context) error {
	if wait := b.throttle.Wait(); wait > 0 {
		b.bound.OnLoginThrottle(wait)
		b.logEvent(botLogEvent{Event: "login_throttled", WaitMs: wait.Milliseconds()})
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	b.throttle.NewAttempt()
	return nil
}

// Event entrypoints, called by the session/client layer.

func (b *Bot) HandleLoginSuccess() {
	b.logEvent(botLogEvent{Event: "login_ok"})
	b.deps.Web.NotifyRestored()
	b.bound.OnLoginSuccess()
}

func (b *Bot) HandleLoginFailure(err error) {
	b.logEvent(botLogEvent{Event: "login_failed", Err: errString(err)})
	b.bound.OnLoginFailure(err)
}

func (b *Bot) HandleLoginKey(key string) {
	b.deps.Files.SaveLoginKey(key)
	b.bound.OnLoginKey(key)
}

func (b *Bot) HandleNewOffer(offer *tradeoffer.Offer) {
	if offer == nil {
		return
	}
	b.logEvent(botLogEvent{Event: "offer_received", OfferID: offer.ID, Partner: offer.Partner})
	b.offerQ.Enqueue(offer)
}

func (b *Bot) HandleOfferChanged(offer *tradeoffer.Offer, oldState tradeoffer.State) {
	if offer == nil {
		return
	}
	b.logEvent(botLogEvent{
		Event:    "offer_changed",
		OfferID:  offer.ID,
		State:    offer.State.String(),
		OldState: oldState.String(),
	})
	b.bound.OnTradeOfferUpdated(offer, oldState)
}

func (b *Bot) HandleMessage(partner, message string) {
	b.bound.OnMessage(partner, message)
}

func (b *Bot) HandleFriendRelationship(partner string, relationship int) {
	b.bound.OnFriendRelationship(partner, relationship)
}

func (b *Bot) HandleHeartbeat(err error) {
	b.bound.OnHeartbeat(err)
}

func (b *Bot) HandleSchemaUpdated() {
	b.bound.OnSchemaUpdated()
}

func (b *Bot) HandleActionsSettled(settled marketplace.ActionsSettled) {
	b.bound.OnActionsSettled(settled)
	if b.deps.Listings != nil {
		b.bound.OnListingsChanged(len(b.deps.Listings.Listings()))
	}
}

func (b *Bot) HandleInventoryUpdated() {
	b.bound.OnInventoryUpdated(b.deps.Inv.Len())
}

// Control API. The policy handler reaches the engines only through
// these methods.

var _ handler.Control = (*Bot)(nil)

// Shutdown drains listings and file writes, then releases the process.
// Safe to call more than once; only the first call does anything.
func (b *Bot) Shutdown() {
	b.shutdownOnce.Do(func() {
		go b.runShutdown()
	})
}

func (b *Bot) runShutdown() {
	log.Printf("Shutting down…")
	b.logEvent(botLogEvent{Event: "shutdown"})

	handlerDone := make(chan struct{})
	var once sync.Once
	b.bound.OnShutdown(func() { once.Do(func() { close(handlerDone) }) })
	select {
	case <-handlerDone:
	case <-time.After(10 * time.Second):
		log.Printf("[warn] shutdown: policy handler did not finish in time")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if b.deps.Listings != nil {
		coord := shutdown.New(b.deps.Listings, b.deps.Files, 0)
		if err := coord.Run(drainCtx); err != nil {
			log.Printf("[warn] shutdown drain: %v", err)
		}
	} else {
		coord := shutdown.New(noListings{}, b.deps.Files, 0)
		if err := coord.Run(drainCtx); err != nil {
			log.Printf("[warn] shutdown drain: %v", err)
		}
	}

	if b.cancel != nil {
		b.cancel()
	}
	close(b.done)
}

func (b *Bot) AcceptOffer(ctx context.Context, id string) error {
	err := b.deps.Trades.AcceptOffer(ctx, id)
	b.logEvent(botLogEvent{Event: "offer_accept", OfferID: id, Ok: err == nil, Err: errString(err)})
	return err
}

func (b *Bot) DeclineOffer(ctx context.Context, id string) error {
	err := b.deps.Trades.DeclineOffer(ctx, id)
	b.logEvent(botLogEvent{Event: "offer_decline", OfferID: id, Ok: err == nil, Err: errString(err)})
	return err
}

func (b *Bot) SendOffer(ctx context.Context, partner, message string, give, receive []uint64) (string, error) {
	id, err := b.deps.Trades.SendOffer(ctx, partner, message, give, receive)
	b.logEvent(botLogEvent{Event: "offer_send", OfferID: id, Partner: partner, Ok: err == nil, Err: errString(err)})
	return id, err
}

func (b *Bot) GetInventory() *inventory.Store { return b.deps.Inv }

func (b *Bot) SmeltMetal(defindex, amount int) {
	b.logEvent(botLogEvent{Event: "smelt", Defindex: defindex, Amount: amount})
	b.craftQ.SmeltMetal(defindex, amount)
}

func (b *Bot) CombineMetal(defindex, amount int) {
	b.logEvent(botLogEvent{Event: "combine", Defindex: defindex, Amount: amount})
	b.craftQ.CombineMetal(defindex, amount)
}

func (b *Bot) UseItem(assetID uint64) {
	b.logEvent(botLogEvent{Event: "use", AssetID: assetID})
	b.craftQ.UseItem(assetID)
}

func (b *Bot) SetPollData(pd persist.PollData) {
	b.deps.Files.SavePollData(pd)
}

func (b *Bot) SetLoginAttempts(attempts []time.Time) {
	b.throttle.SetAttempts(attempts)
}

// noListings is the drain target when the marketplace integration is
// disabled.
type noListings struct{}

func (noListings) Listings() []marketplace.Listing { return nil }
func (noListings) RemoveListing(string)            {}
func (noListings) ClearPendingActions()            {}
func (noListings) IsProcessingActions() bool       { return false }
func (noListings) SubscribeActionsSettled() (<-chan marketplace.ActionsSettled, func()) {
	return nil, func() {}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
