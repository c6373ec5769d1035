package handler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Nicklason/tf2-automatic-sub001/internal/crafting"
	"github.com/Nicklason/tf2-automatic-sub001/internal/inventory"
	"github.com/Nicklason/tf2-automatic-sub001/internal/marketplace"
	"github.com/Nicklason/tf2-automatic-sub001/internal/offers"
	"github.com/Nicklason/tf2-automatic-sub001/internal/persist"
	"github.com/Nicklason/tf2-automatic-sub001/internal/tradeoffer"
)

// Bound is the validated policy handler with every optional event
// resolved. It satisfies the engines' notifier contracts
// (crafting.Notifier, offers.Notifier).
type Bound struct {
	Handler

	onMessage               func(partner, message string)
	onFriendRelationship    func(partner string, relationship int)
	onOfferFetchError       func(id string, err error)
	onOfferAcceptError      func(id string, err error)
	onOfferDeclineError     func(id string, err error)
	onInventoryUpdated      func(count int)
	onCraftingCompleted     func(res crafting.CompletedCraft)
	onCraftingQueueComplete func()
	onPollData              func(pd persist.PollData)
	onSchemaUpdated         func()
	onHeartbeat             func(err error)
	onListingsChanged       func(count int)
	onActionsSettled        func(settled marketplace.ActionsSettled)
}

func (b *Bound) OnMessage(partner, message string)            { b.onMessage(partner, message) }
func (b *Bound) OnFriendRelationship(partner string, rel int) { b.onFriendRelationship(partner, rel) }
func (b *Bound) OnOfferFetchError(id string, err error)       { b.onOfferFetchError(id, err) }
func (b *Bound) OnOfferAcceptError(id string, err error)      { b.onOfferAcceptError(id, err) }
func (b *Bound) OnOfferDeclineError(id string, err error)     { b.onOfferDeclineError(id, err) }
func (b *Bound) OnInventoryUpdated(count int)                 { b.onInventoryUpdated(count) }
func (b *Bound) OnCraftingCompleted(res crafting.CompletedCraft) {
	b.onCraftingCompleted(res)
}
func (b *Bound) OnCraftingQueueCompleted()      { b.onCraftingQueueComplete() }
func (b *Bound) OnPollData(pd persist.PollData) { b.onPollData(pd) }
func (b *Bound) OnSchemaUpdated()               { b.onSchemaUpdated() }
func (b *Bound) OnHeartbeat(err error)          { b.onHeartbeat(err) }
func (b *Bound) OnListingsChanged(count int)    { b.onListingsChanged(count) }
func (b *Bound) OnActionsSettled(settled marketplace.ActionsSettled) {
	b.onActionsSettled(settled)
}

// Registry holds the process-wide policy handler. It is bound exactly
// once at startup; a second bind is an error.
type Registry struct {
	mu    sync.Mutex
	bound *Bound
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Handler returns the bound policy handler, or nil before Bind.
func (r *Registry) Handler() *Bound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}

// Bind validates the candidate policy and installs it. Validation
// fails when a required event is missing or when the candidate defines
// one of the engine's control functions.
func (r *Registry) Bind(candidate any) (*Bound, error) {
	if candidate == nil {
		return nil, fmt.Errorf("handler: no policy given")
	}

	if missing := missingRequired(candidate); len(missing) > 0 {
		return nil, fmt.Errorf("handler: missing required events: %s", strings.Join(missing, ", "))
	}
	if clashes := controlCollisions(candidate); len(clashes) > 0 {
		return nil, fmt.Errorf("handler: policy must not define control functions: %s", strings.Join(clashes, ", "))
	}

	h := candidate.(Handler)
	b := &Bound{
		Handler:                 h,
		onMessage:               func(string, string) {},
		onFriendRelationship:    func(string, int) {},
		onOfferFetchError:       func(string, error) {},
		onOfferAcceptError:      func(string, error) {},
		onOfferDeclineError:     func(string, error) {},
		onInventoryUpdated:      func(int) {},
		onCraftingCompleted:     func(crafting.CompletedCraft) {},
		onCraftingQueueComplete: func() {},
		onPollData:              func(persist.PollData) {},
		onSchemaUpdated:         func() {},
		onHeartbeat:             func(error) {},
		onListingsChanged:       func(int) {},
		onActionsSettled:        func(marketplace.ActionsSettled) {},
	}

	if o, ok := candidate.(MessageObserver); ok {
		b.onMessage = o.OnMessage
	}
	if o, ok := candidate.(FriendObserver); ok {
		b.onFriendRelationship = o.OnFriendRelationship
	}
	if o, ok := candidate.(OfferFetchErrorObserver); ok {
		b.onOfferFetchError = o.OnOfferFetchError
	}
	if o, ok := candidate.(OfferAcceptErrorObserver); ok {
		b.onOfferAcceptError = o.OnOfferAcceptError
	}
	if o, ok := candidate.(OfferDeclineErrorObserver); ok {
		b.onOfferDeclineError = o.OnOfferDeclineError
	}
	if o, ok := candidate.(InventoryObserver); ok {
		b.onInventoryUpdated = o.OnInventoryUpdated
	}
	if o, ok := candidate.(CraftingObserver); ok {
		b.onCraftingCompleted = o.OnCraftingCompleted
	}
	if o, ok := candidate.(CraftingQueueObserver); ok {
		b.onCraftingQueueComplete = o.OnCraftingQueueCompleted
	}
	if o, ok := candidate.(PollDataObserver); ok {
		b.onPollData = o.OnPollData
	}
	if o, ok := candidate.(SchemaObserver); ok {
		b.onSchemaUpdated = o.OnSchemaUpdated
	}
	if o, ok := candidate.(HeartbeatObserver); ok {
		b.onHeartbeat = o.OnHeartbeat
	}
	if o, ok := candidate.(ListingsObserver); ok {
		b.onListingsChanged = o.OnListingsChanged
	}
	if o, ok := candidate.(ActionsObserver); ok {
		b.onActionsSettled = o.OnActionsSettled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound != nil {
		return nil, fmt.Errorf("handler: policy already bound")
	}
	r.bound = b
	return b, nil
}

// missingRequired probes the required events one by one so the startup
// error names everything that is absent, not just the first.
func missingRequired(h any) []string {
	var missing []string
	if _, ok := h.(interface{ OnRun(ctrl Control) }); !ok {
		missing = append(missing, "OnRun")
	}
	if _, ok := h.(interface{ OnReady() }); !ok {
		missing = append(missing, "OnReady")
	}
	if _, ok := h.(interface{ OnShutdown(done func()) }); !ok {
		missing = append(missing, "OnShutdown")
	}
	if _, ok := h.(interface{ OnLoginThrottle(wait time.Duration) }); !ok {
		missing = append(missing, "OnLoginThrottle")
	}
	if _, ok := h.(interface{ OnLoginSuccess() }); !ok {
		missing = append(missing, "OnLoginSuccess")
	}
	if _, ok := h.(interface{ OnLoginFailure(err error) }); !ok {
		missing = append(missing, "OnLoginFailure")
	}
	if _, ok := h.(interface{ OnLoginKey(key string) }); !ok {
		missing = append(missing, "OnLoginKey")
	}
	if _, ok := h.(interface {
		OnNewTradeOffer(offer *tradeoffer.Offer, done func(offers.Action))
	}); !ok {
		missing = append(missing, "OnNewTradeOffer")
	}
	if _, ok := h.(interface {
		OnTradeOfferUpdated(offer *tradeoffer.Offer, oldState tradeoffer.State)
	}); !ok {
		missing = append(missing, "OnTradeOfferUpdated")
	}
	if _, ok := h.(interface{ OnLoginAttempts(attempts []time.Time) }); !ok {
		missing = append(missing, "OnLoginAttempts")
	}
	return missing
}

// controlCollisions reports the control-function signatures the
// candidate defines itself. A policy carrying its own SmeltMetal (or
// any other control function) would shadow the engine's, so it is
// rejected at startup.
func controlCollisions(h any) []string {
	var clashes []string
	if _, ok := h.(interface{ Shutdown() }); ok {
		clashes = append(clashes, "Shutdown")
	}
	if _, ok := h.(interface {
		AcceptOffer(ctx context.Context, id string) error
	}); ok {
		clashes = append(clashes, "AcceptOffer")
	}
	if _, ok := h.(interface {
		DeclineOffer(ctx context.Context, id string) error
	}); ok {
		clashes = append(clashes, "DeclineOffer")
	}
	if _, ok := h.(interface {
		SendOffer(ctx context.Context, partner, message string, give, receive []uint64) (string, error)
	}); ok {
		clashes = append(clashes, "SendOffer")
	}
	if _, ok := h.(interface{ GetInventory() *inventory.Store }); ok {
		clashes = append(clashes, "GetInventory")
	}
	if _, ok := h.(interface{ SmeltMetal(defindex, amount int) }); ok {
		clashes = append(clashes, "SmeltMetal")
	}
	if _, ok := h.(interface{ CombineMetal(defindex, amount int) }); ok {
		clashes = append(clashes, "CombineMetal")
	}
	if _, ok := h.(interface{ UseItem(assetID uint64) }); ok {
		clashes = append(clashes, "UseItem")
	}
	if _, ok := h.(interface{ SetPollData(pd persist.PollData) }); ok {
		clashes = append(clashes, "SetPollData")
	}
	if _, ok := h.(interface {
		SetLoginAttempts(attempts []time.Time)
	}); ok {
		clashes = append(clashes, "SetLoginAttempts")
	}
	return clashes
}
