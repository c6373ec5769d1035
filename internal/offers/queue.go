// Package offers serializes incoming trade offers: one fetch and one
// policy evaluation at a time, with bounded retry around the fetch and
// transparent re-authentication when the web session expires.
package offers

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Nicklason/tf2-automatic-sub001/internal/tradeoffer"
)

const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 5 * time.Second
	DefaultReauthWait  = 10 * time.Second
)

// Action is the policy handler's verdict on an offer.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
	ActionSkip    Action = "skip"
)

// Getter fetches the authoritative state of an offer.
type Getter interface {
	GetOffer(ctx context.Context, id string) (*tradeoffer.Offer, error)
}

// Actor performs the accept/decline the policy decided on.
type Actor interface {
	AcceptOffer(ctx context.Context, id string) error
	DeclineOffer(ctx context.Context, id string) error
}

// SessionWaiter exposes the web-session refresh trigger and the
// restored signal.
type SessionWaiter interface {
	SubscribeRestored() (<-chan struct{}, func())
	RequestRefresh(ctx context.Context)
}

// Notifier is the policy-handler surface the queue drives.
type Notifier interface {
	OnNewTradeOffer(offer *tradeoffer.Offer, done func(Action))
	OnOfferFetchError(id string, err error)
	OnOfferAcceptError(id string, err error)
	OnOfferDeclineError(id string, err error)
}

type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	ReauthWait  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.ReauthWait <= 0 {
		o.ReauthWait = DefaultReauthWait
	}
	return o
}

type entry struct {
	id string
	// offer is non-nil only when it was attached at enqueue time into
	// an empty queue; the processor then skips the initial fetch.
	offer *tradeoffer.Offer
}

// Queue is the sequential trade-offer processor.
type Queue struct {
	opts    Options
	getter  Getter
	actor   Actor
	session SessionWaiter
	notify  Notifier

	mu      sync.Mutex
	ids     map[string]struct{}
	entries []entry

	wake chan struct{}
}

func New(getter Getter, actor Actor, session SessionWaiter, notify Notifier, opts Options) *Queue {
	return &Queue{
		opts:    opts.withDefaults(),
		getter:  getter,
		actor:   actor,
		session: session,
		notify:  notify,
		ids:     make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Start launches the driver goroutine.
func (q *Queue) Start(ctx context.Context) {
	go q.run(ctx)
	q.signal()
}

// Enqueue adds an offer to the queue. A second enqueue of the same id
// is a no-op, so duplicate notifications never reach the policy twice.
// When the queue is empty the already-fetched offer object is carried
// along and processed without a re-fetch.
func (q *Queue) Enqueue(offer *tradeoffer.Offer) {
	if offer == nil || offer.ID == "" {
		return
	}

	q.mu.Lock()
	if _, dup := q.ids[offer.ID]; dup {
		q.mu.Unlock()
		return
	}
	q.ids[offer.ID] = struct{}{}
	e := entry{id: offer.ID}
	if len(q.entries) == 0 {
		e.offer = offer
	}
	q.entries = append(q.entries, e)
	q.mu.Unlock()

	q.signal()
}

// Len reports the number of queued offers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
		q.process(ctx)
	}
}

func (q *Queue) process(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		q.mu.Lock()
		if len(q.entries) == 0 {
			q.mu.Unlock()
			return
		}
		e := q.entries[0]
		// A prefetched offer object is only trusted once.
		q.entries[0].offer = nil
		q.mu.Unlock()

		offer, err := q.fetch(ctx, e)
		switch {
		case err == nil && offer == nil:
			// Offer no longer exists; a benign completion.
			q.complete(e.id)
		case err != nil:
			q.notify.OnOfferFetchError(e.id, err)
			q.requeueOrDrop(e.id)
		case !offer.State.Actionable():
			log.Printf("[info] offer %s is %s, nothing to do", offer.ID, offer.State)
			q.complete(e.id)
		default:
			q.evaluate(ctx, offer)
			q.complete(e.id)
		}
	}
}

// fetch returns the authoritative offer, retrying transient failures
// with growing delay. A nil offer with nil error means the offer is
// gone for good.
func (q *Queue) fetch(ctx context.Context, e entry) (*tradeoffer.Offer, error) {
	if e.offer != nil {
		return e.offer, nil
	}

	var lastErr error
	for attempt := 1; attempt <= q.opts.MaxAttempts; attempt++ {
		off, err := q.getter.GetOffer(ctx, e.id)
		if err == nil {
			return off, nil
		}
		if errors.Is(err, tradeoffer.ErrOfferGone) {
			return nil, nil
		}
		lastErr = err

		if errors.Is(err, tradeoffer.ErrNotLoggedIn) {
			// Wait for the session to come back, then retry with no
			// extra delay. The attempt still counts.
			q.awaitSession(ctx)
			continue
		}
		if attempt < q.opts.MaxAttempts {
			if !sleepCtx(ctx, q.opts.RetryDelay*time.Duration(attempt)) {
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// awaitSession kicks off a re-login and waits for the restored signal,
// bounded by ReauthWait. Subscribing before the trigger means a refresh
// that completes instantly is never missed.
func (q *Queue) awaitSession(ctx context.Context) {
	restored, cancel := q.session.SubscribeRestored()
	defer cancel()

	q.session.RequestRefresh(ctx)

	t := time.NewTimer(q.opts.ReauthWait)
	defer t.Stop()
	select {
	case <-restored:
	case <-t.C:
	case <-ctx.Done():
	}
}

// evaluate hands the offer to the policy and blocks until its done
// continuation fires, then carries out the decided action. done is
// idempotent; only its first call counts.
func (q *Queue) evaluate(ctx context.Context, offer *tradeoffer.Offer) {
	doneCh := make(chan Action, 1)
	var once sync.Once
	done := func(a Action) {
		once.Do(func() { doneCh <- a })
	}

	q.notify.OnNewTradeOffer(offer, done)

	var action Action
	select {
	case action = <-doneCh:
	case <-ctx.Done():
		return
	}

	switch action {
	case ActionAccept:
		if err := q.actor.AcceptOffer(ctx, offer.ID); err != nil {
			q.notify.OnOfferAcceptError(offer.ID, err)
		}
	case ActionDecline:
		if err := q.actor.DeclineOffer(ctx, offer.ID); err != nil {
			q.notify.OnOfferDeclineError(offer.ID, err)
		}
	case ActionSkip:
	default:
		log.Printf("[warn] offer %s: unknown action %q, skipping", offer.ID, action)
	}
}

// complete removes an offer from the queue for good.
func (q *Queue) complete(id string) {
	q.mu.Lock()
	q.removeLocked(id)
	delete(q.ids, id)
	q.mu.Unlock()
}

// requeueOrDrop moves a persistently failing offer to the back of the
// queue so the others are not starved. If it was the only entry it is
// dropped instead, avoiding a busy loop of one.
func (q *Queue) requeueOrDrop(id string) {
	q.mu.Lock()
	q.removeLocked(id)
	if len(q.entries) > 0 {
		q.entries = append(q.entries, entry{id: id})
	} else {
		delete(q.ids, id)
	}
	q.mu.Unlock()
}

func (q *Queue) removeLocked(id string) {
	for i := range q.entries {
		if q.entries[i].id == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
