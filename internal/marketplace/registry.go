package marketplace

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// API is the remote listing surface the registry flushes against.
// *Client satisfies it; tests substitute a fake.
type API interface {
	CreateListings(ctx context.Context, listings []Listing) ([]Listing, error)
	DeleteListings(ctx context.Context, ids []string) error
}

// ActionsSettled describes one flushed action batch.
type ActionsSettled struct {
	BatchID string
	Created int
	Removed int
	Err     error
}

// Registry is the local view of the bot's listings plus a queue of
// pending create/remove actions, flushed in batches. Consumers observe
// batch completion through SubscribeActionsSettled.
type Registry struct {
	api           API
	flushInterval time.Duration

	mu            sync.Mutex
	listings      map[string]Listing
	pendingCreate []Listing
	pendingRemove []string
	processing    bool
	nextSub       int
	subs          map[int]chan ActionsSettled
}

func NewRegistry(api API, flushInterval time.Duration) *Registry {
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Registry{
		api:           api,
		flushInterval: flushInterval,
		listings:      make(map[string]Listing),
		subs:          make(map[int]chan ActionsSettled),
	}
}

// Start runs the flush loop until ctx is done.
func (r *Registry) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(r.flushInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Flush(ctx)
			}
		}
	}()
}

// Listings returns a copy of the current listing set.
func (r *Registry) Listings() []Listing {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Listing, 0, len(r.listings))
	for _, l := range r.listings {
		out = append(out, l)
	}
	return out
}

// CreateListing queues a listing for the next flush.
func (r *Registry) CreateListing(l Listing) {
	r.mu.Lock()
	r.pendingCreate = append(r.pendingCreate, l)
	r.mu.Unlock()
}

// RemoveListing queues a removal for the next flush.
func (r *Registry) RemoveListing(id string) {
	r.mu.Lock()
	r.pendingRemove = append(r.pendingRemove, id)
	r.mu.Unlock()
}

// RemoveAll queues removal of every current listing.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	for id := range r.listings {
		r.pendingRemove = append(r.pendingRemove, id)
	}
	r.mu.Unlock()
}

// ClearPendingActions drops queued creates. Used on shutdown so no new
// listings appear while the bot is stopping. Queued removals are kept.
func (r *Registry) ClearPendingActions() {
	r.mu.Lock()
	r.pendingCreate = nil
	r.mu.Unlock()
}

// IsProcessingActions reports whether a flush is in flight.
func (r *Registry) IsProcessingActions() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processing
}

// HasPendingActions reports whether anything is queued for the next flush.
func (r *Registry) HasPendingActions() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingCreate) > 0 || len(r.pendingRemove) > 0
}

// SubscribeActionsSettled delivers a notification per flushed batch.
func (r *Registry) SubscribeActionsSettled() (<-chan ActionsSettled, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan ActionsSettled, 4)
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Flush pushes queued actions to the marketplace. At most one flush
// runs at a time; a call while one is in flight is a no-op.
func (r *Registry) Flush(ctx context.Context) {
	r.mu.Lock()
	if r.processing || (len(r.pendingCreate) == 0 && len(r.pendingRemove) == 0) {
		r.mu.Unlock()
		return
	}
	r.processing = true
	creates := r.pendingCreate
	removes := r.pendingRemove
	r.pendingCreate = nil
	r.pendingRemove = nil
	r.mu.Unlock()

	settled := ActionsSettled{BatchID: uuid.NewString()}

	if len(removes) > 0 {
		if err := r.api.DeleteListings(ctx, removes); err != nil {
			log.Printf("[warn] listing batch %s: delete %d listings: %v", settled.BatchID, len(removes), err)
			settled.Err = err
		} else {
			settled.Removed = len(removes)
			r.mu.Lock()
			for _, id := range removes {
				delete(r.listings, id)
			}
			r.mu.Unlock()
		}
	}

	if len(creates) > 0 {
		created, err := r.api.CreateListings(ctx, creates)
		if err != nil {
			log.Printf("[warn] listing batch %s: create %d listings: %v", settled.BatchID, len(creates), err)
			if settled.Err == nil {
				settled.Err = err
			}
		} else {
			settled.Created = len(created)
			r.mu.Lock()
			for _, l := range created {
				if l.ID != "" {
					r.listings[l.ID] = l
				}
			}
			r.mu.Unlock()
		}
	}

	r.mu.Lock()
	r.processing = false
	for _, ch := range r.subs {
		select {
		case ch <- settled:
		default:
		}
	}
	r.mu.Unlock()
}

// SetListings replaces the local listing view, used when resyncing from
// the marketplace's authoritative list.
func (r *Registry) SetListings(listings []Listing) {
	r.mu.Lock()
	m := make(map[string]Listing, len(listings))
	for _, l := range listings {
		if l.ID != "" {
			m[l.ID] = l
		}
	}
	r.listings = m
	r.mu.Unlock()
}
