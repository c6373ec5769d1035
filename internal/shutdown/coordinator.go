// Package shutdown drains the marketplace listings and waits for
// pending file writes before the process exits.
package shutdown

import (
	"context"
	"log"
	"time"

	"github.com/Nicklason/tf2-automatic-sub001/internal/marketplace"
)

const DefaultFlushPoll = 100 * time.Millisecond

// Listings is the slice of the listing registry the coordinator drives.
type Listings interface {
	Listings() []marketplace.Listing
	RemoveListing(id string)
	ClearPendingActions()
	IsProcessingActions() bool
	SubscribeActionsSettled() (<-chan marketplace.ActionsSettled, func())
}

// Files exposes the persistence collaborator's write-in-flight flag.
type Files interface {
	IsWritingToFiles() bool
}

type Coordinator struct {
	listings  Listings
	files     Files
	flushPoll time.Duration
}

func New(listings Listings, files Files, flushPoll time.Duration) *Coordinator {
	if flushPoll <= 0 {
		flushPoll = DefaultFlushPoll
	}
	return &Coordinator{listings: listings, files: files, flushPoll: flushPoll}
}

// Run drains listings and pending file writes, returning when it is
// safe to exit. ctx bounds the whole drain; on cancellation the error
// is ctx.Err() and the caller exits anyway.
func (c *Coordinator) Run(ctx context.Context) error {
	// No new listings while stopping.
	c.listings.ClearPendingActions()

	if err := c.drainListings(ctx); err != nil {
		return err
	}
	return c.awaitFileFlush(ctx)
}

func (c *Coordinator) drainListings(ctx context.Context) error {
	current := c.listings.Listings()
	if len(current) == 0 && !c.listings.IsProcessingActions() {
		return nil
	}

	settled, cancel := c.listings.SubscribeActionsSettled()
	defer cancel()

	c.removeAll(current)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-settled:
			remaining := c.listings.Listings()
			if len(remaining) == 0 {
				if c.listings.IsProcessingActions() {
					continue
				}
				return nil
			}
			// Partial application; re-issue removal for the leftovers.
			log.Printf("[info] shutdown: %d listings still up, re-removing", len(remaining))
			c.removeAll(remaining)
		}
	}
}

func (c *Coordinator) removeAll(listings []marketplace.Listing) {
	for _, l := range listings {
		c.listings.RemoveListing(l.ID)
	}
}

func (c *Coordinator) awaitFileFlush(ctx context.Context) error {
	t := time.NewTicker(c.flushPoll)
	defer t.Stop()
	for {
		if !c.files.IsWritingToFiles() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
