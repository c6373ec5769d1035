// Package websession tracks the community web session and broadcasts a
// "session restored" signal whenever a re-login completes, so waiters
// (the offer queue, mostly) can retry authenticated calls.
package websession

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Refresher performs the actual re-login against the platform.
type Refresher func(ctx context.Context) error

type Session struct {
	refresh Refresher

	mu         sync.Mutex
	refreshing bool
	nextSub    int
	subs       map[int]chan struct{}
	restoredAt time.Time
}

func New(refresh Refresher) *Session {
	return &Session{
		refresh: refresh,
		subs:    make(map[int]chan struct{}),
	}
}

// SubscribeRestored returns a channel that receives one signal the next
// time the session is restored, and a cancel func that must be called
// when the waiter loses interest.
func (s *Session) SubscribeRestored() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

// RequestRefresh kicks off a re-login unless one is already running.
// The restored signal is broadcast on success.
func (s *Session) RequestRefresh(ctx context.Context) {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return
	}
	s.refreshing = true
	s.mu.Unlock()

	go func() {
		err := s.doRefresh(ctx)

		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()

		if err != nil {
			log.Printf("[warn] web session refresh failed: %v", err)
			return
		}
		s.NotifyRestored()
	}()
}

func (s *Session) doRefresh(ctx context.Context) error {
	if s.refresh == nil {
		return fmt.Errorf("no refresher configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.refresh(ctx)
}

// NotifyRestored broadcasts the restored signal to every waiter. It is
// also called directly by the login path after a fresh login.
func (s *Session) NotifyRestored() {
	s.mu.Lock()
	s.restoredAt = time.Now()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}

// RestoredAt reports when the session was last restored.
func (s *Session) RestoredAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoredAt
}
