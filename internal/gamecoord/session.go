// Package gamecoord tracks the game-coordinator session layered on top
// of the base client connection and fans its events out to one-shot
// subscribers. Crafting and item-use requests go through here.
package gamecoord

import (
	"fmt"
	"sync"

	"github.com/Nicklason/tf2-automatic-sub001/internal/inventory"
)

// Transport is the outbound half of the underlying client connection.
type Transport interface {
	SetPlayingGame(appID uint32) error
	Craft(assetIDs []uint64) error
	UseItem(assetID uint64) error
}

// CraftResult is the coordinator's answer to a craft request.
type CraftResult struct {
	Recipe      int
	ItemsGained []inventory.Item
}

type Session struct {
	transport Transport

	mu        sync.Mutex
	connected bool
	appID     uint32
	nextSub   int

	connSubs    map[int]chan struct{}
	discSubs    map[int]chan struct{}
	craftSubs   map[int]chan CraftResult
	removedSubs map[int]chan uint64
}

func New(transport Transport) *Session {
	return &Session{
		transport:   transport,
		connSubs:    make(map[int]chan struct{}),
		discSubs:    make(map[int]chan struct{}),
		craftSubs:   make(map[int]chan CraftResult),
		removedSubs: make(map[int]chan uint64),
	}
}

// IsConnectedToGame reports whether the GC session for appID is up.
func (s *Session) IsConnectedToGame(appID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && s.appID == appID
}

// RequestGame switches the client's active game, which starts (or tears
// down, for appID 0) the GC handshake.
func (s *Session) RequestGame(appID uint32) error {
	if s.transport == nil {
		return fmt.Errorf("gamecoord: no transport")
	}
	return s.transport.SetPlayingGame(appID)
}

// Craft submits a craft request for the given asset ids.
func (s *Session) Craft(assetIDs []uint64) error {
	if len(assetIDs) == 0 {
		return fmt.Errorf("gamecoord: craft with no inputs")
	}
	if s.transport == nil {
		return fmt.Errorf("gamecoord: no transport")
	}
	return s.transport.Craft(assetIDs)
}

// UseItem submits a use (consume) request for one asset.
func (s *Session) UseItem(assetID uint64) error {
	if s.transport == nil {
		return fmt.Errorf("gamecoord: no transport")
	}
	return s.transport.UseItem(assetID)
}

// SubscribeConnected delivers one signal per GC connect. The returned
// cancel must be called once the waiter is done.
func (s *Session) SubscribeConnected() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.connSubs[id] = ch
	return ch, func() {
		s.mu.Lock()
		delete(s.connSubs, id)
		s.mu.Unlock()
	}
}

// SubscribeDisconnected delivers one signal per GC disconnect.
func (s *Session) SubscribeDisconnected() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.discSubs[id] = ch
	return ch, func() {
		s.mu.Lock()
		delete(s.discSubs, id)
		s.mu.Unlock()
	}
}

// SubscribeCraftComplete delivers craft results.
func (s *Session) SubscribeCraftComplete() (<-chan CraftResult, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan CraftResult, 4)
	s.craftSubs[id] = ch
	return ch, func() {
		s.mu.Lock()
		delete(s.craftSubs, id)
		s.mu.Unlock()
	}
}

// SubscribeItemRemoved delivers asset ids removed from the backpack.
func (s *Session) SubscribeItemRemoved() (<-chan uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan uint64, 4)
	s.removedSubs[id] = ch
	return ch, func() {
		s.mu.Lock()
		delete(s.removedSubs, id)
		s.mu.Unlock()
	}
}

// HandleConnected is called by the client layer when the GC handshake
// for appID completes.
func (s *Session) HandleConnected(appID uint32) {
	s.mu.Lock()
	s.connected = true
	s.appID = appID
	for _, ch := range s.connSubs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}

// HandleDisconnected is called by the client layer when the GC session drops.
func (s *Session) HandleDisconnected() {
	s.mu.Lock()
	s.connected = false
	for _, ch := range s.discSubs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}

// HandleCraftResult is called by the client layer when the coordinator
// acknowledges a craft.
func (s *Session) HandleCraftResult(res CraftResult) {
	s.mu.Lock()
	for _, ch := range s.craftSubs {
		select {
		case ch <- res:
		default:
		}
	}
	s.mu.Unlock()
}

// HandleItemRemoved is called by the client layer when an item leaves
// the backpack (consumed, traded away, deleted).
func (s *Session) HandleItemRemoved(assetID uint64) {
	s.mu.Lock()
	for _, ch := range s.removedSubs {
		select {
		case ch <- assetID:
		default:
		}
	}
	s.mu.Unlock()
}
