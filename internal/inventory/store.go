package inventory

import (
	"sort"
	"sync"
)

// Item is one concrete asset in the bot's inventory. AssetID is unique
// per instance; SKU identifies the kind of item for stock-keeping.
type Item struct {
	AssetID  uint64 `json:"assetid"`
	Defindex int    `json:"defindex"`
	SKU      string `json:"sku"`
	Name     string `json:"name,omitempty"`
	Tradable bool   `json:"tradable"`
}

// Store is the in-memory inventory snapshot. It mirrors the remote
// inventory and is mutated by the crafting queue when a craft or use
// job completes, and replaced wholesale on a full inventory fetch.
type Store struct {
	mu      sync.RWMutex
	byAsset map[uint64]Item
	bySKU   map[string][]uint64
}

func NewStore() *Store {
	return &Store{
		byAsset: make(map[uint64]Item),
		bySKU:   make(map[string][]uint64),
	}
}

// Replace swaps the whole snapshot for the given items.
func (s *Store) Replace(items []Item) {
	byAsset := make(map[uint64]Item, len(items))
	bySKU := make(map[string][]uint64)
	for _, it := range items {
		byAsset[it.AssetID] = it
		bySKU[it.SKU] = append(bySKU[it.SKU], it.AssetID)
	}
	for sku := range bySKU {
		sortIDs(bySKU[sku])
	}

	s.mu.Lock()
	s.byAsset = byAsset
	s.bySKU = bySKU
	s.mu.Unlock()
}

// AddItem inserts one item under the given SKU. An existing asset id is
// overwritten (re-adding after a partial update is harmless).
func (s *Store) AddItem(sku string, it Item) {
	it.SKU = sku

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byAsset[it.AssetID]; !exists {
		ids := append(s.bySKU[sku], it.AssetID)
		sortIDs(ids)
		s.bySKU[sku] = ids
	}
	s.byAsset[it.AssetID] = it
}

// RemoveItem deletes an asset. It reports whether the asset existed.
func (s *Store) RemoveItem(assetID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.byAsset[assetID]
	if !ok {
		return false
	}
	delete(s.byAsset, assetID)

	ids := s.bySKU[it.SKU]
	for i, id := range ids {
		if id == assetID {
			s.bySKU[it.SKU] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.bySKU[it.SKU]) == 0 {
		delete(s.bySKU, it.SKU)
	}
	return true
}

// FindByAssetID returns the item for an asset id.
func (s *Store) FindByAssetID(assetID uint64) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.byAsset[assetID]
	return it, ok
}

// FindBySKU returns the asset ids currently held for a SKU, ascending.
// Non-tradable assets are excluded unless matchAll is set.
func (s *Store) FindBySKU(sku string, matchAll bool) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySKU[sku]
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !matchAll && !s.byAsset[id].Tradable {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Len reports the number of assets in the snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byAsset)
}

// Items returns a copy of every item, ordered by asset id.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, 0, len(s.byAsset))
	for _, it := range s.byAsset {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

func sortIDs(ids []uint64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
