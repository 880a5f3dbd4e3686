// Package notified tracks which (party, group) pairs were already delivered.
package notified

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"partywatch/internal/kvstore"
	appLog "partywatch/internal/log"
	"partywatch/internal/model"
)

// DefaultSlot is the key-value slot holding the persisted set.
const DefaultSlot = "notifiedIds"

// Store is the set of NotifiedKeys with a confirmed delivery.
//
// The in-memory set is authoritative for the life of the process. Load only
// ever merges persisted keys into it; Flush writes the whole set back.
type Store struct {
	kv   kvstore.Store
	slot string

	mu   sync.RWMutex
	keys map[string]struct{}
}

// New returns an empty Store backed by the given slot of kv.
func New(kv kvstore.Store, slot string) *Store {
	if slot == "" {
		slot = DefaultSlot
	}
	return &Store{
		kv:   kv,
		slot: slot,
		keys: make(map[string]struct{}),
	}
}

// Load merges the persisted set into memory. Malformed entries are skipped.
// On read failure the in-memory set is left as is and the error returned,
// so the caller can log it and continue with what it has.
func (s *Store) Load(ctx context.Context) error {
	data, ok, err := s.kv.Get(ctx, s.slot)
	if err != nil {
		return fmt.Errorf("notified: read %s: %w", s.slot, err)
	}
	if !ok || len(data) == 0 {
		return nil
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("notified: decode %s: %w", s.slot, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	skipped := 0
	for _, r := range raw {
		if _, err := model.ParseNotifiedKey(r); err != nil {
			skipped++
			continue
		}
		s.keys[r] = struct{}{}
	}
	if skipped > 0 {
		appLog.Warn("notified: skipped malformed keys", "count", skipped)
	}
	return nil
}

func (s *Store) Has(k model.NotifiedKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[k.String()]
	return ok
}

// Add marks k as delivered. Adding an existing key is a no-op.
func (s *Store) Add(k model.NotifiedKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[k.String()] = struct{}{}
}

// Clear drops every key from memory. Call Flush to persist the empty set.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = make(map[string]struct{})
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Keys returns the encoded keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Flush persists the current set.
func (s *Store) Flush(ctx context.Context) error {
	data, err := json.Marshal(s.Keys())
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.slot, data); err != nil {
		return fmt.Errorf("notified: write %s: %w", s.slot, err)
	}
	return nil
}
