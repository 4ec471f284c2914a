package store

import (
	"context"
	"sort"
	"sync"

	"github.com/stableprint/sdk/bag"
)

// MemoryStore implements the Store interface with an in-process map. It is
// intended for tests and single-process embedding; histories do not survive
// a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	maxPerKey int
	histories map[string][]Observation
	closed    bool
}

// NewMemoryStore creates an in-memory observation store. A maxPerKey <= 0
// means DefaultMaxPerKey.
func NewMemoryStore(maxPerKey int) *MemoryStore {
	if maxPerKey <= 0 {
		maxPerKey = DefaultMaxPerKey
	}
	return &MemoryStore{
		maxPerKey: maxPerKey,
		histories: make(map[string][]Observation),
	}
}

// Append records an observation at the head of its key's history. The bag
// and labels are copied; later mutation of the caller's maps cannot corrupt
// the history.
func (s *MemoryStore) Append(_ context.Context, obs Observation) error {
	if err := validate(obs); err != nil {
		return err
	}
	obs = stamp(obs)
	obs.Bag = bag.Clone(obs.Bag)
	if obs.Labels != nil {
		labels := make(map[string]string, len(obs.Labels))
		for k, v := range obs.Labels {
			labels[k] = v
		}
		obs.Labels = labels
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	history := append([]Observation{obs}, s.histories[obs.Key]...)
	if len(history) > s.maxPerKey {
		history = history[:s.maxPerKey]
	}
	s.histories[obs.Key] = history
	return nil
}

// List returns up to limit observations for a key, newest first.
func (s *MemoryStore) List(_ context.Context, key string, limit int) ([]Observation, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	history := s.histories[key]
	if limit > 0 && limit < len(history) {
		history = history[:limit]
	}

	out := make([]Observation, len(history))
	copy(out, history)
	return out, nil
}

// Keys returns every device key with retained history, sorted.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	keys := make([]string, 0, len(s.histories))
	for key := range s.histories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Count returns the number of retained observations for a key.
func (s *MemoryStore) Count(_ context.Context, key string) (int, error) {
	if key == "" {
		return 0, ErrInvalidKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.histories[key]), nil
}

// Close marks the store closed; all further operations fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
