// Package store persists observations so stability analysis can run over
// populations collected across time and nodes.
//
// A Store keeps a bounded, newest-first history of observations per device
// key. Two implementations are provided: RedisStore for shared deployments
// and MemoryStore for tests and embedding.
//
// # Redis Key Schema
//
// The Redis implementation uses a structured key naming convention:
//   - observations:<key> - List of JSON observations (LPUSH/LTRIM/LRANGE)
//   - observations:keys  - Set of all device keys with history
//
// # Thread Safety
//
// Both implementations are safe for concurrent use by multiple goroutines.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stableprint/sdk/bag"
)

// Common errors returned by store operations.
var (
	// ErrInvalidKey is returned when a device key is empty.
	ErrInvalidKey = errors.New("store: invalid key")

	// ErrInvalidObservation is returned when an observation carries no bag.
	ErrInvalidObservation = errors.New("store: invalid observation")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store: closed")
)

// DefaultMaxPerKey bounds the history retained per device key. The bound
// keeps population reads cheap: stability analysis is quadratic in the
// population size.
const DefaultMaxPerKey = 1000

// Observation is one captured bag plus the digest it hashed to and the
// metadata needed to trace it back to its collection.
type Observation struct {
	ID         uuid.UUID         `json:"id"`
	Key        string            `json:"key"`
	Digest     string            `json:"digest"`
	Bag        bag.Bag           `json:"bag"`
	Labels     map[string]string `json:"labels,omitempty"`
	ObservedAt time.Time         `json:"observed_at"`
}

// NewObservation builds an observation with a fresh ID and timestamp.
func NewObservation(key string, b bag.Bag, digest string, labels map[string]string) Observation {
	return Observation{
		ID:         uuid.New(),
		Key:        key,
		Digest:     digest,
		Bag:        b,
		Labels:     labels,
		ObservedAt: time.Now().UTC(),
	}
}

// Store provides bounded per-key observation history.
type Store interface {
	// Append records an observation under its key. A zero ID or timestamp
	// is filled in. Histories are bounded; appending beyond the bound
	// evicts the oldest observations.
	Append(ctx context.Context, obs Observation) error

	// List returns up to limit observations for a key, newest first.
	// A limit <= 0 returns everything retained. A key with no history
	// yields an empty slice, not an error.
	List(ctx context.Context, key string, limit int) ([]Observation, error)

	// Keys returns every device key with retained history, sorted.
	Keys(ctx context.Context) ([]string, error)

	// Count returns the number of retained observations for a key.
	Count(ctx context.Context, key string) (int, error)

	// Close releases the store's resources.
	Close() error
}

// Bags extracts the raw bags from a slice of observations, preserving
// order. The result feeds directly into stability analysis.
func Bags(observations []Observation) []bag.Bag {
	out := make([]bag.Bag, len(observations))
	for i, obs := range observations {
		out[i] = obs.Bag
	}
	return out
}

func validate(obs Observation) error {
	if obs.Key == "" {
		return ErrInvalidKey
	}
	if obs.Bag == nil {
		return ErrInvalidObservation
	}
	return nil
}

// stamp fills the generated members an observation may arrive without.
func stamp(obs Observation) Observation {
	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = time.Now().UTC()
	}
	return obs
}
