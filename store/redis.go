package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration

	// MaxPerKey bounds the observation history retained per device key.
	// Zero means DefaultMaxPerKey.
	MaxPerKey int
}

// RedisStore implements the Store interface using go-redis/v9. Histories
// live in per-key lists, newest first; the key set lives in one Redis set.
type RedisStore struct {
	client    *redis.Client
	maxPerKey int64
}

const (
	keySetKey     = "observations:keys"
	historyPrefix = "observations:"
)

func historyKey(key string) string {
	return historyPrefix + key
}

// NewRedisStore creates a Redis-backed observation store with the given
// options and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}

	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}

	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	if opts.MaxPerKey <= 0 {
		opts.MaxPerKey = DefaultMaxPerKey
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, maxPerKey: int64(opts.MaxPerKey)}, nil
}

// Append records an observation at the head of its key's history and trims
// the history to the retention bound.
func (s *RedisStore) Append(ctx context.Context, obs Observation) error {
	if err := validate(obs); err != nil {
		return err
	}
	obs = stamp(obs)

	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}

	key := historyKey(obs.Key)
	if err := s.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append observation for %s: %w", obs.Key, err)
	}
	if err := s.client.LTrim(ctx, key, 0, s.maxPerKey-1).Err(); err != nil {
		return fmt.Errorf("failed to trim history for %s: %w", obs.Key, err)
	}
	if err := s.client.SAdd(ctx, keySetKey, obs.Key).Err(); err != nil {
		return fmt.Errorf("failed to index key %s: %w", obs.Key, err)
	}

	return nil
}

// List returns up to limit observations for a key, newest first.
func (s *RedisStore) List(ctx context.Context, key string, limit int) ([]Observation, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	raw, err := s.client.LRange(ctx, historyKey(key), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list observations for %s: %w", key, err)
	}

	out := make([]Observation, 0, len(raw))
	for _, item := range raw {
		var obs Observation
		if err := json.Unmarshal([]byte(item), &obs); err != nil {
			return nil, fmt.Errorf("failed to decode observation for %s: %w", key, err)
		}
		out = append(out, obs)
	}

	return out, nil
}

// Keys returns every device key with retained history, sorted.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.SMembers(ctx, keySetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Count returns the number of retained observations for a key.
func (s *RedisStore) Count(ctx context.Context, key string) (int, error) {
	if key == "" {
		return 0, ErrInvalidKey
	}

	n, err := s.client.LLen(ctx, historyKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count observations for %s: %w", key, err)
	}
	return int(n), nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
