package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent.
var ErrMiss = errors.New("cache miss")

// Store wraps the redis client with JSON helpers for derived data. Callers
// must treat it as best-effort: correctness never depends on a hit.
type Store struct {
	client *redis.Client
}

// NewStore constructs a Store. A nil client yields a disabled store whose
// reads always miss.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// GetJSON loads key into dest.
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) error {
	if s == nil || s.client == nil {
		return ErrMiss
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	return json.Unmarshal(raw, dest)
}

// SetJSON stores value under key with a TTL.
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	return s.client.Set(ctx, key, raw, ttl).Err()
}

// InvalidatePrefix drops every key under prefix. Used on round close/reopen
// to flush derived statuses and ranked lists wholesale.
func (s *Store) InvalidatePrefix(ctx context.Context, prefix string) error {
	if s == nil || s.client == nil {
		return nil
	}
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache del %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}
