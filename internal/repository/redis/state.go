// Package redis implements the short-lived federation state store on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "oauth:state:"

// StateStore implements repository.StateStore using Redis. State values are
// written with a TTL and consumed with GETDEL, so each value admits exactly
// one callback.
type StateStore struct {
	client *redis.Client
}

// NewStateStore creates a Redis-backed state store.
func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

// Save stores the state value with the given TTL.
func (s *StateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	if err := s.client.Set(ctx, stateKeyPrefix+state, "1", ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// Consume atomically removes the state and reports whether it existed. An
// expired or replayed state returns false.
func (s *StateStore) Consume(ctx context.Context, state string) (bool, error) {
	err := s.client.GetDel(ctx, stateKeyPrefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume oauth state: %w", err)
	}
	return true, nil
}
