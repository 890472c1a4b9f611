package rate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sharedRateKey = "dbay:web:doge_usd_rate"

// Snapshot is a rate together with the time it was fetched.
type Snapshot struct {
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SharedStore lets several frontend replicas reuse one price feed fetch.
type SharedStore interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

type redisStore struct {
	client *redis.Client
	expiry time.Duration
}

// NewRedisStore keeps the snapshot under a single key. expiry bounds how long
// a snapshot survives when no replica refreshes it.
func NewRedisStore(client *redis.Client, expiry time.Duration) SharedStore {
	return &redisStore{client: client, expiry: expiry}
}

// Load returns nil, nil when no snapshot is stored.
func (s *redisStore) Load(ctx context.Context) (*Snapshot, error) {
	val, err := s.client.Get(ctx, sharedRateKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rate snapshot from redis: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rate snapshot: %w", err)
	}
	return &snap, nil
}

func (s *redisStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal rate snapshot: %w", err)
	}
	if err := s.client.Set(ctx, sharedRateKey, data, s.expiry).Err(); err != nil {
		return fmt.Errorf("failed to save rate snapshot to redis: %w", err)
	}
	return nil
}
