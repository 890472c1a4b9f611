package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "dbay:web:session:"
	// sweepInterval is how often Save purges expired in-memory sessions.
	sweepInterval = time.Minute
)

// Storage persists sessions by ID. Get returns domain.ErrSessionNotFound for
// unknown or expired IDs.
type Storage interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	session   domain.Session
	expiresAt time.Time
}

type memoryStorage struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryStorage keeps sessions in process memory. Sessions do not survive
// a restart and are not shared between replicas. Expired sessions are removed
// when read, and abandoned ones by a sweep that runs on Save at most once per
// sweepInterval.
func NewMemoryStorage() Storage {
	return &memoryStorage{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *memoryStorage) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.entries, id)
		return nil, domain.ErrSessionNotFound
	}
	sess := entry.session
	return &sess, nil
}

func (s *memoryStorage) Save(_ context.Context, sess *domain.Session, ttl time.Duration) error {
	if sess == nil || sess.ID == "" {
		return errors.New("cannot save nil session or session with empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweep(now)
	}
	entry := memoryEntry{session: *sess}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	s.entries[sess.ID] = entry
	return nil
}

// sweep deletes expired entries. Callers hold s.mu.
func (s *memoryStorage) sweep(now time.Time) {
	for id, entry := range s.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
	s.lastSweep = now
}

func (s *memoryStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

type redisStorage struct {
	client *redis.Client
}

// NewRedisStorage stores sessions as JSON with a Redis TTL.
func NewRedisStorage(client *redis.Client) Storage {
	return &redisStorage{client: client}
}

func (s *redisStorage) key(id string) string {
	return redisKeyPrefix + id
}

func (s *redisStorage) Get(ctx context.Context, id string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %s from redis: %w", id, err)
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *redisStorage) Save(ctx context.Context, sess *domain.Session, ttl time.Duration) error {
	if sess == nil || sess.ID == "" {
		return errors.New("cannot save nil session or session with empty id")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s to redis: %w", sess.ID, err)
	}
	return nil
}

func (s *redisStorage) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s from redis: %w", id, err)
	}
	return nil
}
