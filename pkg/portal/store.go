package portal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Token is the locally persisted cross-application artifact. Satellites
// share one logical identity through it; each instance carries its own
// synced flag.
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
	Connected bool      `json:"connected"`
	Synced    bool      `json:"synced"`
}

// Expired reports whether the token is past its lifetime at t.
func (t *Token) Expired(at time.Time) bool {
	return !at.Before(t.ExpiresAt)
}

// TokenStore persists the portal token across component boundaries. Get
// performs the expiry check itself and reports an expired token as absent,
// so no caller ever holds a "valid" verdict older than one read. Writes are
// last-writer-wins; independent application instances use the store without
// coordination.
type TokenStore interface {
	Get(ctx context.Context) (*Token, error)
	Set(ctx context.Context, token *Token) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the token in process memory. One per application
// instance; used in tests and in satellites without shared storage.
type MemoryStore struct {
	mu    sync.RWMutex
	token *Token
	now   func() time.Time
}

// NewMemoryStore creates an empty in-process token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil || s.token.Expired(s.now()) {
		return nil, nil
	}
	cp := *s.token
	return &cp, nil
}

func (s *MemoryStore) Set(ctx context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *token
	s.token = &cp
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
	return nil
}

// RedisStore persists the token in Redis under a per-application key, with
// the Redis TTL mirroring the token expiry so stale tokens age out on their
// own even if no process ever reads them again.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore creates a Redis-backed token store. appID scopes the key so
// satellites sharing one Redis keep independent synced flags.
func NewRedisStore(rdb *redis.Client, appID string) *RedisStore {
	return &RedisStore{rdb: rdb, key: "portal:token:" + appID}
}

func (s *RedisStore) Get(ctx context.Context) (*Token, error) {
	raw, err := s.rdb.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var token Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		// Unreadable token is as good as no token
		_ = s.rdb.Del(ctx, s.key).Err()
		return nil, nil
	}

	if token.Expired(time.Now()) {
		return nil, nil
	}
	return &token, nil
}

func (s *RedisStore) Set(ctx context.Context, token *Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return s.Clear(ctx)
	}
	return s.rdb.Set(ctx, s.key, raw, ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}
