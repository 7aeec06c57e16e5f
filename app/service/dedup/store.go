package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"salesbot/app/util/clock"

	"github.com/redis/go-redis/v9"
)

// SignatureStore remembers inbound signatures for a limited time.
type SignatureStore interface {
	// Admit records key and reports whether it was not seen within ttl.
	Admit(ctx context.Context, key string, ttl time.Duration) bool
}

type MemoryStore struct {
	clk clock.Clock

	mu      sync.Mutex
	expires map[string]time.Time
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clk:     clk,
		expires: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Admit(_ context.Context, key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()

	for k, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, k)
		}
	}

	if _, ok := s.expires[key]; ok {
		return false
	}

	s.expires[key] = now.Add(ttl)

	return true
}

// RedisStore shares signatures between bot processes attached to the same
// gateway instance. Redis failures admit the message.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) Admit(ctx context.Context, key string, ttl time.Duration) bool {
	sum := sha256.Sum256([]byte(key))

	ok, err := s.client.SetNX(ctx, s.prefix+hex.EncodeToString(sum[:]), 1, ttl).Result()
	if err != nil {
		slog.Warn("Redis dedup unavailable, admitting message", "error", err)
		return true
	}

	return ok
}
