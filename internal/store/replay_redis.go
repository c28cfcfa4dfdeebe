package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/page-votes/internal/pow"
)

// ReplayRedisStore is a Redis implementation of pow.ReplayGuard using SET NX.
type ReplayRedisStore struct {
	client *redis.Client
	prefix string
}

// NewReplayRedisStore creates a new Redis-backed replay guard.
func NewReplayRedisStore(client *redis.Client) *ReplayRedisStore {
	return &ReplayRedisStore{
		client: client,
		prefix: "spent:",
	}
}

func (s *ReplayRedisStore) Claim(ctx context.Context, signature string, until time.Time) (bool, error) {
	ttl := time.Until(until) + time.Second
	if ttl <= 0 {
		ttl = time.Second
	}

	return s.client.SetNX(ctx, s.prefix+signature, 1, ttl).Result()
}

// Compile-time check.
var _ pow.ReplayGuard = (*ReplayRedisStore)(nil)
