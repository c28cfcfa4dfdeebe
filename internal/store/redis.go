package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/page-votes/internal/votes"
)

// incrementScript adds ARGV[3] likes and ARGV[4] dislikes to one record and returns
// both totals. Redis runs scripts atomically, which makes the upsert linearizable.
var incrementScript = redis.NewScript(`
local likes = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[3])
local dislikes = redis.call('HINCRBY', KEYS[1], ARGV[2], ARGV[4])
return {likes, dislikes}
`)

// RedisStore is a Redis implementation of votes.Store.
// Each shard is one hash, "votes:{host}", so a domain maps to a single cluster slot.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed vote store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "votes:",
	}
}

func (r *RedisStore) Read(ctx context.Context, key votes.Key) (votes.Counts, error) {
	likesField, dislikesField := counterFields(key)

	values, err := r.client.HMGet(ctx, r.shardKey(key), likesField, dislikesField).Result()
	if err != nil {
		return votes.Counts{}, fmt.Errorf("%w: %w", votes.ErrStorage, err)
	}

	likes, err := parseCounter(values[0])
	if err != nil {
		return votes.Counts{}, err
	}

	dislikes, err := parseCounter(values[1])
	if err != nil {
		return votes.Counts{}, err
	}

	return votes.Counts{Likes: likes, Dislikes: dislikes}, nil
}

func (r *RedisStore) Increment(ctx context.Context, key votes.Key, delta votes.Delta) (votes.Counts, error) {
	if !delta.Valid() {
		return votes.Counts{}, votes.ErrInvalidDelta
	}

	likesField, dislikesField := counterFields(key)
	added := votes.Counts{}.Apply(delta)

	totals, err := incrementScript.Run(ctx, r.client, []string{r.shardKey(key)},
		likesField, dislikesField, added.Likes, added.Dislikes,
	).Int64Slice()
	if err != nil {
		return votes.Counts{}, fmt.Errorf("%w: %w", votes.ErrStorage, err)
	}

	if len(totals) != 2 {
		return votes.Counts{}, fmt.Errorf("%w: unexpected script reply %v", votes.ErrStorage, totals)
	}

	return votes.Counts{Likes: totals[0], Dislikes: totals[1]}, nil
}

// Ping checks Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) shardKey(key votes.Key) string {
	return r.prefix + "{" + key.ShardKey + "}"
}

func counterFields(key votes.Key) (string, string) {
	base := strconv.FormatUint(key.URLHash, 10) + "|" + key.URL

	return base + "|likes", base + "|dislikes"
}

func parseCounter(v any) (int64, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: corrupt counter %q", votes.ErrStorage, val)
		}

		return n, nil
	default:
		return 0, fmt.Errorf("%w: unexpected counter type %T", votes.ErrStorage, v)
	}
}

// Compile-time check.
var _ votes.Store = (*RedisStore)(nil)
