package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/page-votes/internal/votes"
)

// mergeScript stores the larger of the cached and the offered totals. Counters never
// decrease, so a writer that finishes late cannot roll the cache back.
var mergeScript = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'likes', 'dislikes')
local likes = math.max(tonumber(cur[1]) or 0, tonumber(ARGV[1]))
local dislikes = math.max(tonumber(cur[2]) or 0, tonumber(ARGV[2]))
redis.call('HSET', KEYS[1], 'likes', likes, 'dislikes', dislikes)
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

type pinger interface {
	Ping(ctx context.Context) error
}

// RedisCacheStore wraps a votes.Store with Redis caching for reads.
type RedisCacheStore struct {
	store  votes.Store
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCacheStore creates a new Redis-cached store decorator.
func NewRedisCacheStore(store votes.Store, client *redis.Client, ttl time.Duration) *RedisCacheStore {
	return &RedisCacheStore{
		store:  store,
		client: client,
		prefix: "votecache:",
		ttl:    ttl,
	}
}

// Read returns cached counts, falling back to the underlying store on a miss.
func (r *RedisCacheStore) Read(ctx context.Context, key votes.Key) (votes.Counts, error) {
	if counts, ok := r.getFromCache(ctx, key); ok {
		return counts, nil
	}

	counts, err := r.store.Read(ctx, key)
	if err != nil {
		return votes.Counts{}, err
	}

	r.cacheCounts(ctx, key, counts)

	return counts, nil
}

// Increment applies the vote in the underlying store and updates the cache.
func (r *RedisCacheStore) Increment(ctx context.Context, key votes.Key, delta votes.Delta) (votes.Counts, error) {
	counts, err := r.store.Increment(ctx, key, delta)
	if err != nil {
		return votes.Counts{}, err
	}

	// Write-through: update cache after successful increment
	r.cacheCounts(ctx, key, counts)

	return counts, nil
}

// Ping checks Redis connectivity and, when it can be pinged, the wrapped store.
func (r *RedisCacheStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return err
	}

	if p, ok := r.store.(pinger); ok {
		return p.Ping(ctx)
	}

	return nil
}

func (r *RedisCacheStore) cacheKey(key votes.Key) string {
	return r.prefix + "{" + key.ShardKey + "}:" + strconv.FormatUint(key.URLHash, 10) + ":" + key.URL
}

func (r *RedisCacheStore) getFromCache(ctx context.Context, key votes.Key) (votes.Counts, bool) {
	result, err := r.client.HGetAll(ctx, r.cacheKey(key)).Result()
	if err != nil || len(result) == 0 {
		return votes.Counts{}, false
	}

	likes, err := strconv.ParseInt(result["likes"], 10, 64)
	if err != nil {
		return votes.Counts{}, false
	}

	dislikes, err := strconv.ParseInt(result["dislikes"], 10, 64)
	if err != nil {
		return votes.Counts{}, false
	}

	return votes.Counts{Likes: likes, Dislikes: dislikes}, true
}

// cacheCounts is best effort; a failed cache write only costs a later miss.
func (r *RedisCacheStore) cacheCounts(ctx context.Context, key votes.Key, counts votes.Counts) {
	_ = mergeScript.Run(ctx, r.client, []string{r.cacheKey(key)},
		counts.Likes, counts.Dislikes, r.ttl.Milliseconds(),
	).Err()
}

// Shutdown is a no-op for RedisCacheStore (client managed externally).
func (r *RedisCacheStore) Shutdown() error {
	return nil
}

// Compile-time check.
var _ votes.Store = (*RedisCacheStore)(nil)
