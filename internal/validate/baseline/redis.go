package baseline

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "statval:baseline:"

// RedisCache shares baseline records across processes validating the same
// candidate batch. Entries expire with the run TTL so a new run recomputes
// against fresh baseline simulations.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration

	hits   int64
	misses int64
}

// NewRedisCache wraps an existing Redis client. A zero ttl keeps entries
// for one hour, comfortably longer than a batch run.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get fetches and decodes a cached record. Transport and decode errors are
// treated as misses: the comparator recomputes, which is safe because
// writes are idempotent.
func (c *RedisCache) Get(ctx context.Context, key string) (*Record, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("Baseline cache read failed, recomputing")
		}
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Baseline cache entry undecodable, recomputing")
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	return &rec, true
}

// Set stores a record with the run TTL. Write failures are logged and
// dropped; the cache is an optimization, not a source of truth.
func (c *RedisCache) Set(ctx context.Context, key string, rec *Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Baseline record not serializable")
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Baseline cache write failed")
	}
}

// Stats returns a snapshot of the lookup counters.
func (c *RedisCache) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}
