package baseline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_MissThenStoreThenHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	key := Key(BuyHoldIndex, yearBounds())
	rec := &Record{ID: BuyHoldIndex, Sharpe: 0.8, CacheKey: key}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	mock.ExpectGet(redisKeyPrefix + key).RedisNil()
	mock.ExpectSet(redisKeyPrefix+key, payload, time.Minute).SetVal("OK")
	mock.ExpectGet(redisKeyPrefix + key).SetVal(string(payload))

	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	cache.Set(ctx, key, rec)

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, BuyHoldIndex, got.ID)
	assert.Equal(t, 0.8, got.Sharpe)

	stats := cache.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_UndecodableEntryIsAMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, time.Minute)

	mock.ExpectGet(redisKeyPrefix + "bad").SetVal("{not json")

	_, ok := cache.Get(context.Background(), "bad")
	assert.False(t, ok, "Corrupt entries must fall through to recomputation")
	assert.EqualValues(t, 1, cache.Stats().Misses)
}

func TestNewRedisCache_DefaultTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, 0)

	rec := &Record{ID: RiskParity}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	mock.ExpectSet(redisKeyPrefix+"k", payload, time.Hour).SetVal("OK")
	cache.Set(context.Background(), "k", rec)
	require.NoError(t, mock.ExpectationsWereMet())
}
