package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"anoa.com/unimarket/pkg/apperror"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientAlwaysAllows(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	ok, err := CheckAndSetRateLimit(ctx, nil, id, ScopeProduct, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := GetRateLimitTTL(ctx, nil, id, ScopeProduct)
	require.NoError(t, err)
	assert.Zero(t, ttl)

	assert.NoError(t, ClearRateLimit(ctx, nil, id, ScopeProduct))
}

func TestRateLimitErrorUnwrapsToSentinel(t *testing.T) {
	var err error = &RateLimitError{Message: "wait", RetryAfter: time.Second}

	assert.True(t, errors.Is(err, apperror.ErrRateLimitExceeded))
	assert.Equal(t, "wait", err.Error())
}

func TestKeyIsScopedPerStudent(t *testing.T) {
	id := uuid.MustParse("0190f5b2-0000-7000-8000-000000000001")

	assert.Equal(t, "rate_limit:student:0190f5b2-0000-7000-8000-000000000001:global", key(id, ScopeGlobal))
	assert.NotEqual(t, key(id, ScopeGlobal), key(id, ScopeProduct))
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestCooldownBlocksUntilExpiry(t *testing.T) {
	rdb, mr := newRedis(t)
	ctx := context.Background()
	id := uuid.New()

	ok, err := CheckAndSetRateLimit(ctx, rdb, id, ScopeProduct, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckAndSetRateLimit(ctx, rdb, id, ScopeProduct, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := GetRateLimitTTL(ctx, rdb, id, ScopeProduct)
	require.NoError(t, err)
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 1)

	other, err := CheckAndSetRateLimit(ctx, rdb, id, ScopeGlobal, time.Minute)
	require.NoError(t, err)
	assert.True(t, other)

	mr.FastForward(time.Minute + time.Second)

	ok, err = CheckAndSetRateLimit(ctx, rdb, id, ScopeProduct, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClearRateLimitReleasesCooldown(t *testing.T) {
	rdb, _ := newRedis(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := CheckAndSetRateLimit(ctx, rdb, id, ScopeGlobal, time.Hour)
	require.NoError(t, err)
	require.NoError(t, ClearRateLimit(ctx, rdb, id, ScopeGlobal))

	ok, err := CheckAndSetRateLimit(ctx, rdb, id, ScopeGlobal, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisErrorIsReported(t *testing.T) {
	rdb, mr := newRedis(t)
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())
	mr.SetError("ERR injected failure")

	_, err := CheckAndSetRateLimit(ctx, rdb, uuid.New(), ScopeGlobal, time.Minute)
	assert.Error(t, err)
}
