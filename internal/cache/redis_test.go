package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"timed-quiz/internal/cache"
)

func newTestCache(t *testing.T) (*cache.Redis, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	rdb := cache.NewClient(cache.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewRedis(rdb), srv
}

func TestRedisGetSetExpire(t *testing.T) {
	ctx := context.Background()
	c, srv := newTestCache(t)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.SetEX(ctx, "attempt:a1:answers", "payload", 5*time.Minute))
	value, ok, err := c.Get(ctx, "attempt:a1:answers")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "payload", value)

	srv.FastForward(5*time.Minute + time.Second)
	_, ok, err = c.Get(ctx, "attempt:a1:answers")
	require.NoError(t, err)
	require.False(t, ok, "buffer should self-clean after its ttl")
}

func TestRedisCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.SetEX(ctx, "k", "v2", time.Minute))

	deleted, err := c.CompareAndDelete(ctx, "k", "v1")
	require.NoError(t, err)
	require.False(t, deleted)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err = c.CompareAndDelete(ctx, "k", "v2")
	require.NoError(t, err)
	require.True(t, deleted)

	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisSets(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.SAdd(ctx, "pending", "a1", "a2"))
	require.NoError(t, c.SAdd(ctx, "pending", "a1"))

	members, err := c.SMembers(ctx, "pending")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a1", "a2"}, members)

	require.NoError(t, c.SRem(ctx, "pending", "a1"))
	members, err = c.SMembers(ctx, "pending")
	require.NoError(t, err)
	require.Equal(t, []string{"a2"}, members)

	require.NoError(t, c.Del(ctx))
}
