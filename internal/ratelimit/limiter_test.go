package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSlidingWindowAllow(t *testing.T) {
	mr, client := newRedis(t)
	limiter := SlidingWindow{Client: client, Prefix: "test:"}

	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, 2)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, 2-(i+1), remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestFixedWindowAllow(t *testing.T) {
	_, client := newRedis(t)
	limiter, err := NewFixedWindow(client, "test:")
	require.NoError(t, err)

	ctx := context.Background()
	allowed, remaining, reset, err := limiter.Allow(ctx, "key", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, remaining)
	require.True(t, reset.After(time.Now()))

	allowed, _, _, err = limiter.Allow(ctx, "key", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, remaining, _, err = limiter.Allow(ctx, "key", time.Minute, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
}

func TestNewSelectsStrategy(t *testing.T) {
	_, client := newRedis(t)

	l, err := New("fixed", client, "rl:")
	require.NoError(t, err)
	require.IsType(t, &FixedWindow{}, l)

	l, err = New("sliding", client, "rl:")
	require.NoError(t, err)
	require.IsType(t, SlidingWindow{}, l)
}

func TestDisabledLimitAlwaysAllows(t *testing.T) {
	allowed, _, _, err := SlidingWindow{}.Allow(context.Background(), "key", time.Second, 0)
	require.NoError(t, err)
	require.True(t, allowed)
}
