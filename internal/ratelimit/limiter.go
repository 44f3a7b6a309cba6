package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Limiter decides whether one more event for key fits in the budget.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, remaining int, reset time.Time, err error)
}

// New returns the limiter named by strategy: "fixed" for ulule fixed windows, anything
// else for the sliding window.
func New(strategy string, client *redis.Client, prefix string) (Limiter, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "fixed":
		return NewFixedWindow(client, prefix)
	default:
		return SlidingWindow{Client: client, Prefix: prefix}, nil
	}
}

// SlidingWindow is a sliding window limiter backed by Redis sorted sets.
type SlidingWindow struct {
	Client *redis.Client
	Prefix string
}

// Allow registers an event for the given key and returns whether it is within the limit.
func (l SlidingWindow) Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, int, time.Time, error) {
	if l.Client == nil || limit <= 0 || window <= 0 {
		return true, limit, time.Now().Add(window), nil
	}

	now := time.Now()
	until := now.Add(window)
	redisKey := l.Prefix + key

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", now.Add(-window).UnixNano()))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	count := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, until, err
	}

	current := int(count.Val())
	return current <= limit, max(0, limit-current), until, nil
}

// FixedWindow delegates counting to ulule/limiter's Redis store.
type FixedWindow struct {
	store limiter.Store
}

// NewFixedWindow builds a fixed window limiter on client.
func NewFixedWindow(client *redis.Client, prefix string) (*FixedWindow, error) {
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: strings.TrimSuffix(prefix, ":")})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: init store: %w", err)
	}
	return &FixedWindow{store: store}, nil
}

// Allow counts one event for key within the current window.
func (l *FixedWindow) Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, int, time.Time, error) {
	if l == nil || l.store == nil || limit <= 0 || window <= 0 {
		return true, limit, time.Now().Add(window), nil
	}
	lim := limiter.New(l.store, limiter.Rate{Period: window, Limit: int64(limit)})
	res, err := lim.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
