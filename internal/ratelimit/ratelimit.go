// Package ratelimit bounds how often a client may upload datasets.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter reports how long key must wait before its next request is admitted.
// A zero duration admits the request.
type Limiter interface {
	ShouldWait(ctx context.Context, key string) (time.Duration, error)
}

type noLimiter struct{}

func (noLimiter) ShouldWait(context.Context, string) (time.Duration, error) { return 0, nil }

// Noop admits everything.
func Noop() Limiter { return noLimiter{} }

type slidingWindow struct {
	client redis.Cmdable
	window time.Duration
	limit  int
	prefix string
}

// New returns a sliding-window limiter admitting limit requests per window.
// A nil client or a non-positive window or limit disables limiting.
func New(client redis.Cmdable, window time.Duration, limit int) Limiter {
	if c, ok := client.(*redis.Client); client == nil || (ok && c == nil) || window <= 0 || limit <= 0 {
		return noLimiter{}
	}
	return &slidingWindow{client: client, window: window, limit: limit, prefix: "deliverylens:ratelimit:"}
}

func (s *slidingWindow) ShouldWait(ctx context.Context, key string) (time.Duration, error) {
	key = s.prefix + key
	now := time.Now()
	start := now.Add(-s.window)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprint(start.UnixMicro()))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: fmt.Sprintf("%d-%s", now.UnixMicro(), uuid.NewString())})
	pipe.Expire(ctx, key, s.window)
	scores := pipe.ZRangeWithScores(ctx, key, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit %s: %w", key, err)
	}

	zs := scores.Val()
	if len(zs) <= s.limit {
		return 0, nil
	}
	oldest := time.UnixMicro(int64(zs[0].Score))
	wait := oldest.Add(s.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, nil
}

// Dial connects to addr and pings it. An empty addr returns a nil client.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", addr, err)
	}
	return client, nil
}
