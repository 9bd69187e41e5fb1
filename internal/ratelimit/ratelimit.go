// Package ratelimit caps how often a user may hit an expensive operation
// (currently: assistant chat turns).
//
// WHY FIXED WINDOW?
// One INCR per call and one EXPIRE per window is all Redis needs. Bursts at a
// window edge can reach 2x the limit, which is fine for a per-user cost guard.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/codevault/codevault/internal/apperror"
)

// Limiter decides whether key may proceed. A nil error means allowed; a
// denied call returns an error matching apperror.ErrRateLimited.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// Noop allows everything. Used when no Redis is configured.
type Noop struct{}

func (Noop) Allow(context.Context, string) error { return nil }

// Redis is a fixed-window counter shared by every app instance that points
// at the same Redis.
type Redis struct {
	rdb    *goredis.Client
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedis connects to addr and verifies it with a PING. limit calls are
// allowed per key per window.
func NewRedis(ctx context.Context, addr, prefix string, limit int, window time.Duration) (*Redis, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("ratelimit: limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be positive, got %s", window)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ratelimit: redis ping: %w", err)
	}

	return &Redis{
		rdb:    rdb,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}, nil
}

func (r *Redis) Allow(ctx context.Context, key string) error {
	k := r.windowKey(key, r.now())

	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	// The window index is part of the key, so refreshing the TTL never
	// stretches a window; it only bounds how long the counter lingers.
	pipe.Expire(ctx, k, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperror.Upstream("redis", err)
	}

	if incr.Val() > r.limit {
		return apperror.RateLimited(fmt.Sprintf("limit of %d per %s reached", r.limit, r.window))
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

// windowKey is "<prefix>:<key>:<window index>" so every window gets a fresh
// counter and stale ones expire on their own.
func (r *Redis) windowKey(key string, t time.Time) string {
	idx := t.UnixNano() / int64(r.window)
	return r.prefix + ":" + key + ":" + strconv.FormatInt(idx, 10)
}
