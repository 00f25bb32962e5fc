// Package ratelimit throttles write-heavy endpoints with a fixed-window
// counter kept in Redis, so every server instance shares the same budget.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
)

// Limiter allows at most limit hits per key within each window.
type Limiter struct {
	redis  redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
	log    *zerolog.Logger
}

// New constructs a Limiter. prefix namespaces its Redis keys.
func New(rdb redis.Cmdable, prefix string, limit int, window time.Duration, log *zerolog.Logger) *Limiter {
	return &Limiter{redis: rdb, prefix: prefix, limit: int64(limit), window: window, log: log}
}

// Allow records one hit for key and reports whether it is within the limit.
// The window TTL is armed with EXPIRE NX on every hit, so a key whose first
// EXPIRE was lost still gets one on the next request.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)

	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("count hit on %s: %w", k, err)
	}
	return incr.Val() <= l.limit, nil
}

// Middleware rejects requests over the limit with 429. keyFn picks the
// bucket for a request (user id, falling back to the client address).
// Redis failures let the request through.
func (l *Limiter) Middleware(keyFn func(*http.Request) string, reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := l.Allow(r.Context(), keyFn(r))
			if err != nil {
				l.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RateLimited()
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRedisClient parses a redis:// URL, or a bare host:port, and pings it.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
