package redislimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key in fixed windows aligned to the wall clock.
type Limiter struct {
	c   *redis.Client
	now func() time.Time
}

func New(addr string) *Limiter {
	return &Limiter{
		c:   redis.NewClient(&redis.Options{Addr: addr}),
		now: time.Now,
	}
}

// Allow does INCR on the key of the current window and sets the window TTL.
// Returns (allowed, currentCount).
func (l *Limiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	if window <= 0 {
		return false, 0, errors.New("redis ratelimit: window must be positive")
	}
	bucket := l.now().UnixNano() / int64(window)
	k := fmt.Sprintf("%s:%d", key, bucket)

	pipe := l.c.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

func (l *Limiter) Ping(ctx context.Context) error {
	return errors.Wrap(l.c.Ping(ctx).Err(), "redis ping")
}

func (l *Limiter) Close() error {
	return l.c.Close()
}
