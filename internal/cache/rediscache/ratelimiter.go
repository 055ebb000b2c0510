package rediscache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// customsWindowTTL is longer than the one-minute window so replicas with skewed clocks still
// count into the same key.
const customsWindowTTL = 70 * time.Second

// RateLimiter caps customs broker calls per destination country. The counter is a fixed
// one-minute window shared by every worker replica.
type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{c: newClient(addr)}
}

func customsCheckKey(country string, at time.Time) string {
	return fmt.Sprintf("rl:customs:%s:%s", strings.ToUpper(country), at.UTC().Format("200601021504"))
}

// AllowCustomsCheck считает один вызов брокера для страны в минуте at.
// Возвращает (allowed, вызовов за минуту).
func (rl *RateLimiter) AllowCustomsCheck(ctx context.Context, country string, at time.Time, limit int64) (bool, int64, error) {
	key := customsCheckKey(country, at)
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, customsWindowTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errors.Wrapf(err, "redis ratelimit %s", country)
	}
	n := incr.Val()
	return n <= limit, n, nil
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
