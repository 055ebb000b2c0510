package rediscache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token, so an expired lock taken
// over by another replica is never released by the previous owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serialises mutations of one aggregate across API replicas.
type Locker struct {
	c     *redis.Client
	ttl   time.Duration
	retry time.Duration
}

func NewLocker(addr string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{c: newClient(addr), ttl: ttl, retry: 25 * time.Millisecond}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Lock blocks until the lock is taken or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	k := lockKey(key)
	for {
		ok, err := l.c.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, "redis lock")
		}
		if ok {
			return func() {
				// Контекст запроса мог уже завершиться, освобождаем отдельно.
				rctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(rctx, l.c, []string{k}, token).Err()
			}, nil
		}
		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Wrapf(ctx.Err(), "wait lock %s", key)
		case <-t.C:
		}
	}
}

func (l *Locker) Close() error {
	return l.c.Close()
}
