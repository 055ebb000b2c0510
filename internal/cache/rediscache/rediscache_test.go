package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	defer c.Close()

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "shipment:1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "shipment:1", []byte(`{"id":"1"}`), time.Minute))
	b, ok, err := c.Get(ctx, "shipment:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"id":"1"}`), b)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "shipment:1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "shipment:2", []byte("x"), time.Minute))
	require.NoError(t, c.Delete(ctx, "shipment:2"))
	require.False(t, mr.Exists("shipment:2"))
	require.NoError(t, c.Delete(ctx))
	require.NoError(t, c.Ping(ctx))
}

func TestRateLimiter_AllowCustomsCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())
	defer rl.Close()

	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)

	ok, n, err := rl.AllowCustomsCheck(ctx, "es", at, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.AllowCustomsCheck(ctx, "ES", at.Add(30*time.Second), 2)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.AllowCustomsCheck(ctx, "ES", at, 2)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
	require.True(t, mr.Exists("rl:customs:ES:202603011200"))
	require.Equal(t, 70*time.Second, mr.TTL("rl:customs:ES:202603011200"))

	// другая страна и следующая минута считаются отдельно
	ok, n, _ = rl.AllowCustomsCheck(ctx, "US", at, 2)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
	ok, n, _ = rl.AllowCustomsCheck(ctx, "ES", at.Add(time.Minute), 2)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}

func TestLocker_ExclusiveAndTokenChecked(t *testing.T) {
	mr := miniredis.RunT(t)
	l := NewLocker(mr.Addr(), time.Minute)
	defer l.Close()

	ctx := context.Background()
	unlock, err := l.Lock(ctx, "shipment:1")
	require.NoError(t, err)
	require.True(t, mr.Exists("lock:shipment:1"))

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "shipment:1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	require.False(t, mr.Exists("lock:shipment:1"))

	unlock2, err := l.Lock(ctx, "shipment:1")
	require.NoError(t, err)

	// stale release from the first owner must not free the new holder
	unlock()
	require.True(t, mr.Exists("lock:shipment:1"))
	unlock2()
	require.False(t, mr.Exists("lock:shipment:1"))
}
