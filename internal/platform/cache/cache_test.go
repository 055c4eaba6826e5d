package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRateLimitCounterAccumulatesPerWindow(t *testing.T) {
	client := newTestRedis(t)
	counter := NewRateLimitCounter(client, "test")
	counter.Config(10, time.Minute)

	now := time.Now().UTC().Truncate(time.Minute)
	prev := now.Add(-time.Minute)

	require.NoError(t, counter.Increment("user-1", prev))
	require.NoError(t, counter.Increment("user-1", now))
	require.NoError(t, counter.IncrementBy("user-1", now, 2))

	curr, previous, err := counter.Get("user-1", now, prev)
	require.NoError(t, err)
	assert.Equal(t, 3, curr)
	assert.Equal(t, 1, previous)

	curr, previous, err = counter.Get("user-2", now, prev)
	require.NoError(t, err)
	assert.Zero(t, curr)
	assert.Zero(t, previous)
}

func TestLockerRejectsSecondHolder(t *testing.T) {
	client := newTestRedis(t)
	locker := NewLocker(client, nil)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "pos:register:a:b:lock", 5*time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "pos:register:a:b:lock", 5*time.Second)
	require.ErrorIs(t, err, shared.ErrLockNotObtained)

	release()
	release2, err := locker.Acquire(ctx, "pos:register:a:b:lock", 5*time.Second)
	require.NoError(t, err)
	release2()
}
