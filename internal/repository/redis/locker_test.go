package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLocker(client), mr
}

func TestLocker_ExclusiveUntilReleased(t *testing.T) {
	locker, mr := setupTestRedis(t)
	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx, "sync:src-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("reputation:lock:sync:src-1"))

	_, ok, err = locker.TryLock(ctx, "sync:src-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other keys are independent.
	_, ok, err = locker.TryLock(ctx, "sync:src-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("reputation:lock:sync:src-1"))

	_, ok, err = locker.TryLock(ctx, "sync:src-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	locker, mr := setupTestRedis(t)
	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx, "sync:src-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = locker.TryLock(ctx, "sync:src-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, release(ctx), ErrLockLost)
	assert.True(t, mr.Exists("reputation:lock:sync:src-1"), "new holder keeps its lease")
}

func TestLocker_RedisDown(t *testing.T) {
	locker, mr := setupTestRedis(t)
	mr.Close()

	_, ok, err := locker.TryLock(context.Background(), "sync:src-1", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}
