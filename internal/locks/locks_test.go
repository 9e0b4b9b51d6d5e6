package locks

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryTryLock(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	release, err := m.TryLock(ctx, "doc:1", time.Minute)
	require.NoError(t, err)

	_, err = m.TryLock(ctx, "doc:1", time.Minute)
	require.ErrorIs(t, err, ErrHeld)

	other, err := m.TryLock(ctx, "doc:2", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := m.TryLock(ctx, "doc:1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemoryLockExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemory()
	m.now = func() time.Time { return now }
	stale, err := m.TryLock(ctx, "doc:1", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := m.TryLock(ctx, "doc:1", time.Second)
	require.NoError(t, err)

	// the expired holder must not free the new holder's lock
	stale()
	_, err = m.TryLock(ctx, "doc:1", time.Second)
	require.ErrorIs(t, err, ErrHeld)
	fresh()
}

func TestRedisTryLock(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	l := NewRedis(client, "test:lock:")
	ctx := context.Background()

	release, err := l.TryLock(ctx, "doc:1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, m.Exists("test:lock:doc:1"))

	_, err = l.TryLock(ctx, "doc:1", 10*time.Second)
	require.ErrorIs(t, err, ErrHeld)

	release()
	require.False(t, m.Exists("test:lock:doc:1"))

	_, err = l.TryLock(ctx, "doc:2", time.Second)
	require.NoError(t, err)
	m.FastForward(2 * time.Second)
	_, err = l.TryLock(ctx, "doc:2", time.Second)
	require.NoError(t, err)
}
