package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, "test:"), mr
}

func TestTryLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t)

	token, ok, err := locker.TryLock(ctx, "invoice:number", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:invoice:number"))

	_, ok, err = locker.TryLock(ctx, "invoice:number", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "invoice:number", token))
	assert.False(t, mr.Exists("test:invoice:number"))
}

func TestReleaseIgnoresForeignToken(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t)

	_, ok, err := locker.TryLock(ctx, "invoice:status:1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.Release(ctx, "invoice:status:1", "someone-else"))
	assert.True(t, mr.Exists("test:invoice:status:1"))
}

func TestTryLockValidatesInput(t *testing.T) {
	ctx := context.Background()
	locker, _ := newTestLocker(t)

	_, _, err := locker.TryLock(ctx, "", time.Second)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, _, err = locker.TryLock(ctx, "k", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)

	var nilLocker *Locker
	_, _, err = nilLocker.TryLock(ctx, "k", time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGuardSerializesSections(t *testing.T) {
	locker, _ := newTestLocker(t)
	guard := NewGuard(locker, zap.NewNop())

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := guard.WithLock(context.Background(), "invoice:number", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					seen := atomic.LoadInt32(&maxSeen)
					if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxSeen))
}

func TestGuardWithoutLockerRunsDirectly(t *testing.T) {
	guard := NewGuard(nil, nil)
	want := errors.New("boom")

	called := false
	err := guard.WithLock(context.Background(), "k", func(ctx context.Context) error {
		called = true
		return want
	})
	assert.True(t, called)
	assert.ErrorIs(t, err, want)
	assert.False(t, guard.Enabled())
}

func TestGuardTimesOutWhileHeld(t *testing.T) {
	ctx := context.Background()
	locker, _ := newTestLocker(t)
	guard := NewGuard(locker, zap.NewNop())
	guard.waitTimeout = 50 * time.Millisecond

	_, ok, err := locker.TryLock(ctx, "invoice:number", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = guard.WithLock(ctx, "invoice:number", func(ctx context.Context) error {
		t.Fatalf("section must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestGuardHoldsKeyForRequestedTTL(t *testing.T) {
	locker, mr := newTestLocker(t)
	guard := NewGuard(locker, zap.NewNop())

	err := guard.WithLockTTL(context.Background(), "scheduler:overdue_sweep", 6*time.Minute, func(ctx context.Context) error {
		assert.Equal(t, 6*time.Minute, mr.TTL("test:scheduler:overdue_sweep"))
		mr.FastForward(DefaultTTL + time.Second)
		assert.True(t, mr.Exists("test:scheduler:overdue_sweep"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:scheduler:overdue_sweep"))
}
