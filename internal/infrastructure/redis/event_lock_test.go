package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLockManager_Acquire(t *testing.T) {
	client := setupTestRedis(t)

	ctx := context.Background()
	manager := NewEventLockManager(client)

	t.Run("ロックを取得できる", func(t *testing.T) {
		lock, err := manager.Acquire(ctx, 8001, 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, lock)
		defer lock.Release(ctx)
	})

	t.Run("同じイベントのロックは取得できない", func(t *testing.T) {
		lock1, err := manager.Acquire(ctx, 8002, 5*time.Second)
		require.NoError(t, err)
		defer lock1.Release(ctx)

		lock2, err := manager.Acquire(ctx, 8002, 5*time.Second)
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Nil(t, lock2)
	})

	t.Run("解放後は再取得できる", func(t *testing.T) {
		lock1, err := manager.Acquire(ctx, 8003, 5*time.Second)
		require.NoError(t, err)

		err = lock1.Release(ctx)
		require.NoError(t, err)

		lock2, err := manager.Acquire(ctx, 8003, 5*time.Second)
		require.NoError(t, err)
		defer lock2.Release(ctx)
	})

	t.Run("二重解放はErrLockNotOwned", func(t *testing.T) {
		lock, err := manager.Acquire(ctx, 8004, 5*time.Second)
		require.NoError(t, err)

		require.NoError(t, lock.Release(ctx))
		assert.ErrorIs(t, lock.Release(ctx), ErrLockNotOwned)
	})

	t.Run("リトライで取得できる", func(t *testing.T) {
		lock1, err := manager.Acquire(ctx, 8005, 500*time.Millisecond)
		require.NoError(t, err)

		go func() {
			time.Sleep(300 * time.Millisecond)
			lock1.Release(ctx)
		}()

		lock2, err := manager.AcquireWithRetry(ctx, 8005, 5*time.Second, 5, 100*time.Millisecond)
		require.NoError(t, err)
		defer lock2.Release(ctx)
	})
}
