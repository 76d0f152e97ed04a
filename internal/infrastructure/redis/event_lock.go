package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// EventLock はイベント単位のRedisロック
// データベースの行ロックの手前で同一イベントへの予約要求を間引くための
// 競合緩和策であり、正しさの根拠ではない
type EventLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// EventLockManager はイベントロックを管理する
type EventLockManager struct {
	client *redis.Client
}

func NewEventLockManager(client *redis.Client) *EventLockManager {
	return &EventLockManager{client: client}
}

// Acquire はイベントのロックを取得する
func (m *EventLockManager) Acquire(ctx context.Context, eventID int64, ttl time.Duration) (*EventLock, error) {
	lockKey := fmt.Sprintf("lock:event:%d", eventID)
	lockValue := uuid.New().String()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &EventLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// AcquireWithRetry はリトライ付きでイベントのロックを取得する
func (m *EventLockManager) AcquireWithRetry(ctx context.Context, eventID int64, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*EventLock, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lock, err := m.Acquire(ctx, eventID, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// Release はロックを解放する（Lua スクリプトで所有者確認と削除をアトミックに実行）
func (l *EventLock) Release(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}
