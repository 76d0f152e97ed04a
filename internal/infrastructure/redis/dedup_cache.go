package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupCache は重複予約の助言的ヒントを管理する
// エントリの不在は未予約を意味しない。存在は過去の重複試行の強いシグナルであり、
// ストアへのアクセスを省略した即時拒否にのみ使用される。
// 書き込みはストアが予約状態を確定した後にのみ行う
type DedupCache struct {
	client *redis.Client
}

// NewDedupCache は新しいDedupCacheインスタンスを作成する
func NewDedupCache(client *redis.Client) *DedupCache {
	return &DedupCache{client: client}
}

// Exists は (eventID, userID) のエントリが存在するかを返す
func (c *DedupCache) Exists(ctx context.Context, eventID int64, userID string) (bool, error) {
	key := c.dedupKey(eventID, userID)
	_, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return true, nil
}

// MarkBooked は (eventID, userID) の予約済みマーカーをTTL付きで書き込む
// 同じ値を常に書くため書き込みは冪等
func (c *DedupCache) MarkBooked(ctx context.Context, eventID int64, userID string, ttl time.Duration) error {
	key := c.dedupKey(eventID, userID)
	if err := c.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は (eventID, userID) のエントリを削除する（テスト・運用用）
func (c *DedupCache) Invalidate(ctx context.Context, eventID int64, userID string) error {
	key := c.dedupKey(eventID, userID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *DedupCache) dedupKey(eventID int64, userID string) string {
	return fmt.Sprintf("booking:dedup:%d:%s", eventID, userID)
}
