package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-booking/internal/pkg/metrics"
)

// DedupMarker は重複予約マーカーを書き込むインターフェース
type DedupMarker interface {
	MarkBooked(ctx context.Context, eventID int64, userID string, ttl time.Duration) error
}

type markTask struct {
	eventID int64
	userID  string
}

// CacheWriter は重複予約キャッシュへの書き込みを非同期に行うワーカー
// 予約の結果が確定した後のベストエフォート処理であり、書き込み失敗が
// 確定済みの予約結果に影響することはない
type CacheWriter struct {
	cache        DedupMarker
	ttl          time.Duration
	writeTimeout time.Duration
	tasks        chan markTask
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// NewCacheWriter は新しいCacheWriterを作成する
func NewCacheWriter(cache DedupMarker, queueSize int, ttl, writeTimeout time.Duration) *CacheWriter {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &CacheWriter{
		cache:        cache,
		ttl:          ttl,
		writeTimeout: writeTimeout,
		tasks:        make(chan markTask, queueSize),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Enqueue はマーカー書き込みタスクを投入する
// キューが満杯の場合はブロックせずに破棄する（キャッシュは助言的なため）
func (w *CacheWriter) Enqueue(eventID int64, userID string) {
	select {
	case w.tasks <- markTask{eventID: eventID, userID: userID}:
	default:
		logger.Warn("キャッシュ書き込みキューが満杯のためタスクを破棄",
			zap.Int64("event_id", eventID),
			zap.String("user_id", userID),
		)
		if m := metrics.Get(); m != nil {
			m.DedupCacheOpsTotal.WithLabelValues("set", "dropped").Inc()
		}
	}
}

// Start はワーカーループを開始する
func (w *CacheWriter) Start(ctx context.Context) {
	logger.Info("キャッシュ書き込みワーカー開始",
		zap.Duration("ttl", w.ttl),
		zap.Duration("write_timeout", w.writeTimeout),
	)

	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("キャッシュ書き込みワーカー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("キャッシュ書き込みワーカー停止（シグナル受信）")
			w.drain(ctx)
			return
		case task := <-w.tasks:
			w.write(ctx, task)
		}
	}
}

// drain は停止シグナル受信時点でキューに残っているタスクを書き切る
func (w *CacheWriter) drain(ctx context.Context) {
	for {
		select {
		case task := <-w.tasks:
			w.write(ctx, task)
		default:
			return
		}
	}
}

// Stop はワーカーを停止する
// キューに残っているタスクを書き切ってから戻る
func (w *CacheWriter) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// write はマーカーを書き込む。失敗はログに記録して握りつぶす
func (w *CacheWriter) write(ctx context.Context, task markTask) {
	writeCtx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	defer cancel()

	m := metrics.Get()
	if err := w.cache.MarkBooked(writeCtx, task.eventID, task.userID, w.ttl); err != nil {
		logger.Warn("重複予約マーカーの書き込みに失敗",
			zap.Int64("event_id", task.eventID),
			zap.String("user_id", task.userID),
			zap.Error(err),
		)
		if m != nil {
			m.DedupCacheOpsTotal.WithLabelValues("set", "error").Inc()
		}
		return
	}
	if m != nil {
		m.DedupCacheOpsTotal.WithLabelValues("set", "ok").Inc()
	}
}
