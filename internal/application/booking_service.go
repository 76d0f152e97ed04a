package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/config"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-event-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-booking/internal/pkg/metrics"
)

// DedupCache は重複予約ヒントの読み取りインターフェース
// ヒットは即時拒否の根拠になるが、ミスは何も保証しない
type DedupCache interface {
	Exists(ctx context.Context, eventID int64, userID string) (bool, error)
}

// CachePopulator は重複予約マーカーの非同期書き込みを受け付けるインターフェース
type CachePopulator interface {
	Enqueue(eventID int64, userID string)
}

// BookingService は容量チェック付きの予約処理を統括する
type BookingService struct {
	txManager   transaction.Manager
	bookingRepo booking.Repository
	eventRepo   event.Repository
	cache       DedupCache
	cacheWriter CachePopulator
	lockManager *redisinfra.EventLockManager
	cfg         config.BookingConfig
}

// NewBookingService はBookingServiceを作成する
// cache / cacheWriter / lockManager は nil を許容する（Redisなしで動作可能）
func NewBookingService(
	txm transaction.Manager,
	br booking.Repository,
	er event.Repository,
	cache DedupCache,
	cacheWriter CachePopulator,
	lm *redisinfra.EventLockManager,
	cfg config.BookingConfig,
) *BookingService {
	return &BookingService{
		txManager:   txm,
		bookingRepo: br,
		eventRepo:   er,
		cache:       cache,
		cacheWriter: cacheWriter,
		lockManager: lm,
		cfg:         cfg,
	}
}

// Reserve はイベントの座席を1席予約する
//
// 手順:
//  1. キャッシュの重複ヒントを確認（ヒット時はストアに触れずに拒否）
//  2. トランザクション内でイベント行をロックし、容量と重複を検証して挿入
//  3. コミット後にマーカーを非同期でキャッシュへ書き込む
//
// 同一 (eventID, userID) の予約はストアの一意制約が最終的に保証し、
// イベントごとの合計予約数が総座席数を超えないことは行ロック下の
// カウント検証が保証する
func (s *BookingService) Reserve(ctx context.Context, eventID int64, userID string) (*booking.Booking, error) {
	if eventID <= 0 {
		s.countAttempt("invalid")
		return nil, booking.ErrInvalidEventID
	}
	if userID == "" {
		s.countAttempt("invalid")
		return nil, booking.ErrUserIDRequired
	}

	// 高速パス: 既知の重複であればストアへのラウンドトリップを省略する
	// キャッシュ障害はミス扱いで続行（受理の根拠には決してならない）
	if s.hitDedupCache(ctx, eventID, userID) {
		s.countAttempt("duplicate")
		return nil, booking.ErrDuplicateBooking
	}

	// イベント単位のロックで同一イベントへの要求を間引く（競合緩和のみ、
	// 正しさは後続の行ロックと一意制約が担う）
	if s.lockManager != nil {
		lock, err := s.acquireEventLock(ctx, eventID)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockNotAcquired) {
				s.countAttempt("lock_failed")
				return nil, fmt.Errorf("イベントが他のリクエストを処理中です: %w", booking.ErrStoreUnavailable)
			}
			// Redis障害はロックなしで続行する
			logger.Warn("イベントロック取得に失敗、ロックなしで続行",
				zap.Int64("event_id", eventID), zap.Error(err))
		} else {
			defer s.releaseEventLock(lock)
		}
	}

	b, err := s.reserveInTx(ctx, eventID, userID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrDuplicateBooking):
			// ストアが重複を証明済みなのでマーカーを投入してよい
			s.populateDedupCache(eventID, userID)
			s.countAttempt("duplicate")
		case errors.Is(err, booking.ErrCapacityExceeded):
			s.countAttempt("capacity_exceeded")
		case errors.Is(err, event.ErrEventNotFound):
			s.countAttempt("not_found")
		case errors.Is(err, booking.ErrStoreUnavailable):
			s.countAttempt("transient_error")
		default:
			s.countAttempt("error")
		}
		return nil, err
	}

	s.populateDedupCache(eventID, userID)
	s.countAttempt("success")
	return b, nil
}

// reserveInTx は予約トランザクション本体
// すべての失敗パスで defer によりロールバックされる
func (s *BookingService) reserveInTx(ctx context.Context, eventID int64, userID string) (*booking.Booking, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	tx, err := s.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// 行ロックにより、残席1の際に並行トランザクションが両方とも
	// 満席前のカウントを観測することを防ぐ
	totalSeats, err := s.eventRepo.LockForBooking(txCtx, tx, eventID)
	if err != nil {
		return nil, err
	}

	// 重複判定を満席判定より先に行う
	// 予約済みユーザーの再予約は、イベントが満席でも常に重複として拒否する
	exists, err := s.bookingRepo.Exists(txCtx, tx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, booking.ErrDuplicateBooking
	}

	booked, err := s.bookingRepo.CountByEvent(txCtx, tx, eventID)
	if err != nil {
		return nil, err
	}
	if booked >= totalSeats {
		return nil, booking.ErrCapacityExceeded
	}

	b := booking.NewBooking(eventID, userID)
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := s.bookingRepo.Create(txCtx, tx, b); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

// ListUserBookings はユーザーの予約一覧をイベント名付きで取得する
func (s *BookingService) ListUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.WithEventName, error) {
	if userID == "" {
		return nil, booking.ErrUserIDRequired
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookingRepo.ListByUser(ctx, userID, limit, offset)
}

// hitDedupCache はキャッシュの重複ヒントを確認する
// キャッシュ障害・タイムアウトはミス扱い（ログに記録して続行）
func (s *BookingService) hitDedupCache(ctx context.Context, eventID int64, userID string) bool {
	if s.cache == nil {
		return false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, s.cfg.CacheTimeout)
	defer cancel()

	m := metrics.Get()
	exists, err := s.cache.Exists(cacheCtx, eventID, userID)
	if err != nil {
		logger.Warn("重複予約キャッシュの参照に失敗、ミス扱いで続行",
			zap.Int64("event_id", eventID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		if m != nil {
			m.DedupCacheOpsTotal.WithLabelValues("get", "error").Inc()
		}
		return false
	}
	if m != nil {
		if exists {
			m.DedupCacheOpsTotal.WithLabelValues("get", "hit").Inc()
		} else {
			m.DedupCacheOpsTotal.WithLabelValues("get", "miss").Inc()
		}
	}
	return exists
}

// populateDedupCache はマーカー書き込みを非同期キューに投入する
func (s *BookingService) populateDedupCache(eventID int64, userID string) {
	if s.cacheWriter == nil {
		return
	}
	s.cacheWriter.Enqueue(eventID, userID)
}

func (s *BookingService) acquireEventLock(ctx context.Context, eventID int64) (*redisinfra.EventLock, error) {
	start := time.Now()
	lock, err := s.lockManager.AcquireWithRetry(ctx, eventID, s.cfg.LockTTL, s.cfg.LockRetries, s.cfg.LockRetryDelay)
	if m := metrics.Get(); m != nil {
		status := "success"
		if err != nil {
			status = "failed"
		}
		m.EventLockDuration.WithLabelValues("acquire", status).Observe(time.Since(start).Seconds())
	}
	return lock, err
}

func (s *BookingService) releaseEventLock(lock *redisinfra.EventLock) {
	start := time.Now()
	err := lock.Release(context.Background())
	if err != nil && !errors.Is(err, redisinfra.ErrLockNotOwned) {
		logger.Warn("イベントロック解放に失敗", zap.Error(err))
	}
	if m := metrics.Get(); m != nil {
		status := "success"
		if err != nil {
			status = "failed"
		}
		m.EventLockDuration.WithLabelValues("release", status).Observe(time.Since(start).Seconds())
	}
}

func (s *BookingService) countAttempt(result string) {
	if m := metrics.Get(); m != nil {
		m.BookingAttemptsTotal.WithLabelValues(result).Inc()
	}
}
