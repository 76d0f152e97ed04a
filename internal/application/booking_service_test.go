package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-booking/internal/config"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-event-booking/internal/pkg/metrics"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockBookingRepository implements booking.Repository
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	args := m.Called(ctx, tx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) Exists(ctx context.Context, tx transaction.Tx, eventID int64, userID string) (bool, error) {
	args := m.Called(ctx, tx, eventID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) CountByEvent(ctx context.Context, tx transaction.Tx, eventID int64) (int, error) {
	args := m.Called(ctx, tx, eventID)
	return args.Int(0), args.Error(1)
}

func (m *MockBookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*booking.WithEventName, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.WithEventName), args.Error(1)
}

// MockEventRepository implements event.Repository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, e *event.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventRepository) List(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEventRepository) LockForBooking(ctx context.Context, tx transaction.Tx, id int64) (int, error) {
	args := m.Called(ctx, tx, id)
	return args.Int(0), args.Error(1)
}

// MockDedupCache implements DedupCache
type MockDedupCache struct {
	mock.Mock
}

func (m *MockDedupCache) Exists(ctx context.Context, eventID int64, userID string) (bool, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Bool(0), args.Error(1)
}

// MockCachePopulator implements CachePopulator
type MockCachePopulator struct {
	mock.Mock
}

func (m *MockCachePopulator) Enqueue(eventID int64, userID string) {
	m.Called(eventID, userID)
}

// === Helpers ===

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		DedupTTL:     time.Hour,
		CacheTimeout: 100 * time.Millisecond,
		TxTimeout:    5 * time.Second,
	}
}

type serviceMocks struct {
	txManager *MockTxManager
	tx        *MockTx
	bookings  *MockBookingRepository
	events    *MockEventRepository
	cache     *MockDedupCache
	populator *MockCachePopulator
}

func newBookingService(t *testing.T) (*BookingService, *serviceMocks) {
	t.Helper()
	m := &serviceMocks{
		txManager: new(MockTxManager),
		tx:        new(MockTx),
		bookings:  new(MockBookingRepository),
		events:    new(MockEventRepository),
		cache:     new(MockDedupCache),
		populator: new(MockCachePopulator),
	}
	svc := NewBookingService(m.txManager, m.bookings, m.events, m.cache, m.populator, nil, testBookingConfig())
	return svc, m
}

// === Tests ===

func TestBookingService_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("正常に予約できる", func(t *testing.T) {
		svc, m := newBookingService(t)

		m.cache.On("Exists", mock.Anything, int64(1), "user-alice").Return(false, nil)
		m.txManager.On("Begin", mock.Anything).Return(m.tx, nil)
		m.events.On("LockForBooking", mock.Anything, m.tx, int64(1)).Return(10, nil)
		m.bookings.On("CountByEvent", mock.Anything, m.tx, int64(1)).Return(3, nil)
		m.bookings.On("Exists", mock.Anything, m.tx, int64(1), "user-alice").Return(false, nil)
		m.bookings.On("Create", mock.Anything, m.tx, mock.AnythingOfType("*booking.Booking")).
			Run(func(args mock.Arguments) {
				b := args.Get(2).(*booking.Booking)
				b.ID = 42
				b.CreatedAt = time.Now()
			}).Return(nil)
		m.tx.On("Commit").Return(nil)
		m.tx.On("Rollback").Return(nil)
		m.populator.On("Enqueue", int64(1), "user-alice").Return()

		b, err := svc.Reserve(ctx, 1, "user-alice")

		require.NoError(t, err)
		assert.Equal(t, int64(42), b.ID)
		assert.Equal(t, int64(1), b.EventID)
		assert.Equal(t, "user-alice", b.UserID)
		assert.False(t, b.CreatedAt.IsZero())

		m.populator.AssertCalled(t, "Enqueue", int64(1), "user-alice")
		m.tx.AssertCalled(t, "Commit")
	})

	t.Run("キャッシュヒット時はストアに触れずに拒否する", func(t *testing.T) {
		svc, m := newBookingService(t)

		m.cache.On("Exists", mock.Anything, int64(1), "user-alice").Return(true, nil)

		b, err := svc.Reserve(ctx, 1, "user-alice")

		assert.ErrorIs(t, err, booking.ErrDuplicateBooking)
		assert.Nil(t, b)
		m.txManager.AssertNotCalled(t, "Begin", mock.Anything)
		m.populator.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("キャッシュ障害はミス扱いで予約は成功する", func(t *testing.T) {
		svc, m := newBookingService(t)

		m.cache.On("Exists", mock.Anything, int64(1), "user-alice").Return(false, errors.New("redis down"))
		m.txManager.On("Begin", mock.Anything).Return(m.tx, nil)
		m.events.On("LockForBooking", mock.Anything, m.tx, int64(1)).Return(10, nil)
		m.bookings.On("CountByEvent", mock.Anything, m.tx, int64(1)).Return(0, nil)
		m.bookings.On("Exists", mock.Anything, m.tx, int64(1), "user-alice").Return(false, nil)
		m.bookings.On("Create", mock.Anything, m.tx, mock.AnythingOfType("*booking.Booking")).Return(nil)
		m.tx.On("Commit").Return(nil)
		m.tx.On("Rollback").Return(nil)
		m.populator.On("Enqueue", int64(1), "user-alice").Return()

		_, err := svc.Reserve(ctx, 1, "user-alice")

		require.NoError(t, err)
	})

	t.Run("存在しないイベントはEventNotFound", func(t *testing.T) {
		svc, m := newBookingService(t)

		m.cache.On("Exists", mock.Anything, int64(999), "user-dave").Return(false, nil)
		m.txManager.On("Begin", mock.Anything).Return(m.tx, nil)
		m.events.On("LockForBooking", mock.Anything, m.tx, int64(999)).Return(0, event.ErrEventNotFound)
		m.tx.On("Rollback").Return(nil)

		b, err := svc.Reserve(ctx, 999, "user-dave")

		assert.ErrorIs(t, err, event.ErrEventNotFound)
		assert.Nil(t, b)
		m.tx.AssertCalled(t, "Rollback")
		m.tx.AssertNotCalled(t, "Commit")
	})

	t.Run("満席のイベントはCapacityExceededで挿入されない", func(t *testing.T) {
		svc, m := newBookingService(t)

		m.cache.On("Exists", mock.Anything, int64(1), "user-carol").Return(false, nil)
		m.txManager.On("Begin", mock.Anything).Return(m.tx, nil)
		m.events.On("LockForBooking", mock.Anything, m.tx, int64(1)).Return(2, nil)
		m.bookings.On("Exists", mock.Anything, m.tx, int64(1), "user-carol").Return(false, nil)
		m.bookings.On("CountByEvent", mock.Anything, m.tx, int64(1)).Return(2, nil)
		m.tx.On("Rollback").Return(nil)

		b, err := svc.Reserve(ctx, 1, "user-carol")

		assert.ErrorIs(t, err, booking.ErrCapacityExceeded)
		assert.Nil(t, b)
		m.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		m.tx.AssertCalled(t, "Rollback")
		m.populator.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("トランザクション内で重複検出時はマーカーを投入して拒否", func(t *testing.T) {
		svc, m := newBookingService(t)

		m.cache.On("Exists", mock.Anything, int64(1), "user-alice").Return(false, nil)
		m.txManager.On("Begin", mock.Anything).Return(m.tx, nil)
		m.events.On("LockForBooking", mock.Anything, m.tx, int64(1)).Return(10, nil)
		m.bookings.On("Exists", mock.Anything, m.tx, int64(1), "user-alice").Return(true, nil)
		m.tx.On("Rollback").Return(nil)
		m.populator.On("Enqueue", int64(1), "user-alice").Return()

		b, err := svc.Reserve(ctx, 1, "user-alice")

		assert.ErrorIs(t, err, booking.ErrDuplicateBooking)
		assert.Nil(t, b)
		m.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		m.bookings.AssertNotCalled(t, "CountByEvent", mock.Anything, mock.Anything, mock.Anything)
		m.populator.AssertCalled(t, "Enqueue", int64(1), "user-alice")
	})

	t.Run("満席イベントでも予約済みユーザーの再予約はDuplicateBookingになる", func(t *testing.T) {
		// キャッシュが空の状態で、満席かつ予約済みの両条件が重なるケース
		// 重複判定が満席判定より優先される
		svc, m := newBookingService(t)

		m.cache.On("Exists", mock.Anything, int64(1), "user-alice").Return(false, nil)
		m.txManager.On("Begin", mock.Anything).Return(m.tx, nil)
		m.events.On("LockForBooking", mock.Anything, m.tx, int64(1)).Return(2, nil)
		m.bookings.On("Exists", mock.Anything, m.tx, int64(1), "user-alice").Return(true, nil)
		m.tx.On("Rollback").Return(nil)
		m.populator.On("Enqueue", int64(1), "user-alice").Return()

		b, err := svc.Reserve(ctx, 1, "user-alice")

		assert.ErrorIs(t, err, booking.ErrDuplicateBooking)
		assert.NotErrorIs(t, err, booking.ErrCapacityExceeded)
		assert.Nil(t, b)
		m.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("挿入時の一意制約違反はDuplicateBookingに分類される", func(t *testing.T) {
		// トランザクション内チェックをすり抜けた並行挿入のケース
		svc, m := newBookingService(t)

		m.cache.On("Exists", mock.Anything, int64(1), "user-alice").Return(false, nil)
		m.txManager.On("Begin", mock.Anything).Return(m.tx, nil)
		m.events.On("LockForBooking", mock.Anything, m.tx, int64(1)).Return(10, nil)
		m.bookings.On("CountByEvent", mock.Anything, m.tx, int64(1)).Return(1, nil)
		m.bookings.On("Exists", mock.Anything, m.tx, int64(1), "user-alice").Return(false, nil)
		m.bookings.On("Create", mock.Anything, m.tx, mock.AnythingOfType("*booking.Booking")).
			Return(booking.ErrDuplicateBooking)
		m.tx.On("Rollback").Return(nil)
		m.populator.On("Enqueue", int64(1), "user-alice").Return()

		b, err := svc.Reserve(ctx, 1, "user-alice")

		assert.ErrorIs(t, err, booking.ErrDuplicateBooking)
		assert.Nil(t, b)
		m.populator.AssertCalled(t, "Enqueue", int64(1), "user-alice")
	})

	t.Run("コミット失敗はリトライ可能エラーとして返る", func(t *testing.T) {
		svc, m := newBookingService(t)

		m.cache.On("Exists", mock.Anything, int64(1), "user-alice").Return(false, nil)
		m.txManager.On("Begin", mock.Anything).Return(m.tx, nil)
		m.events.On("LockForBooking", mock.Anything, m.tx, int64(1)).Return(10, nil)
		m.bookings.On("CountByEvent", mock.Anything, m.tx, int64(1)).Return(0, nil)
		m.bookings.On("Exists", mock.Anything, m.tx, int64(1), "user-alice").Return(false, nil)
		m.bookings.On("Create", mock.Anything, m.tx, mock.AnythingOfType("*booking.Booking")).Return(nil)
		m.tx.On("Commit").Return(fmt.Errorf("コミットに失敗: %w", booking.ErrStoreUnavailable))
		m.tx.On("Rollback").Return(nil)

		b, err := svc.Reserve(ctx, 1, "user-alice")

		assert.ErrorIs(t, err, booking.ErrStoreUnavailable)
		assert.Nil(t, b)
		// 結果が確定していないためマーカーは書かない
		m.populator.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("不正なイベントIDは即時拒否", func(t *testing.T) {
		svc, m := newBookingService(t)

		b, err := svc.Reserve(ctx, 0, "user-alice")

		assert.ErrorIs(t, err, booking.ErrInvalidEventID)
		assert.Nil(t, b)
		m.cache.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, mock.Anything)
		m.txManager.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("空のユーザーIDは即時拒否", func(t *testing.T) {
		svc, m := newBookingService(t)

		b, err := svc.Reserve(ctx, 1, "")

		assert.ErrorIs(t, err, booking.ErrUserIDRequired)
		assert.Nil(t, b)
		m.txManager.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("入力不備はinvalidとして計数される", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		metrics.Set(metrics.NewWithRegistry(reg))
		defer metrics.Set(nil)

		svc, _ := newBookingService(t)

		_, err := svc.Reserve(ctx, 0, "user-alice")
		assert.ErrorIs(t, err, booking.ErrInvalidEventID)

		_, err = svc.Reserve(ctx, 1, "")
		assert.ErrorIs(t, err, booking.ErrUserIDRequired)

		families, gerr := reg.Gather()
		require.NoError(t, gerr)

		var invalidCount float64
		for _, f := range families {
			if f.GetName() != "booking_attempts_total" {
				continue
			}
			for _, mf := range f.GetMetric() {
				for _, l := range mf.GetLabel() {
					if l.GetName() == "result" && l.GetValue() == "invalid" {
						invalidCount = mf.GetCounter().GetValue()
					}
				}
			}
		}
		assert.Equal(t, float64(2), invalidCount)
	})
}

func TestBookingService_ListUserBookings(t *testing.T) {
	ctx := context.Background()

	t.Run("ユーザーの予約一覧を取得できる", func(t *testing.T) {
		svc, m := newBookingService(t)

		expected := []*booking.WithEventName{
			{
				Booking:   booking.Booking{ID: 2, EventID: 1, UserID: "user-alice", CreatedAt: time.Now()},
				EventName: "春のコンサート",
			},
			{
				Booking:   booking.Booking{ID: 1, EventID: 2, UserID: "user-alice", CreatedAt: time.Now().Add(-time.Hour)},
				EventName: "テックカンファレンス",
			},
		}
		m.bookings.On("ListByUser", mock.Anything, "user-alice", 20, 0).Return(expected, nil)

		result, err := svc.ListUserBookings(ctx, "user-alice", 0, 0)

		require.NoError(t, err)
		assert.Equal(t, expected, result)
	})

	t.Run("limitの上限は100", func(t *testing.T) {
		svc, m := newBookingService(t)

		m.bookings.On("ListByUser", mock.Anything, "user-alice", 100, 0).Return([]*booking.WithEventName{}, nil)

		_, err := svc.ListUserBookings(ctx, "user-alice", 500, -3)

		require.NoError(t, err)
		m.bookings.AssertCalled(t, "ListByUser", mock.Anything, "user-alice", 100, 0)
	})

	t.Run("空のユーザーIDは拒否", func(t *testing.T) {
		svc, m := newBookingService(t)

		result, err := svc.ListUserBookings(ctx, "", 20, 0)

		assert.ErrorIs(t, err, booking.ErrUserIDRequired)
		assert.Nil(t, result)
		m.bookings.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
