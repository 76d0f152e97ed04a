package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

type bookingRow struct {
	ID        int64     `db:"id"`
	EventID   int64     `db:"event_id"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	EventName string    `db:"event_name"`
}

// BookingRepository は予約リポジトリのPostgreSQL実装
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository はBookingRepositoryを作成する
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create は予約行を挿入し、ストアが割り当てたIDと作成日時をエンティティに反映する
// (event_id, user_id) の一意制約違反は ErrDuplicateBooking として返す。
// トランザクション内チェックをすり抜けた並行挿入の最終的な安全網
func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return errors.New("トランザクションが不正です")
	}

	query := `
		INSERT INTO bookings (event_id, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	if err := sqlxTx.QueryRowContext(ctx, query, b.EventID, b.UserID).Scan(&b.ID, &b.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return booking.ErrDuplicateBooking
		}
		return classifyError(err, "予約作成に失敗しました")
	}
	return nil
}

// Exists は (eventID, userID) の予約が存在するかをトランザクション内で確認する
func (r *BookingRepository) Exists(ctx context.Context, tx transaction.Tx, eventID int64, userID string) (bool, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return false, errors.New("トランザクションが不正です")
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE event_id = $1 AND user_id = $2)`
	if err := sqlxTx.GetContext(ctx, &exists, query, eventID, userID); err != nil {
		return false, classifyError(err, "予約存在確認に失敗しました")
	}
	return exists, nil
}

// CountByEvent はイベントのコミット済み予約数をトランザクション内で取得する
func (r *BookingRepository) CountByEvent(ctx context.Context, tx transaction.Tx, eventID int64) (int, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return 0, errors.New("トランザクションが不正です")
	}

	var count int
	query := `SELECT COUNT(*) FROM bookings WHERE event_id = $1`
	if err := sqlxTx.GetContext(ctx, &count, query, eventID); err != nil {
		return 0, classifyError(err, "予約数取得に失敗しました")
	}
	return count, nil
}

// ListByUser はユーザーの予約一覧をイベント名付き・作成日時の降順で取得する
func (r *BookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*booking.WithEventName, error) {
	query := `
		SELECT b.id, b.event_id, b.user_id, b.created_at, e.name AS event_name
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3
	`

	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, classifyError(err, "予約一覧取得に失敗しました")
	}

	result := make([]*booking.WithEventName, len(rows))
	for i, row := range rows {
		result[i] = &booking.WithEventName{
			Booking: booking.Booking{
				ID:        row.ID,
				EventID:   row.EventID,
				UserID:    row.UserID,
				CreatedAt: row.CreatedAt,
			},
			EventName: row.EventName,
		}
	}
	return result, nil
}

var _ booking.Repository = (*BookingRepository)(nil)
