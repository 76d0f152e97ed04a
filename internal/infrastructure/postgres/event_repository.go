package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID         int64     `db:"id"`
	Name       string    `db:"name"`
	TotalSeats int       `db:"total_seats"`
	CreatedAt  time.Time `db:"created_at"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	return &event.Event{
		ID:         r.ID,
		Name:       r.Name,
		TotalSeats: r.TotalSeats,
		CreatedAt:  r.CreatedAt,
	}
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (name, total_seats, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, e.Name, e.TotalSeats, e.CreatedAt).Scan(&e.ID); err != nil {
		return classifyError(err, "イベント作成に失敗しました")
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	query := `SELECT id, name, total_seats, created_at FROM events WHERE id = $1`

	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, classifyError(err, "イベント取得に失敗しました")
	}
	return row.toEntity(), nil
}

// List はイベント一覧を作成日時の降順で取得する
func (r *EventRepository) List(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	query := `
		SELECT id, name, total_seats, created_at
		FROM events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, classifyError(err, "イベント一覧取得に失敗しました")
	}

	events := make([]*event.Event, len(rows))
	for i, row := range rows {
		events[i] = row.toEntity()
	}
	return events, nil
}

// Delete はイベントを削除する（予約はON DELETE CASCADEで削除される）
func (r *EventRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return classifyError(err, "イベント削除に失敗しました")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classifyError(err, "削除結果の確認に失敗しました")
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// LockForBooking はイベント行をFOR UPDATEでロックし、総座席数を返す
// 同一イベントへの容量チェック→挿入のシーケンスをトランザクション間で
// 直列化する。コミットまたはロールバックまでロックは保持される
func (r *EventRepository) LockForBooking(ctx context.Context, tx transaction.Tx, id int64) (int, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return 0, errors.New("トランザクションが不正です")
	}

	var totalSeats int
	query := `SELECT total_seats FROM events WHERE id = $1 FOR UPDATE`
	if err := sqlxTx.GetContext(ctx, &totalSeats, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, event.ErrEventNotFound
		}
		return 0, classifyError(err, "イベント行ロックに失敗しました")
	}
	return totalSeats, nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
