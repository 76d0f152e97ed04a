package event

import (
	"context"

	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id int64) (*Event, error)

	// List はイベント一覧を取得する
	List(ctx context.Context, limit, offset int) ([]*Event, error)

	// Delete はイベントを削除する（予約はカスケード削除される）
	Delete(ctx context.Context, id int64) error

	// LockForBooking は予約トランザクション内でイベント行をロックし、
	// 総座席数を返す。同一イベントに対する容量チェックと予約挿入を
	// 直列化するための行ロック（SELECT ... FOR UPDATE）
	LockForBooking(ctx context.Context, tx transaction.Tx, id int64) (totalSeats int, err error)
}
