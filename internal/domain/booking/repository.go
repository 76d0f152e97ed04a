package booking

import (
	"context"

	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を挿入する（トランザクション必須）
	// ストアが ID と CreatedAt を割り当てる。一意制約違反は
	// ErrDuplicateBooking として返す
	Create(ctx context.Context, tx transaction.Tx, b *Booking) error

	// Exists は (eventID, userID) の予約が存在するかをトランザクション内で確認する
	Exists(ctx context.Context, tx transaction.Tx, eventID int64, userID string) (bool, error)

	// CountByEvent はイベントのコミット済み予約数をトランザクション内で取得する
	CountByEvent(ctx context.Context, tx transaction.Tx, eventID int64) (int, error)

	// ListByUser はユーザーの予約一覧をイベント名付き・作成日時の降順で取得する
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*WithEventName, error)
}
