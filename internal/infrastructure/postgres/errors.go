package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
)

// uniqueViolation はPostgreSQLの一意制約違反エラーコード
const uniqueViolation = "23505"

// isUniqueViolation は一意制約違反かどうかを判定する
func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isTransient は呼び出し元がリトライ可能な一時的エラーかどうかを判定する
// 対象: 直列化失敗(40001)、デッドロック(40P01)、接続エラー(クラス08)、
// タイムアウト、不正なコネクション
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		code := string(pgErr.Code)
		if code == "40001" || code == "40P01" {
			return true
		}
		if strings.HasPrefix(code, "08") {
			return true
		}
	}
	return false
}

// classifyError はストアのエラーをドメインエラーに分類してラップする
func classifyError(err error, msg string) error {
	if isTransient(err) {
		return fmt.Errorf("%s: %w: %v", msg, booking.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
