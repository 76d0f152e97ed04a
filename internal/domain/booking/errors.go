package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrInvalidEventID   = errors.New("イベントIDは正の整数である必要があります")
	ErrUserIDRequired   = errors.New("ユーザーIDは必須です")
	ErrDuplicateBooking = errors.New("このイベントは既に予約済みです")
	ErrCapacityExceeded = errors.New("イベントは満席です")
	ErrBookingNotFound  = errors.New("予約が見つかりません")
	ErrStoreUnavailable = errors.New("データストアが一時的に利用できません")
)
