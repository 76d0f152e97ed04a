package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrEventNotFound     = errors.New("イベントが見つかりません")
	ErrEventNameRequired = errors.New("イベント名は必須です")
	ErrInvalidTotalSeats = errors.New("座席数は1以上である必要があります")
	ErrInvalidEventID    = errors.New("イベントIDは正の整数である必要があります")
)
