package booking

import "time"

// Booking は予約エンティティを表す
// (EventID, UserID) の組はストアの一意制約によって全予約を通じて一意
type Booking struct {
	ID        int64
	EventID   int64
	UserID    string
	CreatedAt time.Time
}

// WithEventName はイベント名を結合した予約の読み取りモデル
type WithEventName struct {
	Booking
	EventName string
}

// NewBooking は新しい予約を作成する
// ID と CreatedAt はストアが挿入時に割り当てる
func NewBooking(eventID int64, userID string) *Booking {
	return &Booking{
		EventID: eventID,
		UserID:  userID,
	}
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.EventID <= 0 {
		return ErrInvalidEventID
	}
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	return nil
}
