package event

import "time"

// Event はイベントエンティティを表す
// TotalSeats は作成後に変更されない（座席数の変更は本サービスのスコープ外）
type Event struct {
	ID         int64
	Name       string
	TotalSeats int
	CreatedAt  time.Time
}

// NewEvent は新しいイベントを作成する
func NewEvent(name string, totalSeats int) *Event {
	return &Event{
		Name:       name,
		TotalSeats: totalSeats,
		CreatedAt:  time.Now(),
	}
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Name == "" {
		return ErrEventNameRequired
	}
	if e.TotalSeats <= 0 {
		return ErrInvalidTotalSeats
	}
	return nil
}
