package application

import (
	"context"
	"fmt"

	"github.com/sanosuguru/go-event-booking/internal/domain/event"
)

// EventService はイベントのプロビジョニングを担う
// 予約の本体処理からは独立した外部協調者側の操作
type EventService struct {
	eventRepo event.Repository
}

func NewEventService(eventRepo event.Repository) *EventService {
	return &EventService{eventRepo: eventRepo}
}

type CreateEventInput struct {
	Name       string
	TotalSeats int
}

func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	e := event.NewEvent(input.Name, input.TotalSeats)
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return e, nil
}

func (s *EventService) GetEvent(ctx context.Context, id int64) (*event.Event, error) {
	if id <= 0 {
		return nil, event.ErrInvalidEventID
	}
	return s.eventRepo.GetByID(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.eventRepo.List(ctx, limit, offset)
}

func (s *EventService) DeleteEvent(ctx context.Context, id int64) error {
	if id <= 0 {
		return event.ErrInvalidEventID
	}
	return s.eventRepo.Delete(ctx, id)
}
