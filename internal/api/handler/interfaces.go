package handler

import (
	"context"

	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id int64) (*event.Event, error)
	ListEvents(ctx context.Context, limit, offset int) ([]*event.Event, error)
	DeleteEvent(ctx context.Context, id int64) error
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	Reserve(ctx context.Context, eventID int64, userID string) (*booking.Booking, error)
	ListUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.WithEventName, error)
}
