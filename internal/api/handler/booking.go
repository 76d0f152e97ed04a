package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-booking/internal/api"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type BookingResponse struct {
	ID        int64     `json:"booking_id" example:"42"`
	EventID   int64     `json:"event_id" example:"1"`
	UserID    string    `json:"user_id" example:"user-123"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingWithEventResponse struct {
	BookingResponse
	EventName string `json:"event_name" example:"春のコンサート"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:        b.ID,
		EventID:   b.EventID,
		UserID:    b.UserID,
		CreatedAt: b.CreatedAt,
	}
}

// Reserve godoc
// @Summary 座席を1席予約
// @Description イベントの座席を1席予約します。同一ユーザーの重複予約と定員超過は拒否されます
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path int true "イベントID"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "予約済みまたは満席"
// @Failure 503 {object} api.ErrorResponse "一時的エラー（リトライ可能）"
// @Router /events/{id}/bookings [post]
func (h *BookingHandler) Reserve(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}

	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || eventID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "イベントIDが不正です")
	}

	b, err := h.service.Reserve(c.Request().Context(), eventID, userID)
	if err != nil {
		code, msg := api.StatusFromDomainError(err)
		return echo.NewHTTPError(code, msg)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// ListUserBookings godoc
// @Summary ユーザーの予約一覧を取得
// @Description ログインユーザーの予約一覧をイベント名付き・作成日時の降順で取得します
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingWithEventResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /bookings [get]
func (h *BookingHandler) ListUserBookings(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	bookings, err := h.service.ListUserBookings(c.Request().Context(), userID, limit, offset)
	if err != nil {
		code, msg := api.StatusFromDomainError(err)
		return echo.NewHTTPError(code, msg)
	}

	resp := make([]BookingWithEventResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = BookingWithEventResponse{
			BookingResponse: toBookingResponse(&b.Booking),
			EventName:       b.EventName,
		}
	}
	return c.JSON(http.StatusOK, resp)
}
