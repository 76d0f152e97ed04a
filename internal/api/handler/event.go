package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-booking/internal/api"
	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
)

type EventHandler struct {
	service EventServiceInterface
}

func NewEventHandler(s EventServiceInterface) *EventHandler {
	return &EventHandler{service: s}
}

type CreateEventRequest struct {
	Name       string `json:"name" validate:"required" example:"春のコンサート"`
	TotalSeats int    `json:"total_seats" validate:"required,gt=0" example:"500"`
}

type EventResponse struct {
	ID         int64     `json:"id" example:"1"`
	Name       string    `json:"name" example:"春のコンサート"`
	TotalSeats int       `json:"total_seats" example:"500"`
	CreatedAt  time.Time `json:"created_at"`
}

func toEventResponse(e *event.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		Name:       e.Name,
		TotalSeats: e.TotalSeats,
		CreatedAt:  e.CreatedAt,
	}
}

// Create godoc
// @Summary イベントを作成
// @Description イベントをプロビジョニングします（座席数は作成後変更不可）
// @Tags events
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	e, err := h.service.CreateEvent(c.Request().Context(), application.CreateEventInput{
		Name:       req.Name,
		TotalSeats: req.TotalSeats,
	})
	if err != nil {
		code, msg := api.StatusFromDomainError(err)
		return echo.NewHTTPError(code, msg)
	}
	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Description 指定IDのイベントを取得します
// @Tags events
// @Produce json
// @Param id path int true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "イベントIDが不正です")
	}

	e, err := h.service.GetEvent(c.Request().Context(), id)
	if err != nil {
		code, msg := api.StatusFromDomainError(err)
		return echo.NewHTTPError(code, msg)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary イベント一覧を取得
// @Description イベント一覧を作成日時の降順で取得します
// @Tags events
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} EventResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	events, err := h.service.ListEvents(c.Request().Context(), limit, offset)
	if err != nil {
		code, msg := api.StatusFromDomainError(err)
		return echo.NewHTTPError(code, msg)
	}

	resp := make([]EventResponse, len(events))
	for i, e := range events {
		resp[i] = toEventResponse(e)
	}
	return c.JSON(http.StatusOK, resp)
}

// Delete godoc
// @Summary イベントを削除
// @Description イベントと関連する予約を削除します
// @Tags events
// @Param id path int true "イベントID"
// @Success 204
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "イベントIDが不正です")
	}

	if err := h.service.DeleteEvent(c.Request().Context(), id); err != nil {
		code, msg := api.StatusFromDomainError(err)
		return echo.NewHTTPError(code, msg)
	}
	return c.NoContent(http.StatusNoContent)
}
