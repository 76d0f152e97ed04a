package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

// StatusFromDomainError はドメインエラーをHTTPステータスに対応させる
// 未分類のエラーは内部詳細を漏らさないよう500として扱う
func StatusFromDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, booking.ErrInvalidEventID),
		errors.Is(err, booking.ErrUserIDRequired),
		errors.Is(err, event.ErrInvalidEventID),
		errors.Is(err, event.ErrEventNameRequired),
		errors.Is(err, event.ErrInvalidTotalSeats):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, event.ErrEventNotFound),
		errors.Is(err, booking.ErrBookingNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, booking.ErrDuplicateBooking),
		errors.Is(err, booking.ErrCapacityExceeded):
		return http.StatusConflict, err.Error()
	case errors.Is(err, booking.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, booking.ErrStoreUnavailable.Error()
	default:
		return http.StatusInternalServerError, "内部サーバーエラー"
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message = "内部サーバーエラー"
	)

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	// JSONレスポンスを返す
	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
