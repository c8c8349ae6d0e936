package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"coin-server/internal/domain/billing"
	"coin-server/internal/domain/ledger"
	"coin-server/internal/domain/settlement"
	"coin-server/internal/domain/show"
	"coin-server/internal/domain/wallet"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
)

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorHandlerMiddleware エラーハンドリングミドルウェア
func ErrorHandlerMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			// エラーハンドリング
			return handleError(c, err, logger)
		}
	}
}

// handleError エラーを処理して適切なHTTPレスポンスを返す
func handleError(c echo.Context, err error, logger *otelinfra.Logger) error {
	ctx := c.Request().Context()

	// ドメインエラーの判定と処理
	if errors.Is(err, wallet.ErrInsufficientFunds) {
		logger.Warn(ctx, "Insufficient funds", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "insufficient_funds",
			Message: err.Error(),
		})
	}

	if errors.Is(err, ledger.ErrConflict) {
		logger.Warn(ctx, "Concurrent update conflict", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: err.Error(),
		})
	}

	if errors.Is(err, show.ErrInvalidStateTransition) || errors.Is(err, billing.ErrSessionFinalized) {
		logger.Warn(ctx, "Invalid state transition", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "invalid_state_transition",
			Message: err.Error(),
		})
	}

	if errors.Is(err, show.ErrAccessDenied) {
		logger.Warn(ctx, "Access denied", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "access_denied",
			Message: err.Error(),
		})
	}

	if isNotFound(err) {
		logger.Warn(ctx, "Resource not found", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	}

	if isValidation(err) {
		logger.Warn(ctx, "Validation error", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	}

	// EchoのHTTPエラー
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		logger.Warn(ctx, "HTTP error", map[string]interface{}{
			"status_code": httpErr.Code,
			"message":     httpErr.Message,
		})
		message := ""
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(httpErr.Code)
		}
		return c.JSON(httpErr.Code, ErrorResponse{
			Error:   http.StatusText(httpErr.Code),
			Message: message,
		})
	}

	// 予期しないエラー
	logger.Error(ctx, "Internal server error", err, map[string]interface{}{
		"path": c.Request().URL.Path,
	})
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_server_error",
		Message: "An unexpected error occurred",
	})
}

// isNotFound 404にマップされるドメインエラーかどうか
func isNotFound(err error) bool {
	return errors.Is(err, wallet.ErrWalletNotFound) ||
		errors.Is(err, ledger.ErrEntryNotFound) ||
		errors.Is(err, billing.ErrSessionNotFound) ||
		errors.Is(err, settlement.ErrEventNotFound) ||
		errors.Is(err, show.ErrShowNotFound) ||
		errors.Is(err, show.ErrTicketNotFound)
}

// isValidation 400にマップされるドメインエラーかどうか
func isValidation(err error) bool {
	return errors.Is(err, wallet.ErrInvalidAmount) ||
		errors.Is(err, wallet.ErrInvalidOwnerID) ||
		errors.Is(err, wallet.ErrAmountTooLarge) ||
		errors.Is(err, wallet.ErrBalanceOutOfRange) ||
		errors.Is(err, ledger.ErrInvalidAccountID) ||
		errors.Is(err, ledger.ErrInvalidAmount) ||
		errors.Is(err, ledger.ErrInvalidIdempotencyKey) ||
		errors.Is(err, ledger.ErrInvalidEntryKind) ||
		errors.Is(err, billing.ErrInvalidSessionID) ||
		errors.Is(err, billing.ErrInvalidSession) ||
		errors.Is(err, billing.ErrInvalidRate) ||
		errors.Is(err, settlement.ErrInvalidEvent) ||
		errors.Is(err, settlement.ErrUnsupportedCurrency) ||
		errors.Is(err, settlement.ErrFractionalCoinAmount) ||
		errors.Is(err, show.ErrInvalidShowID) ||
		errors.Is(err, show.ErrInvalidShow) ||
		errors.Is(err, show.ErrInvalidTicket)
}
