package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	billingapp "coin-server/internal/application/billing"
)

// SessionHandler 従量課金セッションハンドラー
type SessionHandler struct {
	billingService *billingapp.BillingApplicationService
}

// NewSessionHandler 新しいSessionHandlerを作成
func NewSessionHandler(billingService *billingapp.BillingApplicationService) *SessionHandler {
	return &SessionHandler{
		billingService: billingService,
	}
}

// StartSession セッション開始ハンドラー
// @Summary 従量課金セッションを開始
// @Tags session
// @Accept json
// @Produce json
// @Success 201 {object} SessionResponse "開始成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c echo.Context) error {
	var req StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rate, err := strconv.ParseInt(req.RatePerMinute, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rate_per_minute")
	}

	resp, err := h.billingService.StartSession(c.Request().Context(), &billingapp.StartSessionRequest{
		SessionID:     req.SessionID,
		Kind:          req.Kind,
		PayerID:       req.PayerID,
		PayeeID:       req.PayeeID,
		RatePerMinute: rate,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, SessionResponse{
		SessionID: resp.SessionID,
		Status:    resp.Status,
		StartedAt: resp.StartedAt.Format(time.RFC3339),
	})
}

// Heartbeat セッションハートビートハンドラー
// @Summary セッションの生存を通知
// @Tags session
// @Produce json
// @Param session_id path string true "セッションID"
// @Success 204 "記録成功"
// @Failure 404 {object} ErrorResponse "セッションが見つからない"
// @Router /sessions/{session_id}/heartbeat [post]
func (h *SessionHandler) Heartbeat(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	if err := h.billingService.Heartbeat(c.Request().Context(), sessionID, time.Now()); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// EndSession セッション終了ハンドラー
// @Summary 従量課金セッションを終了
// @Tags session
// @Produce json
// @Param session_id path string true "セッションID"
// @Success 200 {object} EndSessionResponse "終了成功"
// @Failure 404 {object} ErrorResponse "セッションが見つからない"
// @Router /sessions/{session_id}/end [post]
func (h *SessionHandler) EndSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	resp, err := h.billingService.EndSession(c.Request().Context(), &billingapp.EndSessionRequest{
		SessionID: sessionID,
		EndedAt:   time.Now(),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, EndSessionResponse{
		SessionID:     resp.SessionID,
		Status:        resp.Status,
		MinutesBilled: resp.MinutesBilled,
		TotalCharged:  strconv.FormatInt(resp.TotalCharged, 10),
	})
}
