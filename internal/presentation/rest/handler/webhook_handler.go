package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	settlementapp "coin-server/internal/application/settlement"
)

// WebhookHandler 決済プロバイダWebhookハンドラー
// 署名検証は上流のゲートウェイで済んでいる前提で受け付ける
type WebhookHandler struct {
	settlementService *settlementapp.SettlementApplicationService
	worker            *settlementapp.Worker
}

// NewWebhookHandler 新しいWebhookHandlerを作成
func NewWebhookHandler(settlementService *settlementapp.SettlementApplicationService, worker *settlementapp.Worker) *WebhookHandler {
	return &WebhookHandler{
		settlementService: settlementService,
		worker:            worker,
	}
}

// HandlePaymentEvent 決済イベント受信ハンドラー
// @Summary 決済イベントを受信
// @Description 外部決済プロバイダからのイベントを永続化して処理キューに積みます
// @Tags webhook
// @Accept json
// @Produce json
// @Success 202 {object} WebhookResponse "受理"
// @Failure 400 {object} ErrorResponse "不正なイベント"
// @Router /webhooks/payment [post]
func (h *WebhookHandler) HandlePaymentEvent(c echo.Context) error {
	var req WebhookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rawPayload, err := json.Marshal(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.settlementService.IngestEvent(c.Request().Context(), &settlementapp.IngestEventRequest{
		ExternalID:  req.ExternalID,
		Provider:    req.Provider,
		AccountID:   req.AccountID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		RawPayload:  string(rawPayload),
	})
	if err != nil {
		return err
	}

	// 未適用イベントだけをキューに積む。満杯でも起動時のRecoverで拾われる
	if resp.Status == "pending" {
		h.worker.Enqueue(resp.ExternalID)
	}

	return c.JSON(http.StatusAccepted, WebhookResponse{
		ExternalID: resp.ExternalID,
		Status:     resp.Status,
	})
}
