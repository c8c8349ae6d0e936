package handler

// WebhookRequest 決済イベント受信リクエスト
// @Description 決済イベント受信リクエスト
type WebhookRequest struct {
	ExternalID  string `json:"external_id" example:"evt_abc123"`
	Provider    string `json:"provider" example:"stripe"`
	AccountID   string `json:"account_id" example:"fan123"`
	AmountCents int64  `json:"amount_cents" example:"1000"`
	Currency    string `json:"currency" example:"JPY"`
}

// WebhookResponse 決済イベント受信レスポンス
// @Description 決済イベント受信レスポンス
type WebhookResponse struct {
	ExternalID string `json:"external_id" example:"evt_abc123"`
	Status     string `json:"status" example:"pending"`
}
