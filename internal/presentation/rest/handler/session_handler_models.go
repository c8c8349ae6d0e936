package handler

// StartSessionRequest セッション開始リクエスト
// @Description セッション開始リクエスト
type StartSessionRequest struct {
	SessionID     string `json:"session_id" example:"sess_1"`
	Kind          string `json:"kind" example:"call"`
	PayerID       string `json:"payer_id" example:"fan123"`
	PayeeID       string `json:"payee_id" example:"creator456"`
	RatePerMinute string `json:"rate_per_minute" example:"30"`
}

// SessionResponse セッションレスポンス
// @Description セッションレスポンス
type SessionResponse struct {
	SessionID string `json:"session_id" example:"sess_1"`
	Status    string `json:"status" example:"active"`
	StartedAt string `json:"started_at" example:"2026-08-30T10:00:00Z"`
}

// EndSessionResponse セッション終了レスポンス
// @Description セッション終了レスポンス
type EndSessionResponse struct {
	SessionID     string `json:"session_id" example:"sess_1"`
	Status        string `json:"status" example:"finalized"`
	MinutesBilled int64  `json:"minutes_billed" example:"3"`
	TotalCharged  string `json:"total_charged" example:"90"`
}
