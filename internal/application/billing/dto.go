package billing

import "time"

// StartSessionRequest セッション開始リクエスト
type StartSessionRequest struct {
	SessionID     string
	Kind          string // "call" or "ai_session"
	PayerID       string
	PayeeID       string
	RatePerMinute int64
}

// StartSessionResponse セッション開始レスポンス
type StartSessionResponse struct {
	SessionID string
	Status    string
	StartedAt time.Time
}

// TickResponse 課金ティックレスポンス
type TickResponse struct {
	SessionID     string
	Seq           int64 // ティック番号（経過時間から導出）
	Charged       bool  // このティックで課金が発生した場合true
	Terminated    bool  // 残高不足によりセッションを終了すべき場合true
	MinutesBilled int64
}

// EndSessionRequest セッション終了リクエスト
type EndSessionRequest struct {
	SessionID string
	EndedAt   time.Time
}

// EndSessionResponse セッション終了レスポンス
type EndSessionResponse struct {
	SessionID     string
	Status        string
	MinutesBilled int64
	TotalCharged  int64
}
