package handler

// BalanceResponse 残高レスポンス
// @Description 残高レスポンス
type BalanceResponse struct {
	AccountID string `json:"account_id" example:"fan123"`
	Balance   string `json:"balance" example:"1000"`
}

// EntryItem 台帳エントリ1件
// @Description 台帳エントリ1件
type EntryItem struct {
	EntryID       string `json:"entry_id" example:"ent_123"`
	Amount        string `json:"amount" example:"-30"`
	Kind          string `json:"kind" example:"call_debit"`
	ReferenceID   string `json:"reference_id" example:"sess_1"`
	BalanceBefore string `json:"balance_before" example:"1000"`
	BalanceAfter  string `json:"balance_after" example:"970"`
	Status        string `json:"status" example:"committed"`
	CreatedAt     string `json:"created_at" example:"2026-01-01T00:00:00Z"`
}

// EntriesResponse 台帳履歴レスポンス
// @Description 台帳履歴レスポンス
type EntriesResponse struct {
	AccountID string      `json:"account_id" example:"fan123"`
	Entries   []EntryItem `json:"entries"`
}

// ErrorResponse エラーレスポンス
// @Description エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error" example:"validation_error"`
	Message string `json:"message" example:"invalid amount"`
}
