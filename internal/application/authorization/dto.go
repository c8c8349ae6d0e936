package authorization

import "time"

// AuthorizeInstantRequest 即時支払い認可リクエスト
type AuthorizeInstantRequest struct {
	AccountID      string
	Amount         int64
	Kind           string // "call_debit", "message_unlock", "ticket_purchase" など
	ReferenceID    string
	IdempotencyKey string
	Metadata       map[string]interface{}
}

// AuthorizeInstantResponse 即時支払い認可レスポンス
type AuthorizeInstantResponse struct {
	EntryID      string
	BalanceAfter int64
	Replayed     bool
}

// Hold 残高ホールド
// デビットは行わず、認可時点で残高が足りていたことだけを表す
type Hold struct {
	HoldID       string
	AccountID    string
	Amount       int64
	Kind         string
	ReferenceID  string
	AuthorizedAt time.Time
}

// AuthorizeHoldRequest 残高ホールドリクエスト
type AuthorizeHoldRequest struct {
	AccountID   string
	Amount      int64
	Kind        string
	ReferenceID string
}

// SettleHoldRequest ホールド確定リクエスト
type SettleHoldRequest struct {
	Hold   *Hold
	Amount int64 // 確定額。0の場合はホールド額をそのまま使う。ホールド額を上回ってもよい
}

// SettleHoldResponse ホールド確定レスポンス
type SettleHoldResponse struct {
	EntryID      string
	BalanceAfter int64
	Replayed     bool
}

// TransferGiftRequest ギフト送信リクエスト
type TransferGiftRequest struct {
	SenderID       string
	CreatorID      string
	Amount         int64
	ReferenceID    string
	IdempotencyKey string
}

// TransferGiftResponse ギフト送信レスポンス
type TransferGiftResponse struct {
	DebitEntryID  string
	CreditEntryID string
	NetAmount     int64
	Replayed      bool
}
