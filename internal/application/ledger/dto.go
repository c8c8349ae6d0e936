package ledger

// GetBalanceRequest 残高取得リクエスト
type GetBalanceRequest struct {
	AccountID string
}

// GetBalanceResponse 残高取得レスポンス
type GetBalanceResponse struct {
	AccountID string
	Balance   int64
}

// CreditRequest 入金リクエスト
type CreditRequest struct {
	AccountID      string
	Amount         int64
	Kind           string // "topup", "gift_receive", "settlement_credit" など
	ReferenceID    string
	IdempotencyKey string
	Metadata       map[string]interface{}
}

// CreditResponse 入金レスポンス
type CreditResponse struct {
	EntryID      string
	BalanceAfter int64
	Replayed     bool // 冪等性キーにより既存結果を返した場合はtrue
}

// DebitRequest 出金リクエスト
type DebitRequest struct {
	AccountID      string
	Amount         int64
	Kind           string // "call_debit", "message_unlock", "gift_send" など
	ReferenceID    string
	IdempotencyKey string
	Metadata       map[string]interface{}
}

// DebitResponse 出金レスポンス
type DebitResponse struct {
	EntryID      string
	BalanceAfter int64
	Replayed     bool
}

// AdjustRequest 突合調整リクエスト（符号付き金額）
type AdjustRequest struct {
	AccountID      string
	Amount         int64
	ReferenceID    string
	IdempotencyKey string
	Metadata       map[string]interface{}
}

// AdjustResponse 突合調整レスポンス
type AdjustResponse struct {
	EntryID      string
	BalanceAfter int64
	Replayed     bool
}

// TransferRequest 送金リクエスト（ギフトなどの2アカウント間移動）
type TransferRequest struct {
	FromAccountID  string
	ToAccountID    string
	Amount         int64  // 送金側から引き落とす総額
	FeePct         int    // プラットフォーム手数料（%）。受取側には手数料控除後の額が入る
	DebitKind      string // 送金側エントリ種別
	CreditKind     string // 受取側エントリ種別
	ReferenceID    string
	IdempotencyKey string
	Metadata       map[string]interface{}
}

// TransferResponse 送金レスポンス
type TransferResponse struct {
	DebitEntryID  string
	CreditEntryID string
	NetAmount     int64 // 受取側に入金された額
	Replayed      bool
}

// GetHistoryRequest 履歴取得リクエスト
type GetHistoryRequest struct {
	AccountID string
	Limit     int
	Offset    int
}

// HistoryEntry 履歴1件
type HistoryEntry struct {
	EntryID       string
	Amount        int64
	Kind          string
	ReferenceID   string
	BalanceBefore int64
	BalanceAfter  int64
	Status        string
	CreatedAt     string
}

// GetHistoryResponse 履歴取得レスポンス
type GetHistoryResponse struct {
	AccountID string
	Entries   []HistoryEntry
}
