package settlement

import "time"

// IngestEventRequest 決済イベント受信リクエスト
type IngestEventRequest struct {
	ExternalID  string
	Provider    string
	AccountID   string
	AmountCents int64
	Currency    string
	RawPayload  string
}

// IngestEventResponse 決済イベント受信レスポンス
type IngestEventResponse struct {
	ExternalID string
	Status     string
	Replayed   bool // 同じ外部IDを受信済みの場合はtrue
}

// ProcessEventResponse 決済イベント適用レスポンス
type ProcessEventResponse struct {
	ExternalID   string
	Coins        int64
	EntryID      string
	BalanceAfter int64
	ProcessedAt  time.Time
}
