package settlement

import (
	"fmt"
	"time"
)

// EventStatus 決済イベントのステータス
type EventStatus string

const (
	EventStatusPending EventStatus = "pending" // 未適用
	EventStatusApplied EventStatus = "applied" // 適用済み
	EventStatusFailed  EventStatus = "failed"  // リトライ上限超過（要手動対応）
)

// NewEventStatus 新しいEventStatusを作成
func NewEventStatus(s string) (EventStatus, error) {
	status := EventStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid event status: %s", s)
	}
	return status, nil
}

// String 文字列表現を返す
func (s EventStatus) String() string {
	return string(s)
}

// Valid 有効なステータスかどうかを返す
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusPending, EventStatusApplied, EventStatusFailed:
		return true
	default:
		return false
	}
}

// Event 決済イベントエンティティ
// 外部決済プロバイダから届いたイベント1件。externalIDにより重複適用を防止する
type Event struct {
	externalID  string
	provider    string
	accountID   string
	amountCents int64
	currency    string
	rawPayload  string
	status      EventStatus
	attempts    int
	lastError   *string
	processedAt *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// NewEvent 新しいEventエンティティを作成
func NewEvent(externalID, provider, accountID string, amountCents int64, currency, rawPayload string) (*Event, error) {
	if externalID == "" {
		return nil, ErrInvalidEvent
	}
	if provider == "" {
		return nil, ErrInvalidEvent
	}
	if accountID == "" {
		return nil, ErrInvalidEvent
	}
	if amountCents <= 0 {
		return nil, ErrInvalidEvent
	}

	now := time.Now()
	return &Event{
		externalID:  externalID,
		provider:    provider,
		accountID:   accountID,
		amountCents: amountCents,
		currency:    currency,
		rawPayload:  rawPayload,
		status:      EventStatusPending,
		attempts:    0,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructEvent 永続化済みの値からEventエンティティを復元
func ReconstructEvent(
	externalID, provider, accountID string,
	amountCents int64,
	currency, rawPayload string,
	status EventStatus,
	attempts int,
	lastError *string,
	processedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Event {
	return &Event{
		externalID:  externalID,
		provider:    provider,
		accountID:   accountID,
		amountCents: amountCents,
		currency:    currency,
		rawPayload:  rawPayload,
		status:      status,
		attempts:    attempts,
		lastError:   lastError,
		processedAt: processedAt,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ExternalID 外部ID（プロバイダ採番）を返す
func (e *Event) ExternalID() string {
	return e.externalID
}

// Provider プロバイダ名を返す
func (e *Event) Provider() string {
	return e.provider
}

// AccountID アカウントIDを返す
func (e *Event) AccountID() string {
	return e.accountID
}

// AmountCents 金額（セント）を返す
func (e *Event) AmountCents() int64 {
	return e.amountCents
}

// Currency 通貨コードを返す
func (e *Event) Currency() string {
	return e.currency
}

// RawPayload 受信ペイロードを返す
func (e *Event) RawPayload() string {
	return e.rawPayload
}

// Status ステータスを返す
func (e *Event) Status() EventStatus {
	return e.status
}

// Attempts 処理試行回数を返す
func (e *Event) Attempts() int {
	return e.attempts
}

// LastError 直近のエラーを返す
func (e *Event) LastError() *string {
	return e.lastError
}

// ProcessedAt 適用日時を返す
func (e *Event) ProcessedAt() *time.Time {
	return e.processedAt
}

// CreatedAt 作成日時を返す
func (e *Event) CreatedAt() time.Time {
	return e.createdAt
}

// UpdatedAt 更新日時を返す
func (e *Event) UpdatedAt() time.Time {
	return e.updatedAt
}

// IsApplied 適用済みかどうかを返す
func (e *Event) IsApplied() bool {
	return e.status == EventStatusApplied
}

// RecordAttempt 処理試行を記録
func (e *Event) RecordAttempt() {
	e.attempts++
	e.updatedAt = time.Now()
}

// MarkApplied 適用済みにする
func (e *Event) MarkApplied() {
	now := time.Now()
	e.status = EventStatusApplied
	e.processedAt = &now
	e.updatedAt = now
}

// MarkFailed 失敗（ポイズン）状態にする
func (e *Event) MarkFailed(reason string) {
	e.status = EventStatusFailed
	e.lastError = &reason
	e.updatedAt = time.Now()
}
