package ledger

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrInvalidEntryID エントリIDが無効
	ErrInvalidEntryID = errors.New("invalid entry id")
	// ErrInvalidAccountID アカウントIDが無効
	ErrInvalidAccountID = errors.New("invalid account id")
	// ErrInvalidIdempotencyKey 冪等性キーが無効
	ErrInvalidIdempotencyKey = errors.New("invalid idempotency key")
	// ErrInvalidAmount 金額が無効
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAmountTooLarge 金額が大きすぎる
	ErrAmountTooLarge = errors.New("amount too large")
)

const (
	// MaxAmount 金額の絶対値の上限 (10兆)
	MaxAmount = 10_000_000_000_000
)

var (
	idRegex        = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)
)

// Entry 台帳エントリエンティティ
// 残高に影響する1イベントの追記専用レコード。コミット後はstatus以外更新されない
type Entry struct {
	entryID        string
	accountID      string
	amount         int64 // 符号付き整数コイン（クレジットは正、デビットは負）
	kind           EntryKind
	referenceID    string
	idempotencyKey string
	balanceBefore  int64
	balanceAfter   int64
	status         EntryStatus
	metadata       map[string]interface{}
	createdAt      time.Time
	updatedAt      time.Time
}

// NewEntry 新しいEntryエンティティを作成
func NewEntry(
	entryID string,
	accountID string,
	amount int64,
	kind EntryKind,
	referenceID string,
	idempotencyKey string,
	balanceBefore int64,
	balanceAfter int64,
	status EntryStatus,
	metadata map[string]interface{},
) (*Entry, error) {
	if !idRegex.MatchString(entryID) {
		return nil, ErrInvalidEntryID
	}
	if !accountIDRegex.MatchString(accountID) {
		return nil, ErrInvalidAccountID
	}
	if !idRegex.MatchString(idempotencyKey) {
		return nil, ErrInvalidIdempotencyKey
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if amount > MaxAmount || amount < -MaxAmount {
		return nil, ErrAmountTooLarge
	}
	if !kind.Valid() {
		return nil, ErrInvalidEntryKind
	}
	if !status.Valid() {
		return nil, ErrInvalidEntryStatus
	}

	now := time.Now()
	return &Entry{
		entryID:        entryID,
		accountID:      accountID,
		amount:         amount,
		kind:           kind,
		referenceID:    referenceID,
		idempotencyKey: idempotencyKey,
		balanceBefore:  balanceBefore,
		balanceAfter:   balanceAfter,
		status:         status,
		metadata:       metadata,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// EntryID エントリIDを返す
func (e *Entry) EntryID() string {
	return e.entryID
}

// AccountID アカウントIDを返す
func (e *Entry) AccountID() string {
	return e.accountID
}

// Amount 符号付き金額を返す
func (e *Entry) Amount() int64 {
	return e.amount
}

// Kind エントリ種別を返す
func (e *Entry) Kind() EntryKind {
	return e.kind
}

// ReferenceID 参照ID（セッション・チケット・外部IDなど）を返す
func (e *Entry) ReferenceID() string {
	return e.referenceID
}

// IdempotencyKey 冪等性キーを返す
func (e *Entry) IdempotencyKey() string {
	return e.idempotencyKey
}

// BalanceBefore 処理前の残高を返す
func (e *Entry) BalanceBefore() int64 {
	return e.balanceBefore
}

// BalanceAfter 処理後の残高を返す
func (e *Entry) BalanceAfter() int64 {
	return e.balanceAfter
}

// Status ステータスを返す
func (e *Entry) Status() EntryStatus {
	return e.status
}

// Metadata メタデータを返す
func (e *Entry) Metadata() map[string]interface{} {
	return e.metadata
}

// CreatedAt 作成日時を返す
func (e *Entry) CreatedAt() time.Time {
	return e.createdAt
}

// UpdatedAt 更新日時を返す
func (e *Entry) UpdatedAt() time.Time {
	return e.updatedAt
}

// Reverse エントリを取消状態にする（コミット後に許される唯一の変更）
func (e *Entry) Reverse() error {
	if e.status != EntryStatusCommitted {
		return ErrInvalidEntryStatus
	}
	e.status = EntryStatusReversed
	e.updatedAt = time.Now()
	return nil
}

// MustNewEntry テスト用ヘルパー: NewEntryを呼び出し、エラーが発生した場合はpanicする
func MustNewEntry(
	entryID string,
	accountID string,
	amount int64,
	kind EntryKind,
	referenceID string,
	idempotencyKey string,
	balanceBefore int64,
	balanceAfter int64,
	status EntryStatus,
	metadata map[string]interface{},
) *Entry {
	e, err := NewEntry(entryID, accountID, amount, kind, referenceID, idempotencyKey, balanceBefore, balanceAfter, status, metadata)
	if err != nil {
		panic(err)
	}
	return e
}
