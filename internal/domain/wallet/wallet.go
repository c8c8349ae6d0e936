package wallet

import (
	"errors"
	"regexp"
)

var (
	// ErrInvalidOwnerID 所有者IDが無効
	ErrInvalidOwnerID = errors.New("invalid owner id")
	// ErrBalanceOutOfRange 残高が範囲外
	ErrBalanceOutOfRange = errors.New("balance out of range")
	// ErrAmountTooLarge 金額が大きすぎる
	ErrAmountTooLarge = errors.New("amount too large")
)

const (
	// MaxBalance 最大残高 (10兆コイン)
	MaxBalance = 10_000_000_000_000
)

var ownerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// Wallet ウォレットエンティティ
// 残高はコミット済みエントリの合計の射影であり、エントリと同一トランザクション内でのみ更新される
type Wallet struct {
	ownerID string
	balance int64 // 整数コイン（小数点なし、マイナス不可）
	version int   // 楽観的ロック用
}

// NewWallet 新しいWalletエンティティを作成
func NewWallet(ownerID string, balance int64, version int) (*Wallet, error) {
	if !ownerIDRegex.MatchString(ownerID) {
		return nil, ErrInvalidOwnerID
	}
	if balance < 0 || balance > MaxBalance {
		return nil, ErrBalanceOutOfRange
	}
	return &Wallet{
		ownerID: ownerID,
		balance: balance,
		version: version,
	}, nil
}

// OwnerID 所有者IDを返す
func (w *Wallet) OwnerID() string {
	return w.ownerID
}

// Balance 残高を返す
func (w *Wallet) Balance() int64 {
	return w.balance
}

// Version バージョンを返す（楽観的ロック用）
func (w *Wallet) Version() int {
	return w.version
}

// Credit 残高を増やす
func (w *Wallet) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > MaxBalance {
		return ErrAmountTooLarge
	}
	// オーバーフローチェック
	if w.balance > MaxBalance-amount {
		return ErrBalanceOutOfRange
	}
	w.balance += amount
	return nil
}

// Debit 残高を減らす
// 残高不足の場合は状態を変更せずErrInsufficientFundsを返す
func (w *Wallet) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > MaxBalance {
		return ErrAmountTooLarge
	}
	if w.balance < amount {
		return ErrInsufficientFunds
	}
	w.balance -= amount
	return nil
}

// MustNewWallet テスト用ヘルパー: NewWalletを呼び出し、エラーが発生した場合はpanicする
func MustNewWallet(ownerID string, balance int64, version int) *Wallet {
	w, err := NewWallet(ownerID, balance, version)
	if err != nil {
		panic(err)
	}
	return w
}
