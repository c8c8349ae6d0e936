package ledger

import "errors"

var (
	// ErrEntryNotFound エントリが見つからないエラー
	ErrEntryNotFound = errors.New("ledger entry not found")
	// ErrInvalidEntryKind 無効なエントリ種別エラー
	ErrInvalidEntryKind = errors.New("invalid entry kind")
	// ErrInvalidEntryStatus 無効なエントリステータスエラー
	ErrInvalidEntryStatus = errors.New("invalid entry status")
	// ErrDuplicateIdempotencyKey 冪等性キー重複エラー
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	// ErrConflict 楽観的ロックのリトライ上限超過エラー
	ErrConflict = errors.New("concurrent update conflict")
)
