package billing

import "errors"

var (
	// ErrSessionNotFound セッションが見つからないエラー
	ErrSessionNotFound = errors.New("billable session not found")
	// ErrInvalidSessionID セッションIDが無効
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrInvalidSession セッションが無効（必須フィールド欠落）
	ErrInvalidSession = errors.New("invalid session")
	// ErrInvalidRate 分単価が無効
	ErrInvalidRate = errors.New("invalid rate per minute")
	// ErrSessionFinalized 精算済みセッションへの操作エラー
	ErrSessionFinalized = errors.New("session already finalized")
	// ErrDuplicateSession セッションID重複エラー
	ErrDuplicateSession = errors.New("duplicate session id")
)
