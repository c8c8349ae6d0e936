package show

import "errors"

var (
	// ErrShowNotFound ショーが見つからないエラー
	ErrShowNotFound = errors.New("show not found")
	// ErrInvalidShowID ショーIDが無効
	ErrInvalidShowID = errors.New("invalid show id")
	// ErrInvalidShow ショーが無効（必須フィールド欠落）
	ErrInvalidShow = errors.New("invalid show")
	// ErrInvalidStateTransition 許可されない状態遷移エラー
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrAccessDenied 入室拒否エラー（チケット・状態チェック失敗）
	ErrAccessDenied = errors.New("access denied")
	// ErrTicketNotFound チケットが見つからないエラー
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrInvalidTicket チケットが無効
	ErrInvalidTicket = errors.New("invalid ticket")
	// ErrDuplicateTicket 同一ショー・同一保有者のチケット重複エラー
	ErrDuplicateTicket = errors.New("duplicate ticket")
)
