package settlement

import "errors"

var (
	// ErrEventNotFound イベントが見つからないエラー
	ErrEventNotFound = errors.New("settlement event not found")
	// ErrInvalidEvent 無効なイベントエラー（必須フィールド欠落・不正金額など）
	ErrInvalidEvent = errors.New("invalid settlement event")
	// ErrDuplicateEvent 外部ID重複エラー
	ErrDuplicateEvent = errors.New("duplicate settlement event")
	// ErrUnsupportedCurrency 未対応通貨エラー
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrFractionalCoinAmount コイン単位に割り切れない金額エラー
	ErrFractionalCoinAmount = errors.New("amount is not a whole number of coins")
)
