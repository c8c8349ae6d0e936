package ledger

import (
	"context"
	"time"
)

// EntryRepository 台帳エントリリポジトリインターフェース
type EntryRepository interface {
	// Save エントリを保存
	// 冪等性キーが既に存在する場合はErrDuplicateIdempotencyKeyを返す
	Save(ctx context.Context, entry *Entry) error

	// FindByIdempotencyKey 冪等性キーでエントリを取得
	FindByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Entry, error)

	// FindByAccountID アカウントIDでエントリ一覧を取得（ページネーション対応）
	FindByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*Entry, error)

	// SumSettlementCredits 指定期間のコミット済みsettlement_creditエントリの合計を取得
	SumSettlementCredits(ctx context.Context, accountID string, from, to time.Time) (int64, error)

	// SumGiftsByReference 参照IDに紐づくコミット済みギフト送信額の合計（絶対値）を取得
	SumGiftsByReference(ctx context.Context, referenceID string) (int64, error)
}
