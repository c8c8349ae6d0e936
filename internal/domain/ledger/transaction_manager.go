package ledger

import (
	"context"
)

// TransactionManager トランザクション管理インターフェース
type TransactionManager interface {
	// WithTransaction fnをひとつのトランザクション内で実行する
	// fnに渡されるコンテキスト経由でリポジトリ操作が同一トランザクションに参加する。
	// 既にトランザクション内のコンテキストで呼ばれた場合は外側のトランザクションに参加する
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
