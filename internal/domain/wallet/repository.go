package wallet

import (
	"context"
)

// WalletRepository ウォレットリポジトリインターフェース
type WalletRepository interface {
	// FindByOwnerID 所有者IDでウォレットを取得
	FindByOwnerID(ctx context.Context, ownerID string) (*Wallet, error)

	// Save ウォレットを保存（更新、楽観的ロック対応）
	// バージョン不一致の場合はErrVersionConflictを返す
	Save(ctx context.Context, wallet *Wallet) error

	// Create 新しいウォレットを作成
	Create(ctx context.Context, wallet *Wallet) error
}
