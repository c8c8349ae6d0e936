package settlement

import (
	"context"
	"time"
)

// ProviderClient 決済プロバイダへの照会インターフェース
// 突合ジョブがプロバイダ側の正となる入金合計を取得するために使用する
type ProviderClient interface {
	// GetSettlementTotal 指定アカウント・期間の入金合計（セント）を取得
	GetSettlementTotal(ctx context.Context, accountID string, from, to time.Time) (int64, error)
}
