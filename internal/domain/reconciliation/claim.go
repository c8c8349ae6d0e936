package reconciliation

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClaimNotFound クレームが見つからないエラー
	ErrClaimNotFound = errors.New("reconciliation claim not found")
)

// Claim 突合クレーム
// (アカウント, 期間)ごとに1回だけ突合が実行されることを保証するシングルフライトレコード
type Claim struct {
	AccountID   string
	WindowStart time.Time
	WindowEnd   time.Time
	ClaimedAt   time.Time
}

// ClaimRepository 突合クレームリポジトリインターフェース
type ClaimRepository interface {
	// Claim (アカウント, 期間)のクレームを取得する
	// 既にクレーム済みの場合はfalseを返す（重複実行の防止）
	Claim(ctx context.Context, accountID string, windowStart, windowEnd time.Time) (bool, error)

	// Release クレームを解放する（調整の適用に失敗した場合の再試行用）
	Release(ctx context.Context, accountID string, windowStart time.Time) error

	// RecordResult 突合結果（期待値・実績値・調整エントリID）をクレームに記録する
	RecordResult(ctx context.Context, accountID string, windowStart time.Time, expected, actual int64, adjustmentEntryID string) error
}
