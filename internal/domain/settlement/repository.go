package settlement

import (
	"context"
	"time"
)

// EventRepository 決済イベントリポジトリインターフェース
type EventRepository interface {
	// Create イベントを作成
	// 外部IDが既に存在する場合はErrDuplicateEventを返す
	Create(ctx context.Context, event *Event) error

	// FindByExternalID 外部IDでイベントを取得
	FindByExternalID(ctx context.Context, externalID string) (*Event, error)

	// Update イベントを更新（status・attempts・last_error・processed_at）
	Update(ctx context.Context, event *Event) error

	// FindPending 未適用イベントを取得（起動時の再投入用）
	FindPending(ctx context.Context, limit int) ([]*Event, error)

	// FindAccountIDsInWindow 指定期間に受信したイベントのアカウントID一覧を取得
	FindAccountIDsInWindow(ctx context.Context, from, to time.Time) ([]string, error)
}
