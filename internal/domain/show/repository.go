package show

import (
	"context"
	"time"
)

// ShowRepository ショーセッションリポジトリインターフェース
type ShowRepository interface {
	// Create ショーを作成
	Create(ctx context.Context, show *Show) error

	// FindByShowID ショーIDでショーを取得
	FindByShowID(ctx context.Context, showID string) (*Show, error)

	// TransitionToLive scheduled→liveの条件付き遷移
	// 実際に遷移した場合はtrueを返す
	TransitionToLive(ctx context.Context, showID string, at time.Time) (bool, error)

	// TransitionToEnded live→endedの条件付き遷移（集計値を同時に保存）
	// 実際に遷移した場合はtrueを返す（終了シグナルの単一ライターゲート）
	TransitionToEnded(ctx context.Context, showID string, at time.Time, attendeeCount, totalGifts int64) (bool, error)

	// UpdateHeartbeat 最終ハートビート日時を更新（live中のみ）
	UpdateHeartbeat(ctx context.Context, showID string, at time.Time) error

	// FindStaleLive ハートビートがcutoffより古いliveショーの一覧を取得
	FindStaleLive(ctx context.Context, cutoff time.Time) ([]*Show, error)
}

// TicketRepository チケットリポジトリインターフェース
type TicketRepository interface {
	// Create チケットを作成
	// 同一ショー・同一保有者のチケットが既に存在する場合はErrDuplicateTicketを返す
	Create(ctx context.Context, ticket *Ticket) error

	// FindByShowAndHolder ショーIDと保有者IDでチケットを取得
	FindByShowAndHolder(ctx context.Context, showID, holderID string) (*Ticket, error)

	// GrantAccess チケットのアクセスを許可する
	GrantAccess(ctx context.Context, ticketID string) error

	// MarkUsed 入室日時を記録する（初回入室のみ）
	MarkUsed(ctx context.Context, ticketID string, at time.Time) error

	// CountAttendees 入室済みチケット数を取得
	CountAttendees(ctx context.Context, showID string) (int64, error)
}
