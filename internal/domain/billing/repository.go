package billing

import (
	"context"
	"time"
)

// SessionRepository 課金セッションリポジトリインターフェース
type SessionRepository interface {
	// Create セッションを作成
	// セッションIDが既に存在する場合はErrDuplicateSessionを返す
	Create(ctx context.Context, session *Session) error

	// FindBySessionID セッションIDでセッションを取得
	FindBySessionID(ctx context.Context, sessionID string) (*Session, error)

	// FindActive 課金中のセッション一覧を取得
	FindActive(ctx context.Context) ([]*Session, error)

	// AdvanceMinutesBilled 課金済み分数を単調に進める
	// minutesが現在値以下の場合は何もしない（単調非減少の保証）
	AdvanceMinutesBilled(ctx context.Context, sessionID string, minutes int64) error

	// Touch 最終ハートビート日時を更新
	Touch(ctx context.Context, sessionID string, at time.Time) error

	// MarkFinalized セッションを精算済みにする（status=activeの場合のみ）
	// 実際に遷移した場合はtrueを返す（単一ライターゲート）
	MarkFinalized(ctx context.Context, sessionID string, endedAt time.Time) (bool, error)
}
