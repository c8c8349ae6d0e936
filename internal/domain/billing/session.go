package billing

import (
	"fmt"
	"regexp"
	"time"
)

// SessionKind 課金セッション種別
type SessionKind string

const (
	SessionKindCall      SessionKind = "call"       // 有料通話
	SessionKindAISession SessionKind = "ai_session" // AIセッション
)

// NewSessionKind 新しいSessionKindを作成
func NewSessionKind(s string) (SessionKind, error) {
	kind := SessionKind(s)
	if !kind.Valid() {
		return "", fmt.Errorf("invalid session kind: %s", s)
	}
	return kind, nil
}

// String 文字列表現を返す
func (k SessionKind) String() string {
	return string(k)
}

// Valid 有効な種別かどうかを返す
func (k SessionKind) Valid() bool {
	return k == SessionKindCall || k == SessionKindAISession
}

// SessionStatus 課金セッションステータス
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"    // 課金中
	SessionStatusFinalized SessionStatus = "finalized" // 精算済み
)

// String 文字列表現を返す
func (s SessionStatus) String() string {
	return string(s)
}

// Valid 有効なステータスかどうかを返す
func (s SessionStatus) Valid() bool {
	return s == SessionStatusActive || s == SessionStatusFinalized
}

var sessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// Session 分単位課金セッションエンティティ
// minutesBilledは単調非減少であり、課金メーターのみが進める
type Session struct {
	sessionID     string
	kind          SessionKind
	payerID       string
	payeeID       string
	ratePerMinute int64
	startedAt     time.Time
	endedAt       *time.Time
	lastSeenAt    time.Time
	minutesBilled int64
	status        SessionStatus
}

// NewSession 新しいSessionエンティティを作成
func NewSession(sessionID string, kind SessionKind, payerID, payeeID string, ratePerMinute int64, startedAt time.Time) (*Session, error) {
	if !sessionIDRegex.MatchString(sessionID) {
		return nil, ErrInvalidSessionID
	}
	if payerID == "" || payeeID == "" {
		return nil, ErrInvalidSession
	}
	if ratePerMinute <= 0 {
		return nil, ErrInvalidRate
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid session kind: %s", kind)
	}
	return &Session{
		sessionID:     sessionID,
		kind:          kind,
		payerID:       payerID,
		payeeID:       payeeID,
		ratePerMinute: ratePerMinute,
		startedAt:     startedAt,
		lastSeenAt:    startedAt,
		minutesBilled: 0,
		status:        SessionStatusActive,
	}, nil
}

// ReconstructSession 永続化済みの値からSessionエンティティを復元
func ReconstructSession(
	sessionID string,
	kind SessionKind,
	payerID, payeeID string,
	ratePerMinute int64,
	startedAt time.Time,
	endedAt *time.Time,
	lastSeenAt time.Time,
	minutesBilled int64,
	status SessionStatus,
) *Session {
	return &Session{
		sessionID:     sessionID,
		kind:          kind,
		payerID:       payerID,
		payeeID:       payeeID,
		ratePerMinute: ratePerMinute,
		startedAt:     startedAt,
		endedAt:       endedAt,
		lastSeenAt:    lastSeenAt,
		minutesBilled: minutesBilled,
		status:        status,
	}
}

// SessionID セッションIDを返す
func (s *Session) SessionID() string {
	return s.sessionID
}

// Kind セッション種別を返す
func (s *Session) Kind() SessionKind {
	return s.kind
}

// PayerID 支払側アカウントIDを返す
func (s *Session) PayerID() string {
	return s.payerID
}

// PayeeID 受取側アカウントIDを返す
func (s *Session) PayeeID() string {
	return s.payeeID
}

// RatePerMinute 分単価を返す
func (s *Session) RatePerMinute() int64 {
	return s.ratePerMinute
}

// StartedAt 開始日時を返す
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// EndedAt 終了日時を返す
func (s *Session) EndedAt() *time.Time {
	return s.endedAt
}

// LastSeenAt 最終ハートビート日時を返す
func (s *Session) LastSeenAt() time.Time {
	return s.lastSeenAt
}

// MinutesBilled 課金済み分数を返す
func (s *Session) MinutesBilled() int64 {
	return s.minutesBilled
}

// Status ステータスを返す
func (s *Session) Status() SessionStatus {
	return s.status
}

// IsActive 課金中かどうかを返す
func (s *Session) IsActive() bool {
	return s.status == SessionStatusActive
}

// ElapsedMinutes 指定時刻までの経過分数（切り捨て）を返す
func (s *Session) ElapsedMinutes(now time.Time) int64 {
	if now.Before(s.startedAt) {
		return 0
	}
	return int64(now.Sub(s.startedAt) / time.Minute)
}

// FinalMinutes 指定終了時刻での最終課金分数（切り上げ）を返す
func (s *Session) FinalMinutes(endedAt time.Time) int64 {
	if endedAt.Before(s.startedAt) {
		return 0
	}
	elapsed := endedAt.Sub(s.startedAt)
	minutes := int64(elapsed / time.Minute)
	if elapsed%time.Minute > 0 {
		minutes++
	}
	return minutes
}

// DebitKind セッション種別に対応する台帳エントリ種別文字列を返す
func (s *Session) DebitKind() string {
	if s.kind == SessionKindAISession {
		return "ai_session_debit"
	}
	return "call_debit"
}
