package show

import (
	"fmt"
	"regexp"
	"time"
)

// ShowStatus ショーセッションのステータス
type ShowStatus string

const (
	ShowStatusScheduled ShowStatus = "scheduled" // 開始前
	ShowStatusLive      ShowStatus = "live"      // 配信中
	ShowStatusEnded     ShowStatus = "ended"     // 終了（終端状態）
)

// NewShowStatus 新しいShowStatusを作成
func NewShowStatus(s string) (ShowStatus, error) {
	status := ShowStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid show status: %s", s)
	}
	return status, nil
}

// String 文字列表現を返す
func (s ShowStatus) String() string {
	return string(s)
}

// Valid 有効なステータスかどうかを返す
func (s ShowStatus) Valid() bool {
	switch s {
	case ShowStatusScheduled, ShowStatusLive, ShowStatusEnded:
		return true
	default:
		return false
	}
}

var showIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// Show ショーセッションエンティティ
// 状態遷移はscheduled→live→endedの一方向のみ
type Show struct {
	showID          string
	creatorID       string
	status          ShowStatus
	roomName        string
	ticketPrice     int64
	startedAt       *time.Time
	endedAt         *time.Time
	lastHeartbeatAt *time.Time
	attendeeCount   int64
	totalGifts      int64
}

// NewShow 新しいShowエンティティを作成（scheduled状態）
func NewShow(showID, creatorID, roomName string, ticketPrice int64) (*Show, error) {
	if !showIDRegex.MatchString(showID) {
		return nil, ErrInvalidShowID
	}
	if creatorID == "" || roomName == "" {
		return nil, ErrInvalidShow
	}
	if ticketPrice < 0 {
		return nil, ErrInvalidShow
	}
	return &Show{
		showID:      showID,
		creatorID:   creatorID,
		status:      ShowStatusScheduled,
		roomName:    roomName,
		ticketPrice: ticketPrice,
	}, nil
}

// ReconstructShow 永続化済みの値からShowエンティティを復元
func ReconstructShow(
	showID, creatorID string,
	status ShowStatus,
	roomName string,
	ticketPrice int64,
	startedAt, endedAt, lastHeartbeatAt *time.Time,
	attendeeCount, totalGifts int64,
) *Show {
	return &Show{
		showID:          showID,
		creatorID:       creatorID,
		status:          status,
		roomName:        roomName,
		ticketPrice:     ticketPrice,
		startedAt:       startedAt,
		endedAt:         endedAt,
		lastHeartbeatAt: lastHeartbeatAt,
		attendeeCount:   attendeeCount,
		totalGifts:      totalGifts,
	}
}

// ShowID ショーIDを返す
func (s *Show) ShowID() string {
	return s.showID
}

// CreatorID クリエイターIDを返す
func (s *Show) CreatorID() string {
	return s.creatorID
}

// Status ステータスを返す
func (s *Show) Status() ShowStatus {
	return s.status
}

// RoomName ルーム名を返す
func (s *Show) RoomName() string {
	return s.roomName
}

// TicketPrice チケット価格（コイン）を返す
func (s *Show) TicketPrice() int64 {
	return s.ticketPrice
}

// StartedAt 開始日時を返す
func (s *Show) StartedAt() *time.Time {
	return s.startedAt
}

// EndedAt 終了日時を返す
func (s *Show) EndedAt() *time.Time {
	return s.endedAt
}

// LastHeartbeatAt 最終ハートビート日時を返す
func (s *Show) LastHeartbeatAt() *time.Time {
	return s.lastHeartbeatAt
}

// AttendeeCount 参加者数（終了時に確定）を返す
func (s *Show) AttendeeCount() int64 {
	return s.attendeeCount
}

// TotalGifts ギフト合計（終了時に確定）を返す
func (s *Show) TotalGifts() int64 {
	return s.totalGifts
}

// IsLive 配信中かどうかを返す
func (s *Show) IsLive() bool {
	return s.status == ShowStatusLive
}

// IsEnded 終了済みかどうかを返す
func (s *Show) IsEnded() bool {
	return s.status == ShowStatusEnded
}

// Start 配信を開始する（scheduled→live）
func (s *Show) Start(at time.Time) error {
	if s.status != ShowStatusScheduled {
		return ErrInvalidStateTransition
	}
	s.status = ShowStatusLive
	s.startedAt = &at
	s.lastHeartbeatAt = &at
	return nil
}

// Heartbeat ハートビートを記録する（live中のみ）
func (s *Show) Heartbeat(at time.Time) error {
	if s.status != ShowStatusLive {
		return ErrInvalidStateTransition
	}
	s.lastHeartbeatAt = &at
	return nil
}

// End 配信を終了する（live→ended）
func (s *Show) End(at time.Time, attendeeCount, totalGifts int64) error {
	if s.status != ShowStatusLive {
		return ErrInvalidStateTransition
	}
	s.status = ShowStatusEnded
	s.endedAt = &at
	s.attendeeCount = attendeeCount
	s.totalGifts = totalGifts
	return nil
}

// MustNewShow テスト用ヘルパー: NewShowを呼び出し、エラーが発生した場合はpanicする
func MustNewShow(showID, creatorID, roomName string, ticketPrice int64) *Show {
	s, err := NewShow(showID, creatorID, roomName, ticketPrice)
	if err != nil {
		panic(err)
	}
	return s
}
