package show

import "time"

// CreateShowRequest ショー作成リクエスト
type CreateShowRequest struct {
	ShowID      string
	CreatorID   string
	RoomName    string
	TicketPrice int64
}

// CreateShowResponse ショー作成レスポンス
type CreateShowResponse struct {
	ShowID string
	Status string
}

// PurchaseTicketRequest チケット購入リクエスト
type PurchaseTicketRequest struct {
	ShowID   string
	HolderID string
}

// PurchaseTicketResponse チケット購入レスポンス
type PurchaseTicketResponse struct {
	TicketID string
	ShowID   string
	HolderID string
	Replayed bool // 購入済みチケットを返した場合はtrue
}

// StartShowResponse ショー開始レスポンス
type StartShowResponse struct {
	ShowID    string
	Status    string
	StartedAt time.Time
}

// JoinShowResponse 入室レスポンス
type JoinShowResponse struct {
	ShowID   string
	TicketID string
	RoomName string
}

// SendGiftRequest ギフト送信リクエスト
type SendGiftRequest struct {
	ShowID         string
	SenderID       string
	Amount         int64
	IdempotencyKey string
}

// SendGiftResponse ギフト送信レスポンス
type SendGiftResponse struct {
	ShowID    string
	NetAmount int64 // 手数料控除後にクリエイターへ入金された額
	Replayed  bool
}

// EndShowResponse ショー終了レスポンス
type EndShowResponse struct {
	ShowID        string
	Status        string
	AttendeeCount int64
	TotalGifts    int64
}
