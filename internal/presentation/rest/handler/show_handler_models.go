package handler

// CreateShowRequest ショー作成リクエスト
// @Description ショー作成リクエスト
type CreateShowRequest struct {
	ShowID      string `json:"show_id" example:"show_20260830"`
	CreatorID   string `json:"creator_id" example:"creator456"`
	RoomName    string `json:"room_name" example:"room-1"`
	TicketPrice string `json:"ticket_price" example:"100"`
}

// ShowResponse ショーレスポンス
// @Description ショーレスポンス
type ShowResponse struct {
	ShowID string `json:"show_id" example:"show_20260830"`
	Status string `json:"status" example:"live"`
}

// TicketRequest チケット購入リクエスト
// @Description チケット購入リクエスト
type TicketRequest struct {
	HolderID string `json:"holder_id" example:"fan123"`
}

// TicketResponse チケット購入レスポンス
// @Description チケット購入レスポンス
type TicketResponse struct {
	TicketID string `json:"ticket_id" example:"tkt_123"`
	ShowID   string `json:"show_id" example:"show_20260830"`
	HolderID string `json:"holder_id" example:"fan123"`
}

// JoinRequest 入室リクエスト
// @Description 入室リクエスト
type JoinRequest struct {
	HolderID string `json:"holder_id" example:"fan123"`
}

// JoinResponse 入室レスポンス
// @Description 入室レスポンス
type JoinResponse struct {
	ShowID   string `json:"show_id" example:"show_20260830"`
	TicketID string `json:"ticket_id" example:"tkt_123"`
	RoomName string `json:"room_name" example:"room-1"`
}

// GiftRequest ギフト送信リクエスト
// @Description ギフト送信リクエスト
type GiftRequest struct {
	SenderID       string `json:"sender_id" example:"fan123"`
	Amount         string `json:"amount" example:"100"`
	IdempotencyKey string `json:"idempotency_key" example:"gift-abc123"`
}

// GiftResponse ギフト送信レスポンス
// @Description ギフト送信レスポンス
type GiftResponse struct {
	ShowID    string `json:"show_id" example:"show_20260830"`
	NetAmount string `json:"net_amount" example:"70"`
}

// EndShowResponse ショー終了レスポンス
// @Description ショー終了レスポンス
type EndShowResponse struct {
	ShowID        string `json:"show_id" example:"show_20260830"`
	Status        string `json:"status" example:"ended"`
	AttendeeCount int64  `json:"attendee_count" example:"12"`
	TotalGifts    string `json:"total_gifts" example:"700"`
}
