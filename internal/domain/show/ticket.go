package show

import (
	"time"
)

// Ticket ショーチケットエンティティ
// accessGrantedは購入エントリがコミットされた後にのみtrueになる
type Ticket struct {
	ticketID      string
	showID        string
	holderID      string
	purchasedAt   time.Time
	accessGranted bool
	usedAt        *time.Time
}

// NewTicket 新しいTicketエンティティを作成（アクセス未許可）
func NewTicket(ticketID, showID, holderID string, purchasedAt time.Time) (*Ticket, error) {
	if ticketID == "" || showID == "" || holderID == "" {
		return nil, ErrInvalidTicket
	}
	return &Ticket{
		ticketID:      ticketID,
		showID:        showID,
		holderID:      holderID,
		purchasedAt:   purchasedAt,
		accessGranted: false,
	}, nil
}

// ReconstructTicket 永続化済みの値からTicketエンティティを復元
func ReconstructTicket(ticketID, showID, holderID string, purchasedAt time.Time, accessGranted bool, usedAt *time.Time) *Ticket {
	return &Ticket{
		ticketID:      ticketID,
		showID:        showID,
		holderID:      holderID,
		purchasedAt:   purchasedAt,
		accessGranted: accessGranted,
		usedAt:        usedAt,
	}
}

// TicketID チケットIDを返す
func (t *Ticket) TicketID() string {
	return t.ticketID
}

// ShowID ショーIDを返す
func (t *Ticket) ShowID() string {
	return t.showID
}

// HolderID 保有者IDを返す
func (t *Ticket) HolderID() string {
	return t.holderID
}

// PurchasedAt 購入日時を返す
func (t *Ticket) PurchasedAt() time.Time {
	return t.purchasedAt
}

// AccessGranted アクセス許可済みかどうかを返す
func (t *Ticket) AccessGranted() bool {
	return t.accessGranted
}

// UsedAt 入室日時を返す
func (t *Ticket) UsedAt() *time.Time {
	return t.usedAt
}

// Grant アクセスを許可する（購入エントリのコミット後に呼ばれる）
func (t *Ticket) Grant() {
	t.accessGranted = true
}
