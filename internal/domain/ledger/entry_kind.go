package ledger

import (
	"fmt"
)

// EntryKind エントリ種別を表す値オブジェクト
type EntryKind string

const (
	EntryKindTopup            EntryKind = "topup"                     // チャージ
	EntryKindCallDebit        EntryKind = "call_debit"                // 通話課金
	EntryKindMessageUnlock    EntryKind = "message_unlock"            // 有料メッセージ解錠
	EntryKindGiftSend         EntryKind = "gift_send"                 // ギフト送信（ファン側デビット）
	EntryKindGiftReceive      EntryKind = "gift_receive"              // ギフト受取（クリエイター側クレジット）
	EntryKindAISessionDebit   EntryKind = "ai_session_debit"          // AIセッション課金
	EntryKindTicketPurchase   EntryKind = "ticket_purchase"           // ショーチケット購入
	EntryKindSettlementCredit EntryKind = "settlement_credit"         // 外部決済の入金反映
	EntryKindReconAdjustment  EntryKind = "reconciliation_adjustment" // 突合調整
)

// NewEntryKind 新しいEntryKindを作成
func NewEntryKind(s string) (EntryKind, error) {
	kind := EntryKind(s)
	if !kind.Valid() {
		return "", fmt.Errorf("invalid entry kind: %s", s)
	}
	return kind, nil
}

// String 文字列表現を返す
func (k EntryKind) String() string {
	return string(k)
}

// Valid 有効なエントリ種別かどうかを返す
func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindTopup, EntryKindCallDebit, EntryKindMessageUnlock,
		EntryKindGiftSend, EntryKindGiftReceive, EntryKindAISessionDebit,
		EntryKindTicketPurchase, EntryKindSettlementCredit, EntryKindReconAdjustment:
		return true
	default:
		return false
	}
}
