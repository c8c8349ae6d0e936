package ledger

import (
	"fmt"
)

// EntryStatus エントリステータスを表す値オブジェクト
type EntryStatus string

const (
	EntryStatusCommitted EntryStatus = "committed" // コミット済み
	EntryStatusReversed  EntryStatus = "reversed"  // 取消済み
)

// NewEntryStatus 新しいEntryStatusを作成
func NewEntryStatus(s string) (EntryStatus, error) {
	status := EntryStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid entry status: %s", s)
	}
	return status, nil
}

// String 文字列表現を返す
func (s EntryStatus) String() string {
	return string(s)
}

// Valid 有効なエントリステータスかどうかを返す
func (s EntryStatus) Valid() bool {
	switch s {
	case EntryStatusCommitted, EntryStatusReversed:
		return true
	default:
		return false
	}
}

// IsCommitted コミット済みかどうかを返す
func (s EntryStatus) IsCommitted() bool {
	return s == EntryStatusCommitted
}
