package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWallet(t *testing.T) {
	tests := []struct {
		name      string
		ownerID   string
		balance   int64
		version   int
		wantError error
	}{
		{
			name:    "正常系: ウォレットの作成",
			ownerID: "fan123",
			balance: 1000,
			version: 1,
		},
		{
			name:    "正常系: 残高0のウォレット",
			ownerID: "fan123",
			balance: 0,
			version: 0,
		},
		{
			name:      "異常系: 所有者IDが空",
			ownerID:   "",
			balance:   1000,
			version:   1,
			wantError: ErrInvalidOwnerID,
		},
		{
			name:      "異常系: 所有者IDに不正な文字",
			ownerID:   "fan 123",
			balance:   1000,
			version:   1,
			wantError: ErrInvalidOwnerID,
		},
		{
			name:      "異常系: マイナス残高",
			ownerID:   "fan123",
			balance:   -1,
			version:   1,
			wantError: ErrBalanceOutOfRange,
		},
		{
			name:      "異常系: 最大残高超過",
			ownerID:   "fan123",
			balance:   MaxBalance + 1,
			version:   1,
			wantError: ErrBalanceOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWallet(tt.ownerID, tt.balance, tt.version)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, w)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ownerID, w.OwnerID())
			assert.Equal(t, tt.balance, w.Balance())
			assert.Equal(t, tt.version, w.Version())
		})
	}
}

func TestWallet_Credit(t *testing.T) {
	tests := []struct {
		name        string
		balance     int64
		amount      int64
		wantBalance int64
		wantError   error
	}{
		{
			name:        "正常系: 入金成功",
			balance:     1000,
			amount:      500,
			wantBalance: 1500,
		},
		{
			name:      "異常系: 金額が0",
			balance:   1000,
			amount:    0,
			wantError: ErrInvalidAmount,
		},
		{
			name:      "異常系: 金額がマイナス",
			balance:   1000,
			amount:    -100,
			wantError: ErrInvalidAmount,
		},
		{
			name:      "異常系: 入金後に最大残高を超える",
			balance:   MaxBalance - 100,
			amount:    200,
			wantError: ErrBalanceOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := MustNewWallet("fan123", tt.balance, 1)
			err := w.Credit(tt.amount)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Equal(t, tt.balance, w.Balance(), "失敗時は残高が変わらない")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, w.Balance())
		})
	}
}

func TestWallet_Debit(t *testing.T) {
	tests := []struct {
		name        string
		balance     int64
		amount      int64
		wantBalance int64
		wantError   error
	}{
		{
			name:        "正常系: 出金成功",
			balance:     1000,
			amount:      300,
			wantBalance: 700,
		},
		{
			name:        "正常系: 残高ちょうどの出金",
			balance:     1000,
			amount:      1000,
			wantBalance: 0,
		},
		{
			name:      "異常系: 残高不足",
			balance:   100,
			amount:    101,
			wantError: ErrInsufficientFunds,
		},
		{
			name:      "異常系: 金額が0",
			balance:   1000,
			amount:    0,
			wantError: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := MustNewWallet("fan123", tt.balance, 1)
			err := w.Debit(tt.amount)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Equal(t, tt.balance, w.Balance(), "失敗時は残高が変わらない")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, w.Balance())
		})
	}
}
