package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"coin-server/internal/domain/wallet"
)

// MockWalletRepository ウォレットリポジトリのモック
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) FindByOwnerID(ctx context.Context, ownerID string) (*wallet.Wallet, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func TestFundsService_GetBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: ウォレットありの残高取得", func(t *testing.T) {
		repo := new(MockWalletRepository)
		svc := NewFundsService(repo)

		repo.On("FindByOwnerID", ctx, "fan123").Return(wallet.MustNewWallet("fan123", 1000, 1), nil)

		balance, err := svc.GetBalance(ctx, "fan123")
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)
		repo.AssertExpectations(t)
	})

	t.Run("正常系: ウォレット未作成は残高0", func(t *testing.T) {
		repo := new(MockWalletRepository)
		svc := NewFundsService(repo)

		repo.On("FindByOwnerID", ctx, "fan999").Return(nil, wallet.ErrWalletNotFound)

		balance, err := svc.GetBalance(ctx, "fan999")
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})

	t.Run("異常系: リポジトリエラーは伝播する", func(t *testing.T) {
		repo := new(MockWalletRepository)
		svc := NewFundsService(repo)

		repoErr := errors.New("db connection lost")
		repo.On("FindByOwnerID", ctx, "fan123").Return(nil, repoErr)

		_, err := svc.GetBalance(ctx, "fan123")
		assert.ErrorIs(t, err, repoErr)
	})
}

func TestFundsService_HasSufficientFunds(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		balance   int64
		amount    int64
		want      bool
		wantError error
	}{
		{name: "正常系: 残高が十分", balance: 1000, amount: 500, want: true},
		{name: "正常系: 残高ちょうど", balance: 500, amount: 500, want: true},
		{name: "正常系: 残高不足", balance: 100, amount: 500, want: false},
		{name: "異常系: 金額が0", balance: 1000, amount: 0, wantError: wallet.ErrInvalidAmount},
		{name: "異常系: マイナス金額", balance: 1000, amount: -1, wantError: wallet.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockWalletRepository)
			svc := NewFundsService(repo)

			if tt.wantError == nil {
				repo.On("FindByOwnerID", ctx, "fan123").Return(wallet.MustNewWallet("fan123", tt.balance, 1), nil)
			}

			ok, err := svc.HasSufficientFunds(ctx, "fan123", tt.amount)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
