package service

import (
	"context"

	"coin-server/internal/domain/wallet"
)

// FundsService 残高関連のドメインサービス
type FundsService struct {
	walletRepo wallet.WalletRepository
}

// NewFundsService 新しいFundsServiceを作成
func NewFundsService(walletRepo wallet.WalletRepository) *FundsService {
	return &FundsService{
		walletRepo: walletRepo,
	}
}

// GetBalance アカウントの現在残高を取得（ウォレット未作成の場合は0）
func (s *FundsService) GetBalance(ctx context.Context, accountID string) (int64, error) {
	w, err := s.walletRepo.FindByOwnerID(ctx, accountID)
	if err != nil {
		if err == wallet.ErrWalletNotFound {
			return 0, nil
		}
		return 0, err
	}
	return w.Balance(), nil
}

// HasSufficientFunds 指定された金額の残高があるかチェック（デビットは行わない）
func (s *FundsService) HasSufficientFunds(ctx context.Context, accountID string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, wallet.ErrInvalidAmount
	}
	balance, err := s.GetBalance(ctx, accountID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}
