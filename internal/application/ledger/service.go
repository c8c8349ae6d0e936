package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coin-server/internal/domain/ledger"
	"coin-server/internal/domain/wallet"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
)

// LedgerApplicationService 台帳アプリケーションサービス
// すべての残高変更は台帳エントリとウォレット射影を同一トランザクションで更新する
type LedgerApplicationService struct {
	walletRepo wallet.WalletRepository
	entryRepo  ledger.EntryRepository
	txManager  ledger.TransactionManager
	logger     *otelinfra.Logger
	metrics    *otelinfra.Metrics
	tracer     trace.Tracer
	maxRetries int
}

// NewLedgerApplicationService 新しいLedgerApplicationServiceを作成
func NewLedgerApplicationService(
	walletRepo wallet.WalletRepository,
	entryRepo ledger.EntryRepository,
	txManager ledger.TransactionManager,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *LedgerApplicationService {
	return &LedgerApplicationService{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		txManager:  txManager,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("ledger-service"),
		maxRetries: 3,
	}
}

// GetBalance 残高を取得
// ウォレット未作成のアカウントは残高0として扱う
func (s *LedgerApplicationService) GetBalance(ctx context.Context, req *GetBalanceRequest) (*GetBalanceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.GetBalance")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
	)

	w, err := s.walletRepo.FindByOwnerID(ctx, req.AccountID)
	if err != nil && err != wallet.ErrWalletNotFound {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find wallet: %w", err)
	}

	var balance int64
	if w != nil {
		balance = w.Balance()
		s.metrics.RecordWalletBalance(ctx, req.AccountID, balance)
	}

	return &GetBalanceResponse{
		AccountID: req.AccountID,
		Balance:   balance,
	}, nil
}

// Credit 入金を適用
// 同じ冪等性キーの再実行は新しいエントリを作らず、初回の結果を返す
func (s *LedgerApplicationService) Credit(ctx context.Context, req *CreditRequest) (*CreditResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.Credit")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int64("amount", req.Amount),
		attribute.String("kind", req.Kind),
		attribute.String("idempotency_key", req.IdempotencyKey),
	)

	s.logger.Info(ctx, "Applying credit", map[string]interface{}{
		"account_id":      req.AccountID,
		"amount":          req.Amount,
		"kind":            req.Kind,
		"idempotency_key": req.IdempotencyKey,
	})

	if req.Amount <= 0 {
		err := ledger.ErrInvalidAmount
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	kind, err := ledger.NewEntryKind(req.Kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	// 冪等性チェック: 既に適用済みなら初回の結果を返す
	if existing, err := s.entryRepo.FindByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		span.SetAttributes(attribute.Bool("replayed", true))
		return &CreditResponse{
			EntryID:      existing.EntryID(),
			BalanceAfter: existing.BalanceAfter(),
			Replayed:     true,
		}, nil
	} else if err != ledger.ErrEntryNotFound {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	entryID := s.generateEntryID()

	var result *CreditResponse
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var retryErr error
		for attempt := 0; attempt < s.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
				time.Sleep(backoff)
				s.metrics.RecordConflictRetry(ctx, "credit")
			}

			w, err := s.walletRepo.FindByOwnerID(ctx, req.AccountID)
			if err == wallet.ErrWalletNotFound {
				w, err = wallet.NewWallet(req.AccountID, 0, 0)
				if err != nil {
					return err
				}
				if err := s.walletRepo.Create(ctx, w); err != nil {
					if err == wallet.ErrVersionConflict && attempt < s.maxRetries-1 {
						retryErr = err
						continue
					}
					return fmt.Errorf("failed to create wallet: %w", err)
				}
			} else if err != nil {
				return fmt.Errorf("failed to find wallet: %w", err)
			}

			balanceBefore := w.Balance()

			if err := w.Credit(req.Amount); err != nil {
				return err
			}

			if err := s.walletRepo.Save(ctx, w); err != nil {
				if err == wallet.ErrVersionConflict && attempt < s.maxRetries-1 {
					retryErr = err
					continue
				}
				return fmt.Errorf("failed to save wallet after retries: %w", err)
			}

			entry, err := ledger.NewEntry(
				entryID, req.AccountID, req.Amount, kind, req.ReferenceID,
				req.IdempotencyKey, balanceBefore, w.Balance(),
				ledger.EntryStatusCommitted, req.Metadata,
			)
			if err != nil {
				return err
			}

			if err := s.entryRepo.Save(ctx, entry); err != nil {
				return err
			}

			s.metrics.RecordEntry(ctx, kind.String())
			s.metrics.RecordWalletBalance(ctx, req.AccountID, w.Balance())

			result = &CreditResponse{
				EntryID:      entryID,
				BalanceAfter: w.Balance(),
			}

			return nil
		}

		return retryErr
	})

	if err != nil {
		// 並行して同じキーが適用された場合は初回の結果を返す
		if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
			existing, findErr := s.entryRepo.FindByIdempotencyKey(ctx, req.IdempotencyKey)
			if findErr == nil {
				span.SetAttributes(attribute.Bool("replayed", true))
				return &CreditResponse{
					EntryID:      existing.EntryID(),
					BalanceAfter: existing.BalanceAfter(),
					Replayed:     true,
				}, nil
			}
		}
		if errors.Is(err, wallet.ErrVersionConflict) {
			err = ledger.ErrConflict
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to apply credit", err, map[string]interface{}{
			"account_id":      req.AccountID,
			"idempotency_key": req.IdempotencyKey,
		})
		s.metrics.RecordError(ctx, "credit_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Credit applied successfully", map[string]interface{}{
		"account_id":    req.AccountID,
		"entry_id":      entryID,
		"balance_after": result.BalanceAfter,
	})

	return result, nil
}

// Debit 出金を適用
// 残高不足の場合は台帳を変更せずErrInsufficientFundsを返す
func (s *LedgerApplicationService) Debit(ctx context.Context, req *DebitRequest) (*DebitResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.Debit")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int64("amount", req.Amount),
		attribute.String("kind", req.Kind),
		attribute.String("idempotency_key", req.IdempotencyKey),
	)

	s.logger.Info(ctx, "Applying debit", map[string]interface{}{
		"account_id":      req.AccountID,
		"amount":          req.Amount,
		"kind":            req.Kind,
		"idempotency_key": req.IdempotencyKey,
	})

	if req.Amount <= 0 {
		err := ledger.ErrInvalidAmount
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	kind, err := ledger.NewEntryKind(req.Kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	// 冪等性チェック: 既に適用済みなら初回の結果を返す
	if existing, err := s.entryRepo.FindByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		span.SetAttributes(attribute.Bool("replayed", true))
		return &DebitResponse{
			EntryID:      existing.EntryID(),
			BalanceAfter: existing.BalanceAfter(),
			Replayed:     true,
		}, nil
	} else if err != ledger.ErrEntryNotFound {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	entryID := s.generateEntryID()

	var result *DebitResponse
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var retryErr error
		for attempt := 0; attempt < s.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
				time.Sleep(backoff)
				s.metrics.RecordConflictRetry(ctx, "debit")
			}

			w, err := s.walletRepo.FindByOwnerID(ctx, req.AccountID)
			if err == wallet.ErrWalletNotFound {
				// ウォレット未作成は残高0と等価
				return wallet.ErrInsufficientFunds
			}
			if err != nil {
				return fmt.Errorf("failed to find wallet: %w", err)
			}

			balanceBefore := w.Balance()

			if err := w.Debit(req.Amount); err != nil {
				return err
			}

			if err := s.walletRepo.Save(ctx, w); err != nil {
				if err == wallet.ErrVersionConflict && attempt < s.maxRetries-1 {
					retryErr = err
					continue
				}
				return fmt.Errorf("failed to save wallet after retries: %w", err)
			}

			entry, err := ledger.NewEntry(
				entryID, req.AccountID, -req.Amount, kind, req.ReferenceID,
				req.IdempotencyKey, balanceBefore, w.Balance(),
				ledger.EntryStatusCommitted, req.Metadata,
			)
			if err != nil {
				return err
			}

			if err := s.entryRepo.Save(ctx, entry); err != nil {
				return err
			}

			s.metrics.RecordEntry(ctx, kind.String())
			s.metrics.RecordWalletBalance(ctx, req.AccountID, w.Balance())

			result = &DebitResponse{
				EntryID:      entryID,
				BalanceAfter: w.Balance(),
			}

			return nil
		}

		return retryErr
	})

	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
			existing, findErr := s.entryRepo.FindByIdempotencyKey(ctx, req.IdempotencyKey)
			if findErr == nil {
				span.SetAttributes(attribute.Bool("replayed", true))
				return &DebitResponse{
					EntryID:      existing.EntryID(),
					BalanceAfter: existing.BalanceAfter(),
					Replayed:     true,
				}, nil
			}
		}
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			s.metrics.RecordInsufficientFunds(ctx, kind.String())
		}
		if errors.Is(err, wallet.ErrVersionConflict) {
			err = ledger.ErrConflict
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to apply debit", err, map[string]interface{}{
			"account_id":      req.AccountID,
			"idempotency_key": req.IdempotencyKey,
		})
		s.metrics.RecordError(ctx, "debit_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Debit applied successfully", map[string]interface{}{
		"account_id":    req.AccountID,
		"entry_id":      entryID,
		"balance_after": result.BalanceAfter,
	})

	return result, nil
}

// Adjust 突合調整を適用（符号付き金額）
func (s *LedgerApplicationService) Adjust(ctx context.Context, req *AdjustRequest) (*AdjustResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.Adjust")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int64("amount", req.Amount),
		attribute.String("idempotency_key", req.IdempotencyKey),
	)

	if req.Amount == 0 {
		err := ledger.ErrInvalidAmount
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if req.Amount > 0 {
		resp, err := s.Credit(ctx, &CreditRequest{
			AccountID:      req.AccountID,
			Amount:         req.Amount,
			Kind:           ledger.EntryKindReconAdjustment.String(),
			ReferenceID:    req.ReferenceID,
			IdempotencyKey: req.IdempotencyKey,
			Metadata:       req.Metadata,
		})
		if err != nil {
			return nil, err
		}
		return &AdjustResponse{
			EntryID:      resp.EntryID,
			BalanceAfter: resp.BalanceAfter,
			Replayed:     resp.Replayed,
		}, nil
	}

	resp, err := s.Debit(ctx, &DebitRequest{
		AccountID:      req.AccountID,
		Amount:         -req.Amount,
		Kind:           ledger.EntryKindReconAdjustment.String(),
		ReferenceID:    req.ReferenceID,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return &AdjustResponse{
		EntryID:      resp.EntryID,
		BalanceAfter: resp.BalanceAfter,
		Replayed:     resp.Replayed,
	}, nil
}

// Transfer 2アカウント間の送金を適用（ギフトなど）
// 送金側から総額を引き落とし、手数料控除後の額を受取側に入金する。両エントリは同一トランザクションでコミットされる
func (s *LedgerApplicationService) Transfer(ctx context.Context, req *TransferRequest) (*TransferResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.Transfer")
	defer span.End()

	span.SetAttributes(
		attribute.String("from_account_id", req.FromAccountID),
		attribute.String("to_account_id", req.ToAccountID),
		attribute.Int64("amount", req.Amount),
		attribute.Int("fee_pct", req.FeePct),
		attribute.String("idempotency_key", req.IdempotencyKey),
	)

	s.logger.Info(ctx, "Applying transfer", map[string]interface{}{
		"from_account_id": req.FromAccountID,
		"to_account_id":   req.ToAccountID,
		"amount":          req.Amount,
		"idempotency_key": req.IdempotencyKey,
	})

	if req.Amount <= 0 {
		err := ledger.ErrInvalidAmount
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if req.FromAccountID == req.ToAccountID {
		err := ledger.ErrInvalidAccountID
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if req.FeePct < 0 || req.FeePct >= 100 {
		err := fmt.Errorf("invalid fee pct: %d", req.FeePct)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	debitKind, err := ledger.NewEntryKind(req.DebitKind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	creditKind, err := ledger.NewEntryKind(req.CreditKind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	fee := req.Amount * int64(req.FeePct) / 100
	net := req.Amount - fee

	sendKey := req.IdempotencyKey + "-send"
	recvKey := req.IdempotencyKey + "-recv"

	// 冪等性チェック: 送金側エントリが存在すれば適用済み
	if existing, err := s.entryRepo.FindByIdempotencyKey(ctx, sendKey); err == nil {
		creditEntry, findErr := s.entryRepo.FindByIdempotencyKey(ctx, recvKey)
		if findErr != nil {
			span.RecordError(findErr)
			span.SetStatus(otelcodes.Error, findErr.Error())
			return nil, fmt.Errorf("failed to find credit entry: %w", findErr)
		}
		span.SetAttributes(attribute.Bool("replayed", true))
		return &TransferResponse{
			DebitEntryID:  existing.EntryID(),
			CreditEntryID: creditEntry.EntryID(),
			NetAmount:     creditEntry.Amount(),
			Replayed:      true,
		}, nil
	} else if err != ledger.ErrEntryNotFound {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	debitEntryID := s.generateEntryID() + "_send"
	creditEntryID := s.generateEntryID() + "_recv"

	metadata := req.Metadata
	if fee > 0 {
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		metadata["platform_fee"] = fee
	}

	var result *TransferResponse
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var retryErr error
		for attempt := 0; attempt < s.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
				time.Sleep(backoff)
				s.metrics.RecordConflictRetry(ctx, "transfer")
			}

			from, err := s.walletRepo.FindByOwnerID(ctx, req.FromAccountID)
			if err == wallet.ErrWalletNotFound {
				return wallet.ErrInsufficientFunds
			}
			if err != nil {
				return fmt.Errorf("failed to find sender wallet: %w", err)
			}

			to, err := s.walletRepo.FindByOwnerID(ctx, req.ToAccountID)
			if err == wallet.ErrWalletNotFound {
				to, err = wallet.NewWallet(req.ToAccountID, 0, 0)
				if err != nil {
					return err
				}
				if err := s.walletRepo.Create(ctx, to); err != nil {
					if err == wallet.ErrVersionConflict && attempt < s.maxRetries-1 {
						retryErr = err
						continue
					}
					return fmt.Errorf("failed to create receiver wallet: %w", err)
				}
			} else if err != nil {
				return fmt.Errorf("failed to find receiver wallet: %w", err)
			}

			fromBefore := from.Balance()
			toBefore := to.Balance()

			if err := from.Debit(req.Amount); err != nil {
				return err
			}
			if err := to.Credit(net); err != nil {
				return err
			}

			// 行ロックの取得順をアカウントID順に固定し、逆方向の同時送金とのデッドロックを防ぐ
			first, second := from, to
			if to.OwnerID() < from.OwnerID() {
				first, second = to, from
			}
			if err := s.walletRepo.Save(ctx, first); err != nil {
				if err == wallet.ErrVersionConflict && attempt < s.maxRetries-1 {
					retryErr = err
					continue
				}
				return fmt.Errorf("failed to save wallet after retries: %w", err)
			}
			if err := s.walletRepo.Save(ctx, second); err != nil {
				if err == wallet.ErrVersionConflict && attempt < s.maxRetries-1 {
					retryErr = err
					continue
				}
				return fmt.Errorf("failed to save wallet after retries: %w", err)
			}

			debitEntry, err := ledger.NewEntry(
				debitEntryID, req.FromAccountID, -req.Amount, debitKind, req.ReferenceID,
				sendKey, fromBefore, from.Balance(),
				ledger.EntryStatusCommitted, metadata,
			)
			if err != nil {
				return err
			}
			creditEntry, err := ledger.NewEntry(
				creditEntryID, req.ToAccountID, net, creditKind, req.ReferenceID,
				recvKey, toBefore, to.Balance(),
				ledger.EntryStatusCommitted, metadata,
			)
			if err != nil {
				return err
			}

			if err := s.entryRepo.Save(ctx, debitEntry); err != nil {
				return err
			}
			if err := s.entryRepo.Save(ctx, creditEntry); err != nil {
				return err
			}

			s.metrics.RecordEntry(ctx, debitKind.String())
			s.metrics.RecordEntry(ctx, creditKind.String())
			s.metrics.RecordWalletBalance(ctx, req.FromAccountID, from.Balance())
			s.metrics.RecordWalletBalance(ctx, req.ToAccountID, to.Balance())

			result = &TransferResponse{
				DebitEntryID:  debitEntryID,
				CreditEntryID: creditEntryID,
				NetAmount:     net,
			}

			return nil
		}

		return retryErr
	})

	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
			debitEntry, findErr := s.entryRepo.FindByIdempotencyKey(ctx, sendKey)
			creditEntry, findErr2 := s.entryRepo.FindByIdempotencyKey(ctx, recvKey)
			if findErr == nil && findErr2 == nil {
				span.SetAttributes(attribute.Bool("replayed", true))
				return &TransferResponse{
					DebitEntryID:  debitEntry.EntryID(),
					CreditEntryID: creditEntry.EntryID(),
					NetAmount:     creditEntry.Amount(),
					Replayed:      true,
				}, nil
			}
		}
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			s.metrics.RecordInsufficientFunds(ctx, debitKind.String())
		}
		if errors.Is(err, wallet.ErrVersionConflict) {
			err = ledger.ErrConflict
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to apply transfer", err, map[string]interface{}{
			"from_account_id": req.FromAccountID,
			"to_account_id":   req.ToAccountID,
			"idempotency_key": req.IdempotencyKey,
		})
		s.metrics.RecordError(ctx, "transfer_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Transfer applied successfully", map[string]interface{}{
		"from_account_id": req.FromAccountID,
		"to_account_id":   req.ToAccountID,
		"net_amount":      result.NetAmount,
	})

	return result, nil
}

// GetHistory 台帳エントリ履歴を取得（新しい順）
func (s *LedgerApplicationService) GetHistory(ctx context.Context, req *GetHistoryRequest) (*GetHistoryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "LedgerApplicationService.GetHistory")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int("limit", req.Limit),
		attribute.Int("offset", req.Offset),
	)

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	entries, err := s.entryRepo.FindByAccountID(ctx, req.AccountID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find entries: %w", err)
	}

	history := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		history = append(history, HistoryEntry{
			EntryID:       e.EntryID(),
			Amount:        e.Amount(),
			Kind:          e.Kind().String(),
			ReferenceID:   e.ReferenceID(),
			BalanceBefore: e.BalanceBefore(),
			BalanceAfter:  e.BalanceAfter(),
			Status:        e.Status().String(),
			CreatedAt:     e.CreatedAt().Format(time.RFC3339),
		})
	}

	return &GetHistoryResponse{
		AccountID: req.AccountID,
		Entries:   history,
	}, nil
}

// generateEntryID エントリIDを生成
func (s *LedgerApplicationService) generateEntryID() string {
	return fmt.Sprintf("ent_%d", time.Now().UnixNano())
}
