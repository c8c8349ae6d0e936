package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgerapp "coin-server/internal/application/ledger"
	"coin-server/internal/domain/ledger"
	"coin-server/internal/domain/reconciliation"
	"coin-server/internal/domain/settlement"
	"coin-server/internal/domain/wallet"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
)

// LedgerService 突合ジョブが必要とする台帳操作
type LedgerService interface {
	Adjust(ctx context.Context, req *ledgerapp.AdjustRequest) (*ledgerapp.AdjustResponse, error)
}

// WindowResult 1期間の突合結果
type WindowResult struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Accounts    int // 突合対象アカウント数
	Claimed     int // このインスタンスがクレームを取得した数
	Adjusted    int // 調整エントリを適用した数
	Errors      int
}

// ReconciliationApplicationService 突合アプリケーションサービス
// 台帳側のsettlement_credit合計とプロバイダ側の入金合計を期間単位で比較し、
// 許容差分を超える乖離に調整エントリを適用する
type ReconciliationApplicationService struct {
	claimRepo      reconciliation.ClaimRepository
	entryRepo      ledger.EntryRepository
	eventRepo      settlement.EventRepository
	provider       settlement.ProviderClient
	ledgerSvc      LedgerService
	logger         *otelinfra.Logger
	metrics        *otelinfra.Metrics
	tracer         trace.Tracer
	coinPriceCents int64
	toleranceCoins int64
}

// NewReconciliationApplicationService 新しいReconciliationApplicationServiceを作成
func NewReconciliationApplicationService(
	claimRepo reconciliation.ClaimRepository,
	entryRepo ledger.EntryRepository,
	eventRepo settlement.EventRepository,
	provider settlement.ProviderClient,
	ledgerSvc LedgerService,
	coinPriceCents int64,
	toleranceCoins int64,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *ReconciliationApplicationService {
	return &ReconciliationApplicationService{
		claimRepo:      claimRepo,
		entryRepo:      entryRepo,
		eventRepo:      eventRepo,
		provider:       provider,
		ledgerSvc:      ledgerSvc,
		logger:         logger,
		metrics:        metrics,
		tracer:         otel.Tracer("reconciliation-service"),
		coinPriceCents: coinPriceCents,
		toleranceCoins: toleranceCoins,
	}
}

// RunWindow 指定期間の突合を実行
// クレームテーブルにより(アカウント, 期間)ごとに1インスタンスだけが突合する
func (s *ReconciliationApplicationService) RunWindow(ctx context.Context, windowStart, windowEnd time.Time) (*WindowResult, error) {
	ctx, span := s.tracer.Start(ctx, "ReconciliationApplicationService.RunWindow")
	defer span.End()

	span.SetAttributes(
		attribute.String("window_start", windowStart.Format(time.RFC3339)),
		attribute.String("window_end", windowEnd.Format(time.RFC3339)),
	)

	accountIDs, err := s.eventRepo.FindAccountIDsInWindow(ctx, windowStart, windowEnd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to list accounts in window: %w", err)
	}

	result := &WindowResult{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Accounts:    len(accountIDs),
	}

	for _, accountID := range accountIDs {
		claimed, err := s.claimRepo.Claim(ctx, accountID, windowStart, windowEnd)
		if err != nil {
			result.Errors++
			s.logger.Error(ctx, "Failed to claim reconciliation window", err, map[string]interface{}{
				"account_id":   accountID,
				"window_start": windowStart,
			})
			continue
		}
		if !claimed {
			continue
		}
		result.Claimed++

		adjusted, err := s.reconcileAccount(ctx, accountID, windowStart, windowEnd)
		if err != nil {
			result.Errors++
			continue
		}
		if adjusted {
			result.Adjusted++
		}
	}

	s.logger.Info(ctx, "Reconciliation window completed", map[string]interface{}{
		"window_start": windowStart,
		"window_end":   windowEnd,
		"accounts":     result.Accounts,
		"claimed":      result.Claimed,
		"adjusted":     result.Adjusted,
		"errors":       result.Errors,
	})
	return result, nil
}

// reconcileAccount 1アカウント分の突合
func (s *ReconciliationApplicationService) reconcileAccount(ctx context.Context, accountID string, windowStart, windowEnd time.Time) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "ReconciliationApplicationService.reconcileAccount")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", accountID),
	)

	totalCents, err := s.provider.GetSettlementTotal(ctx, accountID, windowStart, windowEnd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Provider total lookup failed", err, map[string]interface{}{
			"account_id": accountID,
		})
		// 取得不能の場合はクレームを解放して次回実行に委ねる
		if releaseErr := s.claimRepo.Release(ctx, accountID, windowStart); releaseErr != nil {
			s.logger.Error(ctx, "Failed to release reconciliation claim", releaseErr, map[string]interface{}{
				"account_id": accountID,
			})
		}
		return false, err
	}
	expected := totalCents / s.coinPriceCents

	actual, err := s.entryRepo.SumSettlementCredits(ctx, accountID, windowStart, windowEnd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, err
	}

	drift := expected - actual
	span.SetAttributes(
		attribute.Int64("expected", expected),
		attribute.Int64("actual", actual),
		attribute.Int64("drift", drift),
	)

	if drift >= -s.toleranceCoins && drift <= s.toleranceCoins {
		if err := s.claimRepo.RecordResult(ctx, accountID, windowStart, expected, actual, ""); err != nil {
			span.RecordError(err)
			return false, err
		}
		return false, nil
	}

	s.metrics.RecordReconciliationDrift(ctx, accountID)
	s.logger.Warn(ctx, "Reconciliation drift detected", map[string]interface{}{
		"account_id":   accountID,
		"window_start": windowStart,
		"expected":     expected,
		"actual":       actual,
		"drift":        drift,
	})

	idempotencyKey := fmt.Sprintf("recon-%s-%s", accountID, windowStart.UTC().Format(time.RFC3339))
	adjustResp, err := s.ledgerSvc.Adjust(ctx, &ledgerapp.AdjustRequest{
		AccountID:      accountID,
		Amount:         drift,
		ReferenceID:    fmt.Sprintf("recon-%s", windowStart.UTC().Format(time.RFC3339)),
		IdempotencyKey: idempotencyKey,
		Metadata: map[string]interface{}{
			"window_start": windowStart.UTC().Format(time.RFC3339),
			"window_end":   windowEnd.UTC().Format(time.RFC3339),
			"expected":     expected,
			"actual":       actual,
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			// マイナス調整が残高不足で適用できない場合はクレームを解放し、次回実行で再試行する
			s.logger.Error(ctx, "Negative adjustment blocked by insufficient funds", err, map[string]interface{}{
				"account_id": accountID,
				"drift":      drift,
			})
			if releaseErr := s.claimRepo.Release(ctx, accountID, windowStart); releaseErr != nil {
				s.logger.Error(ctx, "Failed to release reconciliation claim", releaseErr, map[string]interface{}{
					"account_id": accountID,
				})
			}
		}
		return false, err
	}

	if err := s.claimRepo.RecordResult(ctx, accountID, windowStart, expected, actual, adjustResp.EntryID); err != nil {
		span.RecordError(err)
		return true, err
	}

	s.logger.Info(ctx, "Reconciliation adjustment applied", map[string]interface{}{
		"account_id": accountID,
		"drift":      drift,
		"entry_id":   adjustResp.EntryID,
	})
	return true, nil
}
