package settlement

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
	"coin-server/internal/domain/settlement"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
)

// LedgerService 決済処理が必要とする台帳操作
type LedgerService interface {
	Credit(ctx context.Context, req *ledgerapp.CreditRequest) (*ledgerapp.CreditResponse, error)
}

// SettlementApplicationService 決済イベント適用アプリケーションサービス
// 外部決済プロバイダからのイベントを検証し、コインに換算して台帳へ入金する
type SettlementApplicationService struct {
	eventRepo      settlement.EventRepository
	ledgerSvc      LedgerService
	logger         *otelinfra.Logger
	metrics        *otelinfra.Metrics
	tracer         trace.Tracer
	coinPriceCents int64
	currency       string
}

// NewSettlementApplicationService 新しいSettlementApplicationServiceを作成
func NewSettlementApplicationService(
	eventRepo settlement.EventRepository,
	ledgerSvc LedgerService,
	coinPriceCents int64,
	currency string,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *SettlementApplicationService {
	return &SettlementApplicationService{
		eventRepo:      eventRepo,
		ledgerSvc:      ledgerSvc,
		logger:         logger,
		metrics:        metrics,
		tracer:         otel.Tracer("settlement-service"),
		coinPriceCents: coinPriceCents,
		currency:       currency,
	}
}

// IngestEvent 決済イベントを検証して永続化
// 外部IDで重複排除するため、同じイベントの再送は受信済みとして扱う
func (s *SettlementApplicationService) IngestEvent(ctx context.Context, req *IngestEventRequest) (*IngestEventResponse, error) {
	ctx, span := s.tracer.Start(ctx, "SettlementApplicationService.IngestEvent")
	defer span.End()

	span.SetAttributes(
		attribute.String("external_id", req.ExternalID),
		attribute.String("provider", req.Provider),
		attribute.String("account_id", req.AccountID),
		attribute.Int64("amount_cents", req.AmountCents),
		attribute.String("currency", req.Currency),
	)

	if err := s.validateAmount(req.AmountCents, req.Currency); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Warn(ctx, "Rejected settlement event", map[string]interface{}{
			"external_id": req.ExternalID,
			"provider":    req.Provider,
			"reason":      err.Error(),
		})
		return nil, err
	}

	event, err := settlement.NewEvent(req.ExternalID, req.Provider, req.AccountID, req.AmountCents, req.Currency, req.RawPayload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		if errors.Is(err, settlement.ErrDuplicateEvent) {
			existing, findErr := s.eventRepo.FindByExternalID(ctx, req.ExternalID)
			if findErr != nil {
				span.RecordError(findErr)
				span.SetStatus(otelcodes.Error, findErr.Error())
				return nil, fmt.Errorf("failed to find duplicate event: %w", findErr)
			}
			s.logger.Info(ctx, "Duplicate settlement event ignored", map[string]interface{}{
				"external_id": req.ExternalID,
				"status":      existing.Status().String(),
			})
			return &IngestEventResponse{
				ExternalID: req.ExternalID,
				Status:     existing.Status().String(),
				Replayed:   true,
			}, nil
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to create settlement event: %w", err)
	}

	return &IngestEventResponse{
		ExternalID: req.ExternalID,
		Status:     event.Status().String(),
	}, nil
}

// ProcessEvent 永続化済みイベントを台帳へ適用
// 台帳側の冪等性キーに外部IDを使うため、同じイベントが何度処理されても入金は1回に収まる
func (s *SettlementApplicationService) ProcessEvent(ctx context.Context, externalID string) (*ProcessEventResponse, error) {
	ctx, span := s.tracer.Start(ctx, "SettlementApplicationService.ProcessEvent")
	defer span.End()

	span.SetAttributes(
		attribute.String("external_id", externalID),
	)

	event, err := s.eventRepo.FindByExternalID(ctx, externalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if event.IsApplied() {
		return &ProcessEventResponse{
			ExternalID:  externalID,
			Coins:       event.AmountCents() / s.coinPriceCents,
			ProcessedAt: *event.ProcessedAt(),
		}, nil
	}

	if err := s.validateAmount(event.AmountCents(), event.Currency()); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	event.RecordAttempt()
	if err := s.eventRepo.Update(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}

	coins := event.AmountCents() / s.coinPriceCents
	creditResp, err := s.ledgerSvc.Credit(ctx, &ledgerapp.CreditRequest{
		AccountID:      event.AccountID(),
		Amount:         coins,
		Kind:           "settlement_credit",
		ReferenceID:    externalID,
		IdempotencyKey: fmt.Sprintf("stl-%s", externalID),
		Metadata: map[string]interface{}{
			"provider":     event.Provider(),
			"amount_cents": event.AmountCents(),
			"currency":     event.Currency(),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.metrics.RecordSettlementEvent(ctx, event.Provider(), "error")
		return nil, fmt.Errorf("failed to credit settlement: %w", err)
	}

	event.MarkApplied()
	if err := s.eventRepo.Update(ctx, event); err != nil {
		// 入金自体は冪等なので、ここで失敗しても次回の処理で適用済みに収束する
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to mark event applied: %w", err)
	}

	s.metrics.RecordSettlementEvent(ctx, event.Provider(), "applied")
	s.logger.Info(ctx, "Settlement event applied", map[string]interface{}{
		"external_id":   externalID,
		"provider":      event.Provider(),
		"account_id":    event.AccountID(),
		"coins":         coins,
		"balance_after": creditResp.BalanceAfter,
	})

	return &ProcessEventResponse{
		ExternalID:   externalID,
		Coins:        coins,
		EntryID:      creditResp.EntryID,
		BalanceAfter: creditResp.BalanceAfter,
		ProcessedAt:  time.Now(),
	}, nil
}

// MarkPoisoned リトライ上限を超えたイベントをポイズン状態にする
func (s *SettlementApplicationService) MarkPoisoned(ctx context.Context, externalID string, reason string) error {
	ctx, span := s.tracer.Start(ctx, "SettlementApplicationService.MarkPoisoned")
	defer span.End()

	event, err := s.eventRepo.FindByExternalID(ctx, externalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	event.MarkFailed(reason)
	if err := s.eventRepo.Update(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to mark event failed: %w", err)
	}

	s.metrics.RecordPoisonEvent(ctx, event.Provider())
	s.logger.Error(ctx, "Settlement event poisoned", errors.New(reason), map[string]interface{}{
		"external_id": externalID,
		"provider":    event.Provider(),
		"attempts":    event.Attempts(),
	})
	return nil
}

// validateAmount 通貨とコイン単位の検証
func (s *SettlementApplicationService) validateAmount(amountCents int64, currency string) error {
	if currency != s.currency {
		return settlement.ErrUnsupportedCurrency
	}
	if amountCents%s.coinPriceCents != 0 {
		return settlement.ErrFractionalCoinAmount
	}
	return nil
}
