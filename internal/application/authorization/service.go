package authorization

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgerapp "coin-server/internal/application/ledger"
	"coin-server/internal/domain/ledger"
	"coin-server/internal/domain/service"
	"coin-server/internal/domain/wallet"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
)

// LedgerService 支払い認可が必要とする台帳操作
type LedgerService interface {
	Debit(ctx context.Context, req *ledgerapp.DebitRequest) (*ledgerapp.DebitResponse, error)
	Transfer(ctx context.Context, req *ledgerapp.TransferRequest) (*ledgerapp.TransferResponse, error)
}

// AuthorizationApplicationService 支払い認可アプリケーションサービス
// 消費系操作の入口。残高不足はそのまま呼び出し元へ返し、リトライはしない
type AuthorizationApplicationService struct {
	fundsSvc       *service.FundsService
	ledgerSvc      LedgerService
	logger         *otelinfra.Logger
	metrics        *otelinfra.Metrics
	tracer         trace.Tracer
	platformFeePct int
}

// NewAuthorizationApplicationService 新しいAuthorizationApplicationServiceを作成
func NewAuthorizationApplicationService(
	fundsSvc *service.FundsService,
	ledgerSvc LedgerService,
	platformFeePct int,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *AuthorizationApplicationService {
	return &AuthorizationApplicationService{
		fundsSvc:       fundsSvc,
		ledgerSvc:      ledgerSvc,
		logger:         logger,
		metrics:        metrics,
		tracer:         otel.Tracer("authorization-service"),
		platformFeePct: platformFeePct,
	}
}

// AuthorizeInstant 即時支払いを認可して同一トランザクションでデビットする
func (s *AuthorizationApplicationService) AuthorizeInstant(ctx context.Context, req *AuthorizeInstantRequest) (*AuthorizeInstantResponse, error) {
	ctx, span := s.tracer.Start(ctx, "AuthorizationApplicationService.AuthorizeInstant")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int64("amount", req.Amount),
		attribute.String("kind", req.Kind),
	)

	if _, err := ledger.NewEntryKind(req.Kind); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	resp, err := s.ledgerSvc.Debit(ctx, &ledgerapp.DebitRequest{
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		Kind:           req.Kind,
		ReferenceID:    req.ReferenceID,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	return &AuthorizeInstantResponse{
		EntryID:      resp.EntryID,
		BalanceAfter: resp.BalanceAfter,
		Replayed:     resp.Replayed,
	}, nil
}

// AuthorizeHold 残高を確認してホールドを発行する
// デビットは行わない。確定はSettleHoldで行う
func (s *AuthorizationApplicationService) AuthorizeHold(ctx context.Context, req *AuthorizeHoldRequest) (*Hold, error) {
	ctx, span := s.tracer.Start(ctx, "AuthorizationApplicationService.AuthorizeHold")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int64("amount", req.Amount),
		attribute.String("kind", req.Kind),
	)

	if _, err := ledger.NewEntryKind(req.Kind); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	ok, err := s.fundsSvc.HasSufficientFunds(ctx, req.AccountID, req.Amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if !ok {
		s.metrics.RecordInsufficientFunds(ctx, req.Kind)
		return nil, wallet.ErrInsufficientFunds
	}

	hold := &Hold{
		HoldID:       generateHoldID(),
		AccountID:    req.AccountID,
		Amount:       req.Amount,
		Kind:         req.Kind,
		ReferenceID:  req.ReferenceID,
		AuthorizedAt: time.Now(),
	}

	s.logger.Info(ctx, "Spend hold authorized", map[string]interface{}{
		"hold_id":    hold.HoldID,
		"account_id": req.AccountID,
		"amount":     req.Amount,
		"kind":       req.Kind,
	})
	return hold, nil
}

// SettleHold ホールドを確定してデビットする
// ホールド額は事前確認の見積もりであり、実際の累積デビットがそれを上回ることは正当。
// ホールドIDを冪等性キーに使うため、同じホールドの確定は1回に収まる
func (s *AuthorizationApplicationService) SettleHold(ctx context.Context, req *SettleHoldRequest) (*SettleHoldResponse, error) {
	ctx, span := s.tracer.Start(ctx, "AuthorizationApplicationService.SettleHold")
	defer span.End()

	if req.Hold == nil {
		return nil, wallet.ErrInvalidAmount
	}

	span.SetAttributes(
		attribute.String("hold_id", req.Hold.HoldID),
		attribute.String("account_id", req.Hold.AccountID),
		attribute.Int64("amount", req.Amount),
	)

	amount := req.Amount
	if amount == 0 {
		amount = req.Hold.Amount
	}
	if amount < 0 {
		return nil, wallet.ErrInvalidAmount
	}

	resp, err := s.ledgerSvc.Debit(ctx, &ledgerapp.DebitRequest{
		AccountID:      req.Hold.AccountID,
		Amount:         amount,
		Kind:           req.Hold.Kind,
		ReferenceID:    req.Hold.ReferenceID,
		IdempotencyKey: req.Hold.HoldID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	return &SettleHoldResponse{
		EntryID:      resp.EntryID,
		BalanceAfter: resp.BalanceAfter,
		Replayed:     resp.Replayed,
	}, nil
}

// TransferGift 送信者からクリエイターへギフトを送金する
// 送信者は総額でデビットされ、クリエイターにはプラットフォーム手数料控除後の純額が入金される
func (s *AuthorizationApplicationService) TransferGift(ctx context.Context, req *TransferGiftRequest) (*TransferGiftResponse, error) {
	ctx, span := s.tracer.Start(ctx, "AuthorizationApplicationService.TransferGift")
	defer span.End()

	span.SetAttributes(
		attribute.String("sender_id", req.SenderID),
		attribute.String("creator_id", req.CreatorID),
		attribute.Int64("amount", req.Amount),
	)

	resp, err := s.ledgerSvc.Transfer(ctx, &ledgerapp.TransferRequest{
		FromAccountID:  req.SenderID,
		ToAccountID:    req.CreatorID,
		Amount:         req.Amount,
		FeePct:         s.platformFeePct,
		DebitKind:      ledger.EntryKindGiftSend.String(),
		CreditKind:     ledger.EntryKindGiftReceive.String(),
		ReferenceID:    req.ReferenceID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	return &TransferGiftResponse{
		DebitEntryID:  resp.DebitEntryID,
		CreditEntryID: resp.CreditEntryID,
		NetAmount:     resp.NetAmount,
		Replayed:      resp.Replayed,
	}, nil
}

func generateHoldID() string {
	return fmt.Sprintf("hold_%d", time.Now().UnixNano())
}
