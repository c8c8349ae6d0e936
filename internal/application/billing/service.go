package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	authzapp "coin-server/internal/application/authorization"
	ledgerapp "coin-server/internal/application/ledger"
	"coin-server/internal/domain/billing"
	"coin-server/internal/domain/ledger"
	"coin-server/internal/domain/wallet"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
)

// LedgerService 課金メーターが必要とする台帳操作
type LedgerService interface {
	Debit(ctx context.Context, req *ledgerapp.DebitRequest) (*ledgerapp.DebitResponse, error)
}

// Authorizer セッション課金が必要とする支払い認可操作
type Authorizer interface {
	AuthorizeHold(ctx context.Context, req *authzapp.AuthorizeHoldRequest) (*authzapp.Hold, error)
	SettleHold(ctx context.Context, req *authzapp.SettleHoldRequest) (*authzapp.SettleHoldResponse, error)
}

// BillingApplicationService 分単位課金アプリケーションサービス
// ティックの冪等性キーは経過時間から導出されるため、メーターの再起動や重複実行で二重課金は発生しない
type BillingApplicationService struct {
	sessionRepo  billing.SessionRepository
	ledgerSvc    LedgerService
	authorizer   Authorizer
	txManager    ledger.TransactionManager
	logger       *otelinfra.Logger
	metrics      *otelinfra.Metrics
	tracer       trace.Tracer
	tickInterval time.Duration
}

// NewBillingApplicationService 新しいBillingApplicationServiceを作成
func NewBillingApplicationService(
	sessionRepo billing.SessionRepository,
	ledgerSvc LedgerService,
	authorizer Authorizer,
	txManager ledger.TransactionManager,
	tickInterval time.Duration,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *BillingApplicationService {
	return &BillingApplicationService{
		sessionRepo:  sessionRepo,
		ledgerSvc:    ledgerSvc,
		authorizer:   authorizer,
		txManager:    txManager,
		logger:       logger,
		metrics:      metrics,
		tracer:       otel.Tracer("billing-service"),
		tickInterval: tickInterval,
	}
}

// StartSession 課金セッションを開始
// 最初の1分も支払えない支払者は残高ホールドで弾く。同じセッションIDでの再実行は既存セッションを返す
func (s *BillingApplicationService) StartSession(ctx context.Context, req *StartSessionRequest) (*StartSessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "BillingApplicationService.StartSession")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", req.SessionID),
		attribute.String("kind", req.Kind),
		attribute.String("payer_id", req.PayerID),
		attribute.String("payee_id", req.PayeeID),
		attribute.Int64("rate_per_minute", req.RatePerMinute),
	)

	kind, err := billing.NewSessionKind(req.Kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	session, err := billing.NewSession(req.SessionID, kind, req.PayerID, req.PayeeID, req.RatePerMinute, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	// 最初の1分ぶんの残高ホールド。デビットはせず、支払い能力だけを事前確認する
	if _, err := s.authorizer.AuthorizeHold(ctx, &authzapp.AuthorizeHoldRequest{
		AccountID:   req.PayerID,
		Amount:      req.RatePerMinute,
		Kind:        session.DebitKind(),
		ReferenceID: req.SessionID,
	}); err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			s.logger.Warn(ctx, "Session start rejected: insufficient funds", map[string]interface{}{
				"session_id":      req.SessionID,
				"payer_id":        req.PayerID,
				"rate_per_minute": req.RatePerMinute,
			})
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if err == billing.ErrDuplicateSession {
			existing, findErr := s.sessionRepo.FindBySessionID(ctx, req.SessionID)
			if findErr != nil {
				span.RecordError(findErr)
				span.SetStatus(otelcodes.Error, findErr.Error())
				return nil, findErr
			}
			return &StartSessionResponse{
				SessionID: existing.SessionID(),
				Status:    existing.Status().String(),
				StartedAt: existing.StartedAt(),
			}, nil
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info(ctx, "Billing session started", map[string]interface{}{
		"session_id":      req.SessionID,
		"kind":            req.Kind,
		"payer_id":        req.PayerID,
		"rate_per_minute": req.RatePerMinute,
	})

	return &StartSessionResponse{
		SessionID: session.SessionID(),
		Status:    session.Status().String(),
		StartedAt: session.StartedAt(),
	}, nil
}

// Tick 現在時刻までに到来したティックを課金する
// ティック番号は開始時刻からの経過で決まり、同じ番号のティックは何度実行されても1回しか課金されない。
// デビットと課金済み分数の更新は同一トランザクションでコミットされるため、
// 片方だけが残って次のティックで再請求されることはない
func (s *BillingApplicationService) Tick(ctx context.Context, sessionID string, now time.Time) (*TickResponse, error) {
	ctx, span := s.tracer.Start(ctx, "BillingApplicationService.Tick")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", sessionID),
	)

	session, err := s.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if !session.IsActive() {
		return &TickResponse{
			SessionID:     sessionID,
			MinutesBilled: session.MinutesBilled(),
		}, nil
	}

	seq := int64(now.Sub(session.StartedAt()) / s.tickInterval)
	span.SetAttributes(attribute.Int64("seq", seq))

	if seq <= session.MinutesBilled() {
		// まだ新しいティックが到来していない
		return &TickResponse{
			SessionID:     sessionID,
			Seq:           seq,
			MinutesBilled: session.MinutesBilled(),
		}, nil
	}

	// 未課金ティックをまとめて1回のデビットで請求する
	delta := seq - session.MinutesBilled()
	idempotencyKey := fmt.Sprintf("%s-%d", sessionID, seq)

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.ledgerSvc.Debit(ctx, &ledgerapp.DebitRequest{
			AccountID:      session.PayerID(),
			Amount:         session.RatePerMinute() * delta,
			Kind:           session.DebitKind(),
			ReferenceID:    sessionID,
			IdempotencyKey: idempotencyKey,
		}); err != nil {
			return err
		}
		return s.sessionRepo.AdvanceMinutesBilled(ctx, sessionID, seq)
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			// 残高不足はフェイルクローズ: 呼び出し側にセッション終了を指示する
			s.metrics.RecordBillingTick(ctx, session.Kind().String(), "insufficient_funds")
			s.logger.Warn(ctx, "Insufficient funds on billing tick", map[string]interface{}{
				"session_id": sessionID,
				"payer_id":   session.PayerID(),
				"seq":        seq,
			})
			return &TickResponse{
				SessionID:     sessionID,
				Seq:           seq,
				Terminated:    true,
				MinutesBilled: session.MinutesBilled(),
			}, nil
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.metrics.RecordBillingTick(ctx, session.Kind().String(), "error")
		return nil, fmt.Errorf("failed to bill tick: %w", err)
	}

	s.metrics.RecordBillingTick(ctx, session.Kind().String(), "charged")

	return &TickResponse{
		SessionID:     sessionID,
		Seq:           seq,
		Charged:       true,
		MinutesBilled: seq,
	}, nil
}

// Heartbeat セッションの生存を記録
func (s *BillingApplicationService) Heartbeat(ctx context.Context, sessionID string, at time.Time) error {
	ctx, span := s.tracer.Start(ctx, "BillingApplicationService.Heartbeat")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", sessionID),
	)

	return s.sessionRepo.Touch(ctx, sessionID, at)
}

// EndSession セッションを終了して精算する
// 条件付き状態遷移で精算の単独書き込み権を取り、その下で課金済み分数を読み直してから
// 残り分数を請求する。並行ティックが同じ分を先に課金していても二重請求にはならない
func (s *BillingApplicationService) EndSession(ctx context.Context, req *EndSessionRequest) (*EndSessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "BillingApplicationService.EndSession")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", req.SessionID),
	)

	session, err := s.sessionRepo.FindBySessionID(ctx, req.SessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if !session.IsActive() {
		// 既に精算済み: 同じ結果を返す（終了リクエストの再送に対して冪等）
		return &EndSessionResponse{
			SessionID:     req.SessionID,
			Status:        session.Status().String(),
			MinutesBilled: session.MinutesBilled(),
			TotalCharged:  session.MinutesBilled() * session.RatePerMinute(),
		}, nil
	}

	var resp *EndSessionResponse
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		claimed, err := s.sessionRepo.MarkFinalized(ctx, req.SessionID, req.EndedAt)
		if err != nil {
			return fmt.Errorf("failed to finalize session: %w", err)
		}
		if !claimed {
			// 並行する終了処理に先を越された: 確定済みの結果を返す
			settled, err := s.sessionRepo.FindBySessionID(ctx, req.SessionID)
			if err != nil {
				return err
			}
			resp = &EndSessionResponse{
				SessionID:     req.SessionID,
				Status:        settled.Status().String(),
				MinutesBilled: settled.MinutesBilled(),
				TotalCharged:  settled.MinutesBilled() * settled.RatePerMinute(),
			}
			return nil
		}

		// 遷移で取った行ロックの下で課金済み分数を読み直す。
		// ここより前にコミットされた並行ティックの分数を最終精算から除外する
		fresh, err := s.sessionRepo.FindBySessionID(ctx, req.SessionID)
		if err != nil {
			return err
		}

		finalMinutes := fresh.FinalMinutes(req.EndedAt)
		remaining := finalMinutes - fresh.MinutesBilled()

		if remaining > 0 {
			// 最終精算のデビット。キー固定なので終了リクエストが何度再送されても1回だけ課金される。
			// ホールド額（1分ぶんの見積もり）を上回る実額の確定もSettleHoldが引き受ける
			_, err := s.authorizer.SettleHold(ctx, &authzapp.SettleHoldRequest{
				Hold: &authzapp.Hold{
					HoldID:      fmt.Sprintf("%s-final", req.SessionID),
					AccountID:   fresh.PayerID(),
					Amount:      fresh.RatePerMinute(),
					Kind:        fresh.DebitKind(),
					ReferenceID: req.SessionID,
				},
				Amount: fresh.RatePerMinute() * remaining,
			})
			if err != nil {
				if errors.Is(err, wallet.ErrInsufficientFunds) {
					// 最終精算で残高不足でもセッションは終了させる（回収不能分はログに残す）
					s.logger.Error(ctx, "Insufficient funds on final settlement", err, map[string]interface{}{
						"session_id": req.SessionID,
						"payer_id":   fresh.PayerID(),
						"remaining":  remaining,
					})
					s.metrics.RecordInsufficientFunds(ctx, fresh.DebitKind())
					finalMinutes = fresh.MinutesBilled()
				} else {
					return fmt.Errorf("failed to debit final settlement: %w", err)
				}
			}
		}

		if finalMinutes > fresh.MinutesBilled() {
			if err := s.sessionRepo.AdvanceMinutesBilled(ctx, req.SessionID, finalMinutes); err != nil {
				return fmt.Errorf("failed to advance minutes billed: %w", err)
			}
		}

		resp = &EndSessionResponse{
			SessionID:     req.SessionID,
			Status:        billing.SessionStatusFinalized.String(),
			MinutesBilled: finalMinutes,
			TotalCharged:  finalMinutes * fresh.RatePerMinute(),
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if resp.Status == billing.SessionStatusFinalized.String() {
		s.logger.Info(ctx, "Billing session finalized", map[string]interface{}{
			"session_id":     req.SessionID,
			"minutes_billed": resp.MinutesBilled,
			"total_charged":  resp.TotalCharged,
		})
	}

	return resp, nil
}
