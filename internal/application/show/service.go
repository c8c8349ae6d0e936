package show

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	authz "coin-server/internal/application/authorization"
	"coin-server/internal/domain/ledger"
	"coin-server/internal/domain/show"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
)

// Authorizer ショー運営が必要とする支払い認可操作
type Authorizer interface {
	AuthorizeInstant(ctx context.Context, req *authz.AuthorizeInstantRequest) (*authz.AuthorizeInstantResponse, error)
	TransferGift(ctx context.Context, req *authz.TransferGiftRequest) (*authz.TransferGiftResponse, error)
}

// ShowApplicationService 有料ショーセッションアプリケーションサービス
// チケット販売・入室制御・ギフト送信・終了時の集計を担当する
type ShowApplicationService struct {
	showRepo   show.ShowRepository
	ticketRepo show.TicketRepository
	entryRepo  ledger.EntryRepository
	authorizer Authorizer
	logger     *otelinfra.Logger
	metrics    *otelinfra.Metrics
	tracer     trace.Tracer
}

// NewShowApplicationService 新しいShowApplicationServiceを作成
func NewShowApplicationService(
	showRepo show.ShowRepository,
	ticketRepo show.TicketRepository,
	entryRepo ledger.EntryRepository,
	authorizer Authorizer,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *ShowApplicationService {
	return &ShowApplicationService{
		showRepo:   showRepo,
		ticketRepo: ticketRepo,
		entryRepo:  entryRepo,
		authorizer: authorizer,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("show-service"),
	}
}

// CreateShow ショーを作成
func (s *ShowApplicationService) CreateShow(ctx context.Context, req *CreateShowRequest) (*CreateShowResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ShowApplicationService.CreateShow")
	defer span.End()

	span.SetAttributes(
		attribute.String("show_id", req.ShowID),
		attribute.String("creator_id", req.CreatorID),
		attribute.Int64("ticket_price", req.TicketPrice),
	)

	sh, err := show.NewShow(req.ShowID, req.CreatorID, req.RoomName, req.TicketPrice)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if err := s.showRepo.Create(ctx, sh); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to create show: %w", err)
	}

	s.logger.Info(ctx, "Show created", map[string]interface{}{
		"show_id":      req.ShowID,
		"creator_id":   req.CreatorID,
		"ticket_price": req.TicketPrice,
	})

	return &CreateShowResponse{
		ShowID: sh.ShowID(),
		Status: sh.Status().String(),
	}, nil
}

// PurchaseTicket チケットを購入
// チケット作成→認可デビット→アクセス許可の順に進める。途中で失敗したチケットは
// 未許可のまま残り、同じ保有者の再購入で課金から再開される
func (s *ShowApplicationService) PurchaseTicket(ctx context.Context, req *PurchaseTicketRequest) (*PurchaseTicketResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ShowApplicationService.PurchaseTicket")
	defer span.End()

	span.SetAttributes(
		attribute.String("show_id", req.ShowID),
		attribute.String("holder_id", req.HolderID),
	)

	sh, err := s.showRepo.FindByShowID(ctx, req.ShowID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if sh.IsEnded() {
		return nil, show.ErrInvalidStateTransition
	}

	ticket, err := show.NewTicket(generateTicketID(), req.ShowID, req.HolderID, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	replayed := false
	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		if !errors.Is(err, show.ErrDuplicateTicket) {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to create ticket: %w", err)
		}
		existing, findErr := s.ticketRepo.FindByShowAndHolder(ctx, req.ShowID, req.HolderID)
		if findErr != nil {
			span.RecordError(findErr)
			span.SetStatus(otelcodes.Error, findErr.Error())
			return nil, fmt.Errorf("failed to find existing ticket: %w", findErr)
		}
		if existing.AccessGranted() {
			return &PurchaseTicketResponse{
				TicketID: existing.TicketID(),
				ShowID:   req.ShowID,
				HolderID: req.HolderID,
				Replayed: true,
			}, nil
		}
		// 課金前に中断した購入の再開
		ticket = existing
		replayed = true
	}

	if sh.TicketPrice() > 0 {
		_, err = s.authorizer.AuthorizeInstant(ctx, &authz.AuthorizeInstantRequest{
			AccountID:      req.HolderID,
			Amount:         sh.TicketPrice(),
			Kind:           ledger.EntryKindTicketPurchase.String(),
			ReferenceID:    ticket.TicketID(),
			IdempotencyKey: fmt.Sprintf("tkt-%s-%s", req.ShowID, req.HolderID),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
	}

	if err := s.ticketRepo.GrantAccess(ctx, ticket.TicketID()); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to grant ticket access: %w", err)
	}

	s.logger.Info(ctx, "Ticket purchased", map[string]interface{}{
		"ticket_id": ticket.TicketID(),
		"show_id":   req.ShowID,
		"holder_id": req.HolderID,
		"price":     sh.TicketPrice(),
	})

	return &PurchaseTicketResponse{
		TicketID: ticket.TicketID(),
		ShowID:   req.ShowID,
		HolderID: req.HolderID,
		Replayed: replayed,
	}, nil
}

// StartShow ショーを開始（scheduled→live）
// 条件付き遷移のため、同時・重複の開始シグナルでも遷移は1回に収まる
func (s *ShowApplicationService) StartShow(ctx context.Context, showID string) (*StartShowResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ShowApplicationService.StartShow")
	defer span.End()

	span.SetAttributes(
		attribute.String("show_id", showID),
	)

	now := time.Now()
	claimed, err := s.showRepo.TransitionToLive(ctx, showID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if claimed {
		s.logger.Info(ctx, "Show started", map[string]interface{}{
			"show_id": showID,
		})
		return &StartShowResponse{
			ShowID:    showID,
			Status:    show.ShowStatusLive.String(),
			StartedAt: now,
		}, nil
	}

	// 遷移しなかった: 既にliveなら冪等、endedなら遷移違反
	sh, err := s.showRepo.FindByShowID(ctx, showID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if !sh.IsLive() {
		return nil, show.ErrInvalidStateTransition
	}
	return &StartShowResponse{
		ShowID:    showID,
		Status:    sh.Status().String(),
		StartedAt: *sh.StartedAt(),
	}, nil
}

// JoinShow 入室を検証してチケットを使用済みにする
func (s *ShowApplicationService) JoinShow(ctx context.Context, showID, holderID string) (*JoinShowResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ShowApplicationService.JoinShow")
	defer span.End()

	span.SetAttributes(
		attribute.String("show_id", showID),
		attribute.String("holder_id", holderID),
	)

	sh, err := s.showRepo.FindByShowID(ctx, showID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if !sh.IsLive() {
		return nil, show.ErrAccessDenied
	}

	ticket, err := s.ticketRepo.FindByShowAndHolder(ctx, showID, holderID)
	if err != nil {
		if errors.Is(err, show.ErrTicketNotFound) {
			return nil, show.ErrAccessDenied
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if !ticket.AccessGranted() {
		return nil, show.ErrAccessDenied
	}

	if err := s.ticketRepo.MarkUsed(ctx, ticket.TicketID(), time.Now()); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to mark ticket used: %w", err)
	}

	return &JoinShowResponse{
		ShowID:   showID,
		TicketID: ticket.TicketID(),
		RoomName: sh.RoomName(),
	}, nil
}

// SendGift 視聴者からクリエイターへギフトを送信
// プラットフォーム手数料の控除は認可サービス側で行われる
func (s *ShowApplicationService) SendGift(ctx context.Context, req *SendGiftRequest) (*SendGiftResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ShowApplicationService.SendGift")
	defer span.End()

	span.SetAttributes(
		attribute.String("show_id", req.ShowID),
		attribute.String("sender_id", req.SenderID),
		attribute.Int64("amount", req.Amount),
	)

	sh, err := s.showRepo.FindByShowID(ctx, req.ShowID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if !sh.IsLive() {
		return nil, show.ErrInvalidStateTransition
	}

	resp, err := s.authorizer.TransferGift(ctx, &authz.TransferGiftRequest{
		SenderID:       req.SenderID,
		CreatorID:      sh.CreatorID(),
		Amount:         req.Amount,
		ReferenceID:    req.ShowID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	return &SendGiftResponse{
		ShowID:    req.ShowID,
		NetAmount: resp.NetAmount,
		Replayed:  resp.Replayed,
	}, nil
}

// Heartbeat 配信中のショーの生存を記録
func (s *ShowApplicationService) Heartbeat(ctx context.Context, showID string) error {
	ctx, span := s.tracer.Start(ctx, "ShowApplicationService.Heartbeat")
	defer span.End()

	span.SetAttributes(
		attribute.String("show_id", showID),
	)

	if err := s.showRepo.UpdateHeartbeat(ctx, showID, time.Now()); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}
	return nil
}

// EndShow ショーを終了（live→ended）して入室者数とギフト総額を集計する
// 条件付き遷移のため、重複する終了シグナルでも集計と遷移は1回に収まる
func (s *ShowApplicationService) EndShow(ctx context.Context, showID string, at time.Time) (*EndShowResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ShowApplicationService.EndShow")
	defer span.End()

	span.SetAttributes(
		attribute.String("show_id", showID),
	)

	sh, err := s.showRepo.FindByShowID(ctx, showID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if sh.IsEnded() {
		// 終了済み: 保存済みの集計値を返す（終了シグナルの再送に対して冪等）
		return &EndShowResponse{
			ShowID:        showID,
			Status:        sh.Status().String(),
			AttendeeCount: sh.AttendeeCount(),
			TotalGifts:    sh.TotalGifts(),
		}, nil
	}
	if !sh.IsLive() {
		return nil, show.ErrInvalidStateTransition
	}

	attendees, err := s.ticketRepo.CountAttendees(ctx, showID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to count attendees: %w", err)
	}

	totalGifts, err := s.entryRepo.SumGiftsByReference(ctx, showID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to sum gifts: %w", err)
	}

	claimed, err := s.showRepo.TransitionToEnded(ctx, showID, at, attendees, totalGifts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if !claimed {
		// 並行する終了シグナルに先を越された: 確定済みの集計値を読み直す
		sh, err := s.showRepo.FindByShowID(ctx, showID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		return &EndShowResponse{
			ShowID:        showID,
			Status:        sh.Status().String(),
			AttendeeCount: sh.AttendeeCount(),
			TotalGifts:    sh.TotalGifts(),
		}, nil
	}

	s.logger.Info(ctx, "Show ended", map[string]interface{}{
		"show_id":        showID,
		"attendee_count": attendees,
		"total_gifts":    totalGifts,
	})

	return &EndShowResponse{
		ShowID:        showID,
		Status:        show.ShowStatusEnded.String(),
		AttendeeCount: attendees,
		TotalGifts:    totalGifts,
	}, nil
}

// ReapStale ハートビートが途絶したliveショーを最終ハートビート時刻で終了する
func (s *ShowApplicationService) ReapStale(ctx context.Context, heartbeatTimeout time.Duration) (int, error) {
	ctx, span := s.tracer.Start(ctx, "ShowApplicationService.ReapStale")
	defer span.End()

	cutoff := time.Now().Add(-heartbeatTimeout)
	stale, err := s.showRepo.FindStaleLive(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("failed to find stale shows: %w", err)
	}

	reaped := 0
	for _, sh := range stale {
		endAt := time.Now()
		if sh.LastHeartbeatAt() != nil {
			endAt = *sh.LastHeartbeatAt()
		}
		if _, err := s.EndShow(ctx, sh.ShowID(), endAt); err != nil {
			s.logger.Error(ctx, "Failed to reap stale show", err, map[string]interface{}{
				"show_id": sh.ShowID(),
			})
			continue
		}
		s.logger.Warn(ctx, "Stale show reaped", map[string]interface{}{
			"show_id":           sh.ShowID(),
			"last_heartbeat_at": sh.LastHeartbeatAt(),
		})
		reaped++
	}

	span.SetAttributes(
		attribute.Int("stale", len(stale)),
		attribute.Int("reaped", reaped),
	)
	return reaped, nil
}

func generateTicketID() string {
	return fmt.Sprintf("tkt_%d", time.Now().UnixNano())
}
