package billing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"coin-server/internal/domain/billing"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
)

// Meter 課金メーター
// 一定間隔でアクティブセッションを走査してティック課金を行い、
// ハートビートが途絶したセッションをフェイルクローズで終了する
type Meter struct {
	service          *BillingApplicationService
	sessionRepo      billing.SessionRepository
	logger           *otelinfra.Logger
	tracer           trace.Tracer
	interval         time.Duration
	tickTimeout      time.Duration
	heartbeatTimeout time.Duration
	stop             chan struct{}
	done             chan struct{}
}

// NewMeter 新しいMeterを作成
func NewMeter(
	service *BillingApplicationService,
	sessionRepo billing.SessionRepository,
	interval time.Duration,
	tickTimeout time.Duration,
	heartbeatTimeout time.Duration,
	logger *otelinfra.Logger,
) *Meter {
	return &Meter{
		service:          service,
		sessionRepo:      sessionRepo,
		logger:           logger,
		tracer:           otel.Tracer("billing-meter"),
		interval:         interval,
		tickTimeout:      tickTimeout,
		heartbeatTimeout: heartbeatTimeout,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// Start メーターループを開始
func (m *Meter) Start() {
	go m.run()
}

// Stop メーターループを停止して完了を待つ
func (m *Meter) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Meter) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

// sweep アクティブセッションを1巡処理する
// 各セッションは独立したゴルーチンで課金されるため、1セッションの遅延が他のティックを塞がない
func (m *Meter) sweep(now time.Time) {
	ctx, span := m.tracer.Start(context.Background(), "Meter.sweep")
	defer span.End()

	sessions, err := m.sessionRepo.FindActive(ctx)
	if err != nil {
		span.RecordError(err)
		m.logger.Error(ctx, "Failed to list active sessions", err, nil)
		return
	}

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(s *billing.Session) {
			defer wg.Done()
			m.processSession(ctx, s, now)
		}(session)
	}
	wg.Wait()
}

func (m *Meter) processSession(ctx context.Context, session *billing.Session, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, m.tickTimeout)
	defer cancel()

	sessionID := session.SessionID()

	// ハートビート途絶はフェイルクローズ: 最後に生存確認できた時点で終了・精算する
	if now.Sub(session.LastSeenAt()) > m.heartbeatTimeout {
		m.logger.Warn(ctx, "Session heartbeat expired, finalizing", map[string]interface{}{
			"session_id":   sessionID,
			"last_seen_at": session.LastSeenAt(),
		})
		if _, err := m.service.EndSession(ctx, &EndSessionRequest{
			SessionID: sessionID,
			EndedAt:   session.LastSeenAt(),
		}); err != nil {
			m.logger.Error(ctx, "Failed to finalize expired session", err, map[string]interface{}{
				"session_id": sessionID,
			})
		}
		return
	}

	resp, err := m.service.Tick(ctx, sessionID, now)
	if err != nil {
		m.logger.Error(ctx, "Billing tick failed", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return
	}

	if resp.Terminated {
		if _, err := m.service.EndSession(ctx, &EndSessionRequest{
			SessionID: sessionID,
			EndedAt:   now,
		}); err != nil {
			m.logger.Error(ctx, "Failed to finalize terminated session", err, map[string]interface{}{
				"session_id": sessionID,
			})
		}
	}
}
