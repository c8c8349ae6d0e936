// Package jobs 定期実行ジョブ（cron）を管理する。
// scheduler.goは突合ジョブ・ショー刈り取りジョブ・決済イベント再投入ジョブのスケジュールを設定する。
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	reconapp "coin-server/internal/application/reconciliation"
	showapp "coin-server/internal/application/show"
	"coin-server/internal/infrastructure/config"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
)

// PendingRecoverer 未適用の決済イベントを処理キューへ再投入する
type PendingRecoverer interface {
	Recover(ctx context.Context) error
}

// Scheduler 定期実行ジョブの管理
type Scheduler struct {
	cron       *cron.Cron
	reconSvc   *reconapp.ReconciliationApplicationService
	showSvc    *showapp.ShowApplicationService
	settlement PendingRecoverer
	cfg        *config.Config
	logger     *otelinfra.Logger
}

// NewScheduler 新しいSchedulerを作成
func NewScheduler(
	reconSvc *reconapp.ReconciliationApplicationService,
	showSvc *showapp.ShowApplicationService,
	settlement PendingRecoverer,
	cfg *config.Config,
	logger *otelinfra.Logger,
) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		reconSvc:   reconSvc,
		showSvc:    showSvc,
		settlement: settlement,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start 全ジョブを登録してスケジューラを起動
func (s *Scheduler) Start(ctx context.Context) error {
	// 直前の固定ウィンドウに対する突合
	if _, err := s.cron.AddFunc(s.cfg.Reconciliation.CronSpec, func() {
		windowEnd := time.Now().Truncate(s.cfg.Reconciliation.WindowSize)
		windowStart := windowEnd.Add(-s.cfg.Reconciliation.WindowSize)
		if _, err := s.reconSvc.RunWindow(ctx, windowStart, windowEnd); err != nil {
			s.logger.Error(ctx, "Reconciliation job failed", err, map[string]interface{}{
				"window_start": windowStart,
			})
		}
	}); err != nil {
		return err
	}

	// ハートビート途絶ショーの刈り取り
	if _, err := s.cron.AddFunc(s.cfg.Show.ReaperCronSpec, func() {
		if _, err := s.showSvc.ReapStale(ctx, s.cfg.Show.HeartbeatTimeout); err != nil {
			s.logger.Error(ctx, "Show reaper job failed", err, nil)
		}
	}); err != nil {
		return err
	}

	// キュー満杯で積み損ねたpendingイベントの再投入。
	// 再起動時のリカバリだけに頼ると次回再起動まで滞留してしまう
	if _, err := s.cron.AddFunc(s.cfg.Settlement.RequeueCronSpec, func() {
		if err := s.settlement.Recover(ctx); err != nil {
			s.logger.Error(ctx, "Settlement requeue job failed", err, nil)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info(ctx, "Job scheduler started", map[string]interface{}{
		"recon_cron":   s.cfg.Reconciliation.CronSpec,
		"reaper_cron":  s.cfg.Show.ReaperCronSpec,
		"requeue_cron": s.cfg.Settlement.RequeueCronSpec,
	})
	return nil
}

// Stop スケジューラを停止して実行中のジョブの完了を待つ
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
