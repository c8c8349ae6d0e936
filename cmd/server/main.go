package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	authzapp "coin-server/internal/application/authorization"
	billingapp "coin-server/internal/application/billing"
	ledgerapp "coin-server/internal/application/ledger"
	reconapp "coin-server/internal/application/reconciliation"
	settlementapp "coin-server/internal/application/settlement"
	showapp "coin-server/internal/application/show"
	"coin-server/internal/domain/service"
	"coin-server/internal/infrastructure/config"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
	"coin-server/internal/infrastructure/persistence/mysql"
	"coin-server/internal/infrastructure/provider"
	"coin-server/internal/jobs"
	"coin-server/internal/presentation/rest"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// OpenTelemetryの初期化
	tracerShutdown, err := otelinfra.InitTracer(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	meterShutdown, err := otelinfra.InitMeter(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize meter: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown meter: %v", err)
		}
	}()

	// ロガーとメトリクスの初期化
	tracer := otelinfra.Tracer("coin-server")
	logger := otelinfra.NewLogger(tracer)
	metrics, err := otelinfra.NewMetrics("coin-server")
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	// データベース接続の初期化
	db, err := mysql.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// リポジトリの初期化
	walletRepo := mysql.NewWalletRepository(db)
	entryRepo := mysql.NewLedgerEntryRepository(db)
	sessionRepo := mysql.NewBillableSessionRepository(db)
	eventRepo := mysql.NewSettlementEventRepository(db)
	showRepo := mysql.NewShowRepository(db)
	ticketRepo := mysql.NewTicketRepository(db)
	claimRepo := mysql.NewReconciliationClaimRepository(db)

	// トランザクションマネージャーの初期化
	txManager := mysql.NewTransactionManager(db)

	// ドメインサービスの初期化
	fundsService := service.NewFundsService(walletRepo)

	// 決済プロバイダ照会クライアントの初期化
	providerClient := provider.NewClient(
		cfg.Reconciliation.ProviderBaseURL,
		cfg.Reconciliation.ProviderAPIKey,
		cfg.Reconciliation.ProviderTimeout,
	)

	// アプリケーションサービスの初期化
	ledgerService := ledgerapp.NewLedgerApplicationService(
		walletRepo,
		entryRepo,
		txManager,
		logger,
		metrics,
	)

	authzService := authzapp.NewAuthorizationApplicationService(
		fundsService,
		ledgerService,
		int(cfg.Billing.PlatformFeePct),
		logger,
		metrics,
	)

	billingService := billingapp.NewBillingApplicationService(
		sessionRepo,
		ledgerService,
		authzService,
		txManager,
		cfg.Billing.TickInterval,
		logger,
		metrics,
	)

	settlementService := settlementapp.NewSettlementApplicationService(
		eventRepo,
		ledgerService,
		cfg.Settlement.CoinPriceCents,
		cfg.Settlement.Currency,
		logger,
		metrics,
	)

	reconService := reconapp.NewReconciliationApplicationService(
		claimRepo,
		entryRepo,
		eventRepo,
		providerClient,
		ledgerService,
		cfg.Settlement.CoinPriceCents,
		cfg.Reconciliation.ToleranceCoins,
		logger,
		metrics,
	)

	showService := showapp.NewShowApplicationService(
		showRepo,
		ticketRepo,
		entryRepo,
		authzService,
		logger,
		metrics,
	)

	// 決済イベントワーカーの起動（起動時に未適用イベントを再投入）
	settlementWorker := settlementapp.NewWorker(
		settlementService,
		eventRepo,
		cfg.Settlement.Workers,
		cfg.Settlement.QueueSize,
		cfg.Settlement.MaxAttempts,
		logger,
	)
	settlementWorker.Start()
	if err := settlementWorker.Recover(context.Background()); err != nil {
		log.Printf("Failed to recover pending settlement events: %v", err)
	}

	// 課金メーターの起動
	billingMeter := billingapp.NewMeter(
		billingService,
		sessionRepo,
		cfg.Billing.TickInterval,
		cfg.Billing.TickTimeout,
		cfg.Billing.HeartbeatTimeout,
		logger,
	)
	billingMeter.Start()

	// 定期ジョブ（突合・放置ショー回収・決済イベント再投入）の起動
	scheduler := jobs.NewScheduler(reconService, showService, settlementWorker, cfg, logger)
	if err := scheduler.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// REST APIルーターの初期化
	router, err := rest.NewRouter(
		cfg,
		logger,
		metrics,
		ledgerService,
		billingService,
		settlementService,
		settlementWorker,
		showService,
	)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	// サーバーアドレスの設定
	address := fmt.Sprintf(":%d", cfg.Server.Port)

	// グレースフルシャットダウンの設定
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// REST APIサーバーを別ゴルーチンで起動
	go func() {
		log.Printf("REST API server starting on %s", address)
		if err := router.Start(address); err != nil {
			log.Printf("REST API server error: %v", err)
		}
	}()

	// シグナルを待機
	<-quit
	log.Println("Shutting down...")

	// 新規リクエストの受付を停止
	if err := router.Shutdown(); err != nil {
		log.Printf("Error shutting down REST API server: %v", err)
	}

	// バックグラウンド処理の停止
	scheduler.Stop()
	billingMeter.Stop()
	settlementWorker.Stop()

	log.Println("Server stopped")
}
