package rest

import (
	billingapp "coin-server/internal/application/billing"
	ledgerapp "coin-server/internal/application/ledger"
	settlementapp "coin-server/internal/application/settlement"
	showapp "coin-server/internal/application/show"
	"coin-server/internal/infrastructure/config"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
	"coin-server/internal/presentation/rest/handler"
	restmiddleware "coin-server/internal/presentation/rest/middleware"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Router REST APIルーター
type Router struct {
	echo           *echo.Echo
	walletHandler  *handler.WalletHandler
	webhookHandler *handler.WebhookHandler
	showHandler    *handler.ShowHandler
	sessionHandler *handler.SessionHandler
}

// NewRouter 新しいRouterを作成
func NewRouter(
	cfg *config.Config,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	ledgerService *ledgerapp.LedgerApplicationService,
	billingService *billingapp.BillingApplicationService,
	settlementService *settlementapp.SettlementApplicationService,
	settlementWorker *settlementapp.Worker,
	showService *showapp.ShowApplicationService,
) (*Router, error) {
	e := echo.New()

	// Echoのデフォルトエラーハンドラーを無効化（カスタムエラーハンドラーを使用）
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		// エラーハンドリングミドルウェアで処理される
	}

	// ミドルウェアの設定
	setupMiddleware(e, cfg, logger, metrics)

	// ハンドラーの作成
	walletHandler := handler.NewWalletHandler(ledgerService)
	webhookHandler := handler.NewWebhookHandler(settlementService, settlementWorker)
	showHandler := handler.NewShowHandler(showService)
	sessionHandler := handler.NewSessionHandler(billingService)

	// ルーティングの設定
	setupRoutes(e, walletHandler, webhookHandler, showHandler, sessionHandler)

	// Swagger UI / ReDoc統合
	SetupSwagger(e)

	return &Router{
		echo:           e,
		walletHandler:  walletHandler,
		webhookHandler: webhookHandler,
		showHandler:    showHandler,
		sessionHandler: sessionHandler,
	}, nil
}

// setupMiddleware ミドルウェアを設定
func setupMiddleware(e *echo.Echo, cfg *config.Config, logger *otelinfra.Logger, metrics *otelinfra.Metrics) {
	// リカバリーミドルウェア
	e.Use(middleware.Recover())

	// CORS設定
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"}, // 本番環境では適切に設定
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// リクエストIDの設定
	e.Use(middleware.RequestID())

	// セキュリティヘッダー
	e.Use(restmiddleware.SecurityHeadersMiddleware())

	// トレーシングミドルウェア
	e.Use(restmiddleware.TracingMiddleware())

	// メトリクスミドルウェア
	e.Use(restmiddleware.MetricsMiddleware(metrics))

	// ログミドルウェア
	e.Use(restmiddleware.LoggingMiddleware(logger))

	// エラーハンドリングミドルウェア
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))
}

// setupRoutes ルーティングを設定
func setupRoutes(
	e *echo.Echo,
	walletHandler *handler.WalletHandler,
	webhookHandler *handler.WebhookHandler,
	showHandler *handler.ShowHandler,
	sessionHandler *handler.SessionHandler,
) {
	// 決済プロバイダからのWebhook（API v1の外に置く）
	e.POST("/webhooks/payment", webhookHandler.HandlePaymentEvent)

	// API v1グループ
	api := e.Group("/api/v1")

	// ウォレット参照エンドポイント
	api.GET("/accounts/:account_id/balance", walletHandler.GetBalance)
	api.GET("/accounts/:account_id/entries", walletHandler.GetEntries)

	// ショー関連エンドポイント
	api.POST("/shows", showHandler.CreateShow)
	api.POST("/shows/:show_id/tickets", showHandler.PurchaseTicket)
	api.POST("/shows/:show_id/start", showHandler.StartShow)
	api.POST("/shows/:show_id/join", showHandler.JoinShow)
	api.POST("/shows/:show_id/gifts", showHandler.SendGift)
	api.POST("/shows/:show_id/heartbeat", showHandler.Heartbeat)
	api.POST("/shows/:show_id/end", showHandler.EndShow)

	// 従量課金セッションエンドポイント
	api.POST("/sessions", sessionHandler.StartSession)
	api.POST("/sessions/:session_id/heartbeat", sessionHandler.Heartbeat)
	api.POST("/sessions/:session_id/end", sessionHandler.EndSession)

	// ヘルスチェックエンドポイント
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}

// Start サーバーを起動
func (r *Router) Start(address string) error {
	return r.echo.Start(address)
}

// Shutdown サーバーをシャットダウン
func (r *Router) Shutdown() error {
	return r.echo.Close()
}
