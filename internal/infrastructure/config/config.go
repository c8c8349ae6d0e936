package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config アプリケーション全体の設定
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Billing        BillingConfig
	Settlement     SettlementConfig
	Reconciliation ReconciliationConfig
	Show           ShowConfig
	OpenTelemetry  OpenTelemetryConfig
	Environment    string
}

// ServerConfig サーバー設定
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig データベース設定
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// BillingConfig 分単位課金の設定
type BillingConfig struct {
	TickInterval     time.Duration // 課金ティック間隔
	TickTimeout      time.Duration // 1ティックあたりのタイムアウト
	HeartbeatTimeout time.Duration // 課金セッションのハートビートタイムアウト
	PlatformFeePct   int64         // ギフト送信時のプラットフォーム手数料（%）
}

// SettlementConfig 決済イベント処理の設定
type SettlementConfig struct {
	Workers         int    // 並行ワーカー数
	QueueSize       int    // キューの容量
	MaxAttempts     int    // リトライ上限（超過でポイズン扱い）
	CoinPriceCents  int64  // 1コインあたりの価格（セント）
	Currency        string // 受け付ける通貨コード
	RequeueCronSpec string // pendingイベント再投入の実行スケジュール
}

// ReconciliationConfig 突合ジョブの設定
type ReconciliationConfig struct {
	CronSpec        string        // 実行スケジュール
	WindowSize      time.Duration // 突合対象の期間幅
	ToleranceCoins  int64         // 許容する差分（コイン）
	ProviderBaseURL string        // プロバイダ照会APIのベースURL
	ProviderAPIKey  string
	ProviderTimeout time.Duration
}

// ShowConfig ショーセッションの設定
type ShowConfig struct {
	HeartbeatTimeout time.Duration // liveショーのハートビートタイムアウト
	ReaperCronSpec   string        // 放置ショー回収の実行スケジュール
}

// OpenTelemetryConfig OpenTelemetry設定
type OpenTelemetryConfig struct {
	Enabled         bool
	ServiceName     string
	ServiceVersion  string
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceExporter   string // "otlp", "stdout"
	MetricsExporter string // "otlp", "stdout"
}

// Load 設定を読み込む
func Load() (*Config, error) {
	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")

	cfg := &Config{
		Environment: env,
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 3306),
			User:            getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "coin_db"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		},
		Billing: BillingConfig{
			TickInterval:     getEnvAsDuration("BILLING_TICK_INTERVAL", 60*time.Second),
			TickTimeout:      getEnvAsDuration("BILLING_TICK_TIMEOUT", 10*time.Second),
			HeartbeatTimeout: getEnvAsDuration("BILLING_HEARTBEAT_TIMEOUT", 3*time.Minute),
			PlatformFeePct:   int64(getEnvAsInt("BILLING_PLATFORM_FEE_PCT", 30)),
		},
		Settlement: SettlementConfig{
			Workers:         getEnvAsInt("SETTLEMENT_WORKERS", 4),
			QueueSize:       getEnvAsInt("SETTLEMENT_QUEUE_SIZE", 1024),
			MaxAttempts:     getEnvAsInt("SETTLEMENT_MAX_ATTEMPTS", 5),
			CoinPriceCents:  int64(getEnvAsInt("SETTLEMENT_COIN_PRICE_CENTS", 10)),
			Currency:        getEnv("SETTLEMENT_CURRENCY", "JPY"),
			RequeueCronSpec: getEnv("SETTLEMENT_REQUEUE_CRON_SPEC", "* * * * *"),
		},
		Reconciliation: ReconciliationConfig{
			CronSpec:        getEnv("RECON_CRON_SPEC", "5 * * * *"),
			WindowSize:      getEnvAsDuration("RECON_WINDOW_SIZE", time.Hour),
			ToleranceCoins:  int64(getEnvAsInt("RECON_TOLERANCE_COINS", 0)),
			ProviderBaseURL: getEnv("RECON_PROVIDER_BASE_URL", "http://localhost:9090"),
			ProviderAPIKey:  getEnv("RECON_PROVIDER_API_KEY", ""),
			ProviderTimeout: getEnvAsDuration("RECON_PROVIDER_TIMEOUT", 10*time.Second),
		},
		Show: ShowConfig{
			HeartbeatTimeout: getEnvAsDuration("SHOW_HEARTBEAT_TIMEOUT", 2*time.Minute),
			ReaperCronSpec:   getEnv("SHOW_REAPER_CRON_SPEC", "* * * * *"),
		},
		OpenTelemetry: OpenTelemetryConfig{
			Enabled:         getEnvAsBool("OTEL_ENABLED", true),
			ServiceName:     getEnv("OTEL_SERVICE_NAME", "coin-server"),
			ServiceVersion:  getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			OTLPInsecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			TraceExporter:   getEnv("OTEL_TRACES_EXPORTER", "otlp"),
			MetricsExporter: getEnv("OTEL_METRICS_EXPORTER", "otlp"),
		},
	}

	// 必須設定の検証
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate 設定の検証
func (c *Config) validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Billing.TickInterval <= 0 {
		return fmt.Errorf("BILLING_TICK_INTERVAL must be positive")
	}
	if c.Billing.PlatformFeePct < 0 || c.Billing.PlatformFeePct >= 100 {
		return fmt.Errorf("BILLING_PLATFORM_FEE_PCT must be in [0, 100)")
	}
	if c.Settlement.CoinPriceCents <= 0 {
		return fmt.Errorf("SETTLEMENT_COIN_PRICE_CENTS must be positive")
	}
	if c.Settlement.MaxAttempts <= 0 {
		return fmt.Errorf("SETTLEMENT_MAX_ATTEMPTS must be positive")
	}
	if c.Reconciliation.WindowSize <= 0 {
		return fmt.Errorf("RECON_WINDOW_SIZE must be positive")
	}
	return nil
}

// DSN データベース接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// getEnv 環境変数を取得（デフォルト値付き）
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt 環境変数を整数として取得
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool 環境変数を真偽値として取得
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration 環境変数を時間として取得
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
