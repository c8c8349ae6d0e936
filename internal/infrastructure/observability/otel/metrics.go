package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics メトリクス定義
type Metrics struct {
	// 台帳エントリ数
	EntryCount metric.Int64Counter

	// ウォレット残高の分布
	WalletBalance metric.Int64Gauge

	// 残高不足による拒否件数
	InsufficientFundsCount metric.Int64Counter

	// 楽観的ロック競合によるリトライ件数
	ConflictRetryCount metric.Int64Counter

	// 課金ティック数
	BillingTickCount metric.Int64Counter

	// 決済イベント数
	SettlementEventCount metric.Int64Counter

	// ポイズンキュー送り件数
	PoisonEventCount metric.Int64Counter

	// 突合ドリフト検出件数
	ReconciliationDriftCount metric.Int64Counter

	// リクエスト数
	RequestCount metric.Int64Counter

	// レスポンス時間
	ResponseTime metric.Float64Histogram

	// エラー率
	ErrorCount metric.Int64Counter
}

// NewMetrics 新しいMetricsを作成
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)

	entryCount, err := meter.Int64Counter(
		"ledger_entries_total",
		metric.WithDescription("Total number of committed ledger entries"),
	)
	if err != nil {
		return nil, err
	}

	walletBalance, err := meter.Int64Gauge(
		"wallet_balance",
		metric.WithDescription("Wallet balance in coins"),
	)
	if err != nil {
		return nil, err
	}

	insufficientFundsCount, err := meter.Int64Counter(
		"insufficient_funds_total",
		metric.WithDescription("Total number of debits rejected for insufficient funds"),
	)
	if err != nil {
		return nil, err
	}

	conflictRetryCount, err := meter.Int64Counter(
		"conflict_retries_total",
		metric.WithDescription("Total number of optimistic lock retries"),
	)
	if err != nil {
		return nil, err
	}

	billingTickCount, err := meter.Int64Counter(
		"billing_ticks_total",
		metric.WithDescription("Total number of billing meter ticks"),
	)
	if err != nil {
		return nil, err
	}

	settlementEventCount, err := meter.Int64Counter(
		"settlement_events_total",
		metric.WithDescription("Total number of settlement events processed"),
	)
	if err != nil {
		return nil, err
	}

	poisonEventCount, err := meter.Int64Counter(
		"poison_events_total",
		metric.WithDescription("Total number of settlement events moved to the poison queue"),
	)
	if err != nil {
		return nil, err
	}

	reconciliationDriftCount, err := meter.Int64Counter(
		"reconciliation_drift_total",
		metric.WithDescription("Total number of reconciliation drifts detected"),
	)
	if err != nil {
		return nil, err
	}

	requestCount, err := meter.Int64Counter(
		"requests_total",
		metric.WithDescription("Total number of requests"),
	)
	if err != nil {
		return nil, err
	}

	responseTime, err := meter.Float64Histogram(
		"response_time_seconds",
		metric.WithDescription("Response time in seconds"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		EntryCount:               entryCount,
		WalletBalance:            walletBalance,
		InsufficientFundsCount:   insufficientFundsCount,
		ConflictRetryCount:       conflictRetryCount,
		BillingTickCount:         billingTickCount,
		SettlementEventCount:     settlementEventCount,
		PoisonEventCount:         poisonEventCount,
		ReconciliationDriftCount: reconciliationDriftCount,
		RequestCount:             requestCount,
		ResponseTime:             responseTime,
		ErrorCount:               errorCount,
	}, nil
}

// RecordEntry 台帳エントリを記録
func (m *Metrics) RecordEntry(ctx context.Context, kind string) {
	m.EntryCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
		),
	)
}

// RecordWalletBalance ウォレット残高を記録
func (m *Metrics) RecordWalletBalance(ctx context.Context, accountID string, balance int64) {
	m.WalletBalance.Record(ctx, balance,
		metric.WithAttributes(
			attribute.String("account_id", accountID),
		),
	)
}

// RecordInsufficientFunds 残高不足による拒否を記録
func (m *Metrics) RecordInsufficientFunds(ctx context.Context, kind string) {
	m.InsufficientFundsCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
		),
	)
}

// RecordConflictRetry 楽観的ロック競合によるリトライを記録
func (m *Metrics) RecordConflictRetry(ctx context.Context, operation string) {
	m.ConflictRetryCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
		),
	)
}

// RecordBillingTick 課金ティックを記録
func (m *Metrics) RecordBillingTick(ctx context.Context, sessionKind, result string) {
	m.BillingTickCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("session_kind", sessionKind),
			attribute.String("result", result),
		),
	)
}

// RecordSettlementEvent 決済イベント処理を記録
func (m *Metrics) RecordSettlementEvent(ctx context.Context, provider, result string) {
	m.SettlementEventCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("result", result),
		),
	)
}

// RecordPoisonEvent ポイズンキュー送りを記録
func (m *Metrics) RecordPoisonEvent(ctx context.Context, provider string) {
	m.PoisonEventCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
		),
	)
}

// RecordReconciliationDrift 突合ドリフトを記録
func (m *Metrics) RecordReconciliationDrift(ctx context.Context, accountID string) {
	m.ReconciliationDriftCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("account_id", accountID),
		),
	)
}

// RecordRequest リクエストを記録
func (m *Metrics) RecordRequest(ctx context.Context, method, path string) {
	m.RequestCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordResponseTime レスポンス時間を記録
func (m *Metrics) RecordResponseTime(ctx context.Context, method, path string, seconds float64) {
	m.ResponseTime.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordError エラーを記録
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.ErrorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error_type", errorType),
		),
	)
}
