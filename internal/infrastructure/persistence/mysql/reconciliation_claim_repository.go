package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coin-server/internal/domain/reconciliation"
)

// ReconciliationClaimRepository MySQL実装のClaimRepository
type ReconciliationClaimRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewReconciliationClaimRepository 新しいReconciliationClaimRepositoryを作成
func NewReconciliationClaimRepository(db *DB) *ReconciliationClaimRepository {
	return &ReconciliationClaimRepository{
		db:     db,
		tracer: otel.Tracer("reconciliation-claim-repository"),
	}
}

// Claim (アカウント, 期間)のクレームを取得する
// 主キー(account_id, window_start)のINSERT成否でシングルフライトを保証する
func (r *ReconciliationClaimRepository) Claim(ctx context.Context, accountID string, windowStart, windowEnd time.Time) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "ReconciliationClaimRepository.Claim")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", accountID),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "reconciliation_claims"),
	)

	query := `
		INSERT INTO reconciliation_claims (account_id, window_start, window_end, claimed_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`

	_, err := execerFrom(ctx, r.db).ExecContext(ctx, query, accountID, windowStart, windowEnd)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			span.SetAttributes(attribute.Bool("db.claimed", false))
			span.SetStatus(otelcodes.Ok, "window already claimed")
			return false, nil
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to claim reconciliation window: %w", err)
	}

	span.SetAttributes(attribute.Bool("db.claimed", true))
	span.SetStatus(otelcodes.Ok, "window claimed")
	return true, nil
}

// Release クレームを解放する（調整の適用に失敗した場合の再試行用）
func (r *ReconciliationClaimRepository) Release(ctx context.Context, accountID string, windowStart time.Time) error {
	ctx, span := r.tracer.Start(ctx, "ReconciliationClaimRepository.Release")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", accountID),
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.table", "reconciliation_claims"),
	)

	query := `
		DELETE FROM reconciliation_claims
		WHERE account_id = ? AND window_start = ?
	`

	_, err := execerFrom(ctx, r.db).ExecContext(ctx, query, accountID, windowStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to release reconciliation claim: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "claim released")
	return nil
}

// RecordResult 突合結果（期待値・実績値・調整エントリID）をクレームに記録する
func (r *ReconciliationClaimRepository) RecordResult(ctx context.Context, accountID string, windowStart time.Time, expected, actual int64, adjustmentEntryID string) error {
	ctx, span := r.tracer.Start(ctx, "ReconciliationClaimRepository.RecordResult")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", accountID),
		attribute.Int64("db.expected", expected),
		attribute.Int64("db.actual", actual),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "reconciliation_claims"),
	)

	query := `
		UPDATE reconciliation_claims
		SET expected_total = ?, actual_total = ?, adjustment_entry_id = ?, completed_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND window_start = ?
	`

	var adjustmentValue interface{}
	if adjustmentEntryID != "" {
		adjustmentValue = adjustmentEntryID
	}

	result, err := execerFrom(ctx, r.db).ExecContext(ctx, query, expected, actual, adjustmentValue, accountID, windowStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to record reconciliation result: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Ok, "claim not found")
		return reconciliation.ErrClaimNotFound
	}

	span.SetStatus(otelcodes.Ok, "result recorded")
	return nil
}
