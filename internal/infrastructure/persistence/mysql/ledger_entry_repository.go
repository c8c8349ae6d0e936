package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coin-server/internal/domain/ledger"
)

// LedgerEntryRepository MySQL実装のEntryRepository
type LedgerEntryRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewLedgerEntryRepository 新しいLedgerEntryRepositoryを作成
func NewLedgerEntryRepository(db *DB) *LedgerEntryRepository {
	return &LedgerEntryRepository{
		db:     db,
		tracer: otel.Tracer("ledger-entry-repository"),
	}
}

// Save エントリを保存
func (r *LedgerEntryRepository) Save(ctx context.Context, e *ledger.Entry) error {
	ctx, span := r.tracer.Start(ctx, "LedgerEntryRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.entry_id", e.EntryID()),
		attribute.String("db.account_id", e.AccountID()),
		attribute.String("db.kind", e.Kind().String()),
		attribute.Int64("db.amount", e.Amount()),
		attribute.String("db.idempotency_key", e.IdempotencyKey()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "ledger_entries"),
	)

	query := `
		INSERT INTO ledger_entries (
			entry_id, account_id, amount, kind, reference_id,
			idempotency_key, balance_before, balance_after, status,
			metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var metadataJSON []byte
	var err error
	if e.Metadata() != nil {
		metadataJSON, err = json.Marshal(e.Metadata())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err = execerFrom(ctx, r.db).ExecContext(ctx, query,
		e.EntryID(),
		e.AccountID(),
		e.Amount(),
		e.Kind().String(),
		e.ReferenceID(),
		e.IdempotencyKey(),
		e.BalanceBefore(),
		e.BalanceAfter(),
		e.Status().String(),
		string(metadataJSON),
		e.CreatedAt(),
		e.UpdatedAt(),
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			span.SetStatus(otelcodes.Ok, "idempotency key already exists")
			return ledger.ErrDuplicateIdempotencyKey
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save ledger entry: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "ledger entry saved")
	return nil
}

// FindByIdempotencyKey 冪等性キーでエントリを取得
func (r *LedgerEntryRepository) FindByIdempotencyKey(ctx context.Context, idempotencyKey string) (*ledger.Entry, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerEntryRepository.FindByIdempotencyKey")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.idempotency_key", idempotencyKey),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "ledger_entries"),
	)

	query := `
		SELECT entry_id, account_id, amount, kind, reference_id,
			idempotency_key, balance_before, balance_after, status,
			metadata, created_at, updated_at
		FROM ledger_entries
		WHERE idempotency_key = ?
	`

	e, err := r.scanEntry(execerFrom(ctx, r.db).QueryRowContext(ctx, query, idempotencyKey))
	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "ledger entry not found")
		return nil, ledger.ErrEntryNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(otelcodes.Ok, "ledger entry found")
	return e, nil
}

// FindByAccountID アカウントIDでエントリ一覧を取得（新しい順、ページネーション対応）
func (r *LedgerEntryRepository) FindByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*ledger.Entry, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerEntryRepository.FindByAccountID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", accountID),
		attribute.Int("db.limit", limit),
		attribute.Int("db.offset", offset),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "ledger_entries"),
	)

	query := `
		SELECT entry_id, account_id, amount, kind, reference_id,
			idempotency_key, balance_before, balance_after, status,
			metadata, created_at, updated_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY created_at DESC, entry_id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := execerFrom(ctx, r.db).QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	span.SetAttributes(attribute.Int("db.entry_count", len(entries)))
	span.SetStatus(otelcodes.Ok, "ledger entries found")
	return entries, nil
}

// SumSettlementCredits 指定期間のコミット済みsettlement_creditエントリの合計を取得
func (r *LedgerEntryRepository) SumSettlementCredits(ctx context.Context, accountID string, from, to time.Time) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerEntryRepository.SumSettlementCredits")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", accountID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "ledger_entries"),
	)

	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = ?
			AND kind = 'settlement_credit'
			AND status = 'committed'
			AND created_at >= ? AND created_at < ?
	`

	var total int64
	err := execerFrom(ctx, r.db).QueryRowContext(ctx, query, accountID, from, to).Scan(&total)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("failed to sum settlement credits: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.total", total))
	span.SetStatus(otelcodes.Ok, "settlement credits summed")
	return total, nil
}

// SumGiftsByReference 参照IDに紐づくコミット済みギフト送信額の合計（絶対値）を取得
func (r *LedgerEntryRepository) SumGiftsByReference(ctx context.Context, referenceID string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerEntryRepository.SumGiftsByReference")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.reference_id", referenceID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "ledger_entries"),
	)

	query := `
		SELECT COALESCE(SUM(-amount), 0)
		FROM ledger_entries
		WHERE reference_id = ?
			AND kind = 'gift_send'
			AND status = 'committed'
	`

	var total int64
	err := execerFrom(ctx, r.db).QueryRowContext(ctx, query, referenceID).Scan(&total)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("failed to sum gifts: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.total", total))
	span.SetStatus(otelcodes.Ok, "gifts summed")
	return total, nil
}

// rowScanner QueryRowContextとrows.Nextの両方からスキャンするための共通インターフェース
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *LedgerEntryRepository) scanEntry(row rowScanner) (*ledger.Entry, error) {
	var entryID, accountID, kind, referenceID, idempotencyKey, status string
	var amount, balanceBefore, balanceAfter int64
	var metadataJSON sql.NullString
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&entryID,
		&accountID,
		&amount,
		&kind,
		&referenceID,
		&idempotencyKey,
		&balanceBefore,
		&balanceAfter,
		&status,
		&metadataJSON,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	entryKind, err := ledger.NewEntryKind(kind)
	if err != nil {
		return nil, fmt.Errorf("invalid entry kind: %w", err)
	}

	entryStatus, err := ledger.NewEntryStatus(status)
	if err != nil {
		return nil, fmt.Errorf("invalid entry status: %w", err)
	}

	var metadata map[string]interface{}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	e, err := ledger.NewEntry(
		entryID, accountID, amount, entryKind, referenceID, idempotencyKey,
		balanceBefore, balanceAfter, entryStatus, metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct ledger entry entity: %w", err)
	}

	return e, nil
}
