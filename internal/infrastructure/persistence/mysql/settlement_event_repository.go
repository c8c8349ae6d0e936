package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coin-server/internal/domain/settlement"
)

// SettlementEventRepository MySQL実装のEventRepository
type SettlementEventRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewSettlementEventRepository 新しいSettlementEventRepositoryを作成
func NewSettlementEventRepository(db *DB) *SettlementEventRepository {
	return &SettlementEventRepository{
		db:     db,
		tracer: otel.Tracer("settlement-event-repository"),
	}
}

// Create イベントを作成
func (r *SettlementEventRepository) Create(ctx context.Context, e *settlement.Event) error {
	ctx, span := r.tracer.Start(ctx, "SettlementEventRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.external_id", e.ExternalID()),
		attribute.String("db.provider", e.Provider()),
		attribute.String("db.account_id", e.AccountID()),
		attribute.Int64("db.amount_cents", e.AmountCents()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "settlement_events"),
	)

	query := `
		INSERT INTO settlement_events (
			external_id, provider, account_id, amount_cents, currency,
			raw_payload, status, attempts, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := execerFrom(ctx, r.db).ExecContext(ctx, query,
		e.ExternalID(),
		e.Provider(),
		e.AccountID(),
		e.AmountCents(),
		e.Currency(),
		e.RawPayload(),
		e.Status().String(),
		e.Attempts(),
		e.CreatedAt(),
		e.UpdatedAt(),
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			span.SetStatus(otelcodes.Ok, "settlement event already exists")
			return settlement.ErrDuplicateEvent
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create settlement event: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "settlement event created")
	return nil
}

// FindByExternalID 外部IDでイベントを取得
func (r *SettlementEventRepository) FindByExternalID(ctx context.Context, externalID string) (*settlement.Event, error) {
	ctx, span := r.tracer.Start(ctx, "SettlementEventRepository.FindByExternalID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.external_id", externalID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "settlement_events"),
	)

	query := `
		SELECT external_id, provider, account_id, amount_cents, currency,
			raw_payload, status, attempts, last_error, processed_at,
			created_at, updated_at
		FROM settlement_events
		WHERE external_id = ?
	`

	e, err := r.scanEvent(execerFrom(ctx, r.db).QueryRowContext(ctx, query, externalID))
	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "settlement event not found")
		return nil, settlement.ErrEventNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(otelcodes.Ok, "settlement event found")
	return e, nil
}

// Update イベントを更新（status・attempts・last_error・processed_at）
func (r *SettlementEventRepository) Update(ctx context.Context, e *settlement.Event) error {
	ctx, span := r.tracer.Start(ctx, "SettlementEventRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.external_id", e.ExternalID()),
		attribute.String("db.status", e.Status().String()),
		attribute.Int("db.attempts", e.Attempts()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "settlement_events"),
	)

	query := `
		UPDATE settlement_events
		SET status = ?, attempts = ?, last_error = ?, processed_at = ?, updated_at = ?
		WHERE external_id = ?
	`

	var lastErrorValue interface{}
	if e.LastError() != nil {
		lastErrorValue = *e.LastError()
	}

	var processedAtValue interface{}
	if e.ProcessedAt() != nil {
		processedAtValue = *e.ProcessedAt()
	}

	result, err := execerFrom(ctx, r.db).ExecContext(ctx, query,
		e.Status().String(),
		e.Attempts(),
		lastErrorValue,
		processedAtValue,
		e.UpdatedAt(),
		e.ExternalID(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to update settlement event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Ok, "settlement event not found")
		return settlement.ErrEventNotFound
	}

	span.SetStatus(otelcodes.Ok, "settlement event updated")
	return nil
}

// FindPending 未適用イベントを取得（起動時の再投入用）
func (r *SettlementEventRepository) FindPending(ctx context.Context, limit int) ([]*settlement.Event, error) {
	ctx, span := r.tracer.Start(ctx, "SettlementEventRepository.FindPending")
	defer span.End()

	span.SetAttributes(
		attribute.Int("db.limit", limit),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "settlement_events"),
	)

	query := `
		SELECT external_id, provider, account_id, amount_cents, currency,
			raw_payload, status, attempts, last_error, processed_at,
			created_at, updated_at
		FROM settlement_events
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := execerFrom(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query pending settlement events: %w", err)
	}
	defer rows.Close()

	var events []*settlement.Event
	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate settlement events: %w", err)
	}

	span.SetAttributes(attribute.Int("db.event_count", len(events)))
	span.SetStatus(otelcodes.Ok, "pending settlement events found")
	return events, nil
}

// FindAccountIDsInWindow 指定期間に受信したイベントのアカウントID一覧を取得
func (r *SettlementEventRepository) FindAccountIDsInWindow(ctx context.Context, from, to time.Time) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "SettlementEventRepository.FindAccountIDsInWindow")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "settlement_events"),
	)

	query := `
		SELECT DISTINCT account_id
		FROM settlement_events
		WHERE created_at >= ? AND created_at < ?
		ORDER BY account_id ASC
	`

	rows, err := execerFrom(ctx, r.db).QueryContext(ctx, query, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query account ids: %w", err)
	}
	defer rows.Close()

	var accountIDs []string
	for rows.Next() {
		var accountID string
		if err := rows.Scan(&accountID); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		accountIDs = append(accountIDs, accountID)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate account ids: %w", err)
	}

	span.SetAttributes(attribute.Int("db.account_count", len(accountIDs)))
	span.SetStatus(otelcodes.Ok, "account ids found")
	return accountIDs, nil
}

func (r *SettlementEventRepository) scanEvent(row rowScanner) (*settlement.Event, error) {
	var externalID, provider, accountID, currency, rawPayload, status string
	var amountCents int64
	var attempts int
	var lastError sql.NullString
	var processedAt sql.NullTime
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&externalID,
		&provider,
		&accountID,
		&amountCents,
		&currency,
		&rawPayload,
		&status,
		&attempts,
		&lastError,
		&processedAt,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan settlement event: %w", err)
	}

	eventStatus, err := settlement.NewEventStatus(status)
	if err != nil {
		return nil, fmt.Errorf("invalid event status: %w", err)
	}

	var lastErrorPtr *string
	if lastError.Valid {
		lastErrorPtr = &lastError.String
	}

	var processedAtPtr *time.Time
	if processedAt.Valid {
		processedAtPtr = &processedAt.Time
	}

	return settlement.ReconstructEvent(
		externalID, provider, accountID, amountCents, currency, rawPayload,
		eventStatus, attempts, lastErrorPtr, processedAtPtr, createdAt, updatedAt,
	), nil
}
