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

	"coin-server/internal/domain/billing"
)

// BillableSessionRepository MySQL実装のSessionRepository
type BillableSessionRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewBillableSessionRepository 新しいBillableSessionRepositoryを作成
func NewBillableSessionRepository(db *DB) *BillableSessionRepository {
	return &BillableSessionRepository{
		db:     db,
		tracer: otel.Tracer("billable-session-repository"),
	}
}

// Create セッションを作成
func (r *BillableSessionRepository) Create(ctx context.Context, s *billing.Session) error {
	ctx, span := r.tracer.Start(ctx, "BillableSessionRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.session_id", s.SessionID()),
		attribute.String("db.kind", s.Kind().String()),
		attribute.String("db.payer_id", s.PayerID()),
		attribute.String("db.payee_id", s.PayeeID()),
		attribute.Int64("db.rate_per_minute", s.RatePerMinute()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "billable_sessions"),
	)

	query := `
		INSERT INTO billable_sessions (
			session_id, kind, payer_id, payee_id, rate_per_minute,
			started_at, last_seen_at, minutes_billed, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := execerFrom(ctx, r.db).ExecContext(ctx, query,
		s.SessionID(),
		s.Kind().String(),
		s.PayerID(),
		s.PayeeID(),
		s.RatePerMinute(),
		s.StartedAt(),
		s.LastSeenAt(),
		s.MinutesBilled(),
		s.Status().String(),
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			span.SetStatus(otelcodes.Ok, "session already exists")
			return billing.ErrDuplicateSession
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create session: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "session created")
	return nil
}

// FindBySessionID セッションIDでセッションを取得
func (r *BillableSessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*billing.Session, error) {
	ctx, span := r.tracer.Start(ctx, "BillableSessionRepository.FindBySessionID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.session_id", sessionID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "billable_sessions"),
	)

	query := `
		SELECT session_id, kind, payer_id, payee_id, rate_per_minute,
			started_at, ended_at, last_seen_at, minutes_billed, status
		FROM billable_sessions
		WHERE session_id = ?
	`

	s, err := r.scanSession(execerFrom(ctx, r.db).QueryRowContext(ctx, query, sessionID))
	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "session not found")
		return nil, billing.ErrSessionNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(otelcodes.Ok, "session found")
	return s, nil
}

// FindActive 課金中のセッション一覧を取得
func (r *BillableSessionRepository) FindActive(ctx context.Context) ([]*billing.Session, error) {
	ctx, span := r.tracer.Start(ctx, "BillableSessionRepository.FindActive")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "billable_sessions"),
	)

	query := `
		SELECT session_id, kind, payer_id, payee_id, rate_per_minute,
			started_at, ended_at, last_seen_at, minutes_billed, status
		FROM billable_sessions
		WHERE status = 'active'
		ORDER BY started_at ASC
	`

	rows, err := execerFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*billing.Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	span.SetAttributes(attribute.Int("db.session_count", len(sessions)))
	span.SetStatus(otelcodes.Ok, "active sessions found")
	return sessions, nil
}

// AdvanceMinutesBilled 課金済み分数を単調に進める
func (r *BillableSessionRepository) AdvanceMinutesBilled(ctx context.Context, sessionID string, minutes int64) error {
	ctx, span := r.tracer.Start(ctx, "BillableSessionRepository.AdvanceMinutesBilled")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.session_id", sessionID),
		attribute.Int64("db.minutes", minutes),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "billable_sessions"),
	)

	// minutes_billed < ? の条件で単調非減少を保証する
	query := `
		UPDATE billable_sessions
		SET minutes_billed = ?, updated_at = CURRENT_TIMESTAMP
		WHERE session_id = ? AND minutes_billed < ?
	`

	_, err := execerFrom(ctx, r.db).ExecContext(ctx, query, minutes, sessionID, minutes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to advance minutes billed: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "minutes billed advanced")
	return nil
}

// Touch 最終ハートビート日時を更新
func (r *BillableSessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "BillableSessionRepository.Touch")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.session_id", sessionID),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "billable_sessions"),
	)

	query := `
		UPDATE billable_sessions
		SET last_seen_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE session_id = ? AND status = 'active'
	`

	result, err := execerFrom(ctx, r.db).ExecContext(ctx, query, at, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to touch session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Ok, "session not active")
		return billing.ErrSessionFinalized
	}

	span.SetStatus(otelcodes.Ok, "session touched")
	return nil
}

// MarkFinalized セッションを精算済みにする（status=activeの場合のみ）
func (r *BillableSessionRepository) MarkFinalized(ctx context.Context, sessionID string, endedAt time.Time) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "BillableSessionRepository.MarkFinalized")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.session_id", sessionID),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "billable_sessions"),
	)

	// 条件付きUPDATEにより精算を1回だけ実行する
	query := `
		UPDATE billable_sessions
		SET status = 'finalized', ended_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE session_id = ? AND status = 'active'
	`

	result, err := execerFrom(ctx, r.db).ExecContext(ctx, query, endedAt, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to finalize session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	claimed := rowsAffected > 0
	span.SetAttributes(attribute.Bool("db.claimed", claimed))
	span.SetStatus(otelcodes.Ok, "session finalize attempted")
	return claimed, nil
}

func (r *BillableSessionRepository) scanSession(row rowScanner) (*billing.Session, error) {
	var sessionID, kind, payerID, payeeID, status string
	var ratePerMinute, minutesBilled int64
	var startedAt, lastSeenAt time.Time
	var endedAt sql.NullTime

	err := row.Scan(
		&sessionID,
		&kind,
		&payerID,
		&payeeID,
		&ratePerMinute,
		&startedAt,
		&endedAt,
		&lastSeenAt,
		&minutesBilled,
		&status,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	sessionKind, err := billing.NewSessionKind(kind)
	if err != nil {
		return nil, fmt.Errorf("invalid session kind: %w", err)
	}

	sessionStatus := billing.SessionStatus(status)
	if !sessionStatus.Valid() {
		return nil, fmt.Errorf("invalid session status: %s", status)
	}

	var endedAtPtr *time.Time
	if endedAt.Valid {
		endedAtPtr = &endedAt.Time
	}

	return billing.ReconstructSession(
		sessionID, sessionKind, payerID, payeeID, ratePerMinute,
		startedAt, endedAtPtr, lastSeenAt, minutesBilled, sessionStatus,
	), nil
}
