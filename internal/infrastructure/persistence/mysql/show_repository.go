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

	"coin-server/internal/domain/show"
)

// ShowRepository MySQL実装のShowRepository
type ShowRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewShowRepository 新しいShowRepositoryを作成
func NewShowRepository(db *DB) *ShowRepository {
	return &ShowRepository{
		db:     db,
		tracer: otel.Tracer("show-repository"),
	}
}

// Create ショーを作成
func (r *ShowRepository) Create(ctx context.Context, s *show.Show) error {
	ctx, span := r.tracer.Start(ctx, "ShowRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.show_id", s.ShowID()),
		attribute.String("db.creator_id", s.CreatorID()),
		attribute.String("db.status", s.Status().String()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "shows"),
	)

	query := `
		INSERT INTO shows (show_id, creator_id, status, room_name, ticket_price)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := execerFrom(ctx, r.db).ExecContext(ctx, query,
		s.ShowID(),
		s.CreatorID(),
		s.Status().String(),
		s.RoomName(),
		s.TicketPrice(),
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			span.SetStatus(otelcodes.Ok, "show already exists")
			return show.ErrInvalidShow
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create show: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "show created")
	return nil
}

// FindByShowID ショーIDでショーを取得
func (r *ShowRepository) FindByShowID(ctx context.Context, showID string) (*show.Show, error) {
	ctx, span := r.tracer.Start(ctx, "ShowRepository.FindByShowID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.show_id", showID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "shows"),
	)

	query := `
		SELECT show_id, creator_id, status, room_name, ticket_price,
			started_at, ended_at, last_heartbeat_at, attendee_count, total_gifts
		FROM shows
		WHERE show_id = ?
	`

	s, err := r.scanShow(execerFrom(ctx, r.db).QueryRowContext(ctx, query, showID))
	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "show not found")
		return nil, show.ErrShowNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(otelcodes.Ok, "show found")
	return s, nil
}

// TransitionToLive scheduled→liveの条件付き遷移
func (r *ShowRepository) TransitionToLive(ctx context.Context, showID string, at time.Time) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "ShowRepository.TransitionToLive")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.show_id", showID),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "shows"),
	)

	query := `
		UPDATE shows
		SET status = 'live', started_at = ?, last_heartbeat_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE show_id = ? AND status = 'scheduled'
	`

	result, err := execerFrom(ctx, r.db).ExecContext(ctx, query, at, at, showID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to transition show to live: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	claimed := rowsAffected > 0
	span.SetAttributes(attribute.Bool("db.claimed", claimed))
	span.SetStatus(otelcodes.Ok, "transition attempted")
	return claimed, nil
}

// TransitionToEnded live→endedの条件付き遷移（集計値を同時に保存）
func (r *ShowRepository) TransitionToEnded(ctx context.Context, showID string, at time.Time, attendeeCount, totalGifts int64) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "ShowRepository.TransitionToEnded")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.show_id", showID),
		attribute.Int64("db.attendee_count", attendeeCount),
		attribute.Int64("db.total_gifts", totalGifts),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "shows"),
	)

	query := `
		UPDATE shows
		SET status = 'ended', ended_at = ?, attendee_count = ?, total_gifts = ?, updated_at = CURRENT_TIMESTAMP
		WHERE show_id = ? AND status = 'live'
	`

	result, err := execerFrom(ctx, r.db).ExecContext(ctx, query, at, attendeeCount, totalGifts, showID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to transition show to ended: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	claimed := rowsAffected > 0
	span.SetAttributes(attribute.Bool("db.claimed", claimed))
	span.SetStatus(otelcodes.Ok, "transition attempted")
	return claimed, nil
}

// UpdateHeartbeat 最終ハートビート日時を更新（live中のみ）
func (r *ShowRepository) UpdateHeartbeat(ctx context.Context, showID string, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "ShowRepository.UpdateHeartbeat")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.show_id", showID),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "shows"),
	)

	query := `
		UPDATE shows
		SET last_heartbeat_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE show_id = ? AND status = 'live'
	`

	result, err := execerFrom(ctx, r.db).ExecContext(ctx, query, at, showID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Ok, "show not live")
		return show.ErrInvalidStateTransition
	}

	span.SetStatus(otelcodes.Ok, "heartbeat updated")
	return nil
}

// FindStaleLive ハートビートがcutoffより古いliveショーの一覧を取得
func (r *ShowRepository) FindStaleLive(ctx context.Context, cutoff time.Time) ([]*show.Show, error) {
	ctx, span := r.tracer.Start(ctx, "ShowRepository.FindStaleLive")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "shows"),
	)

	query := `
		SELECT show_id, creator_id, status, room_name, ticket_price,
			started_at, ended_at, last_heartbeat_at, attendee_count, total_gifts
		FROM shows
		WHERE status = 'live' AND last_heartbeat_at < ?
		ORDER BY last_heartbeat_at ASC
	`

	rows, err := execerFrom(ctx, r.db).QueryContext(ctx, query, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query stale shows: %w", err)
	}
	defer rows.Close()

	var shows []*show.Show
	for rows.Next() {
		s, err := r.scanShow(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		shows = append(shows, s)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate shows: %w", err)
	}

	span.SetAttributes(attribute.Int("db.show_count", len(shows)))
	span.SetStatus(otelcodes.Ok, "stale shows found")
	return shows, nil
}

func (r *ShowRepository) scanShow(row rowScanner) (*show.Show, error) {
	var showID, creatorID, status, roomName string
	var ticketPrice, attendeeCount, totalGifts int64
	var startedAt, endedAt, lastHeartbeatAt sql.NullTime

	err := row.Scan(
		&showID,
		&creatorID,
		&status,
		&roomName,
		&ticketPrice,
		&startedAt,
		&endedAt,
		&lastHeartbeatAt,
		&attendeeCount,
		&totalGifts,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan show: %w", err)
	}

	showStatus, err := show.NewShowStatus(status)
	if err != nil {
		return nil, fmt.Errorf("invalid show status: %w", err)
	}

	var startedAtPtr, endedAtPtr, lastHeartbeatAtPtr *time.Time
	if startedAt.Valid {
		startedAtPtr = &startedAt.Time
	}
	if endedAt.Valid {
		endedAtPtr = &endedAt.Time
	}
	if lastHeartbeatAt.Valid {
		lastHeartbeatAtPtr = &lastHeartbeatAt.Time
	}

	return show.ReconstructShow(
		showID, creatorID, showStatus, roomName, ticketPrice,
		startedAtPtr, endedAtPtr, lastHeartbeatAtPtr, attendeeCount, totalGifts,
	), nil
}
