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

// TicketRepository MySQL実装のTicketRepository
type TicketRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewTicketRepository 新しいTicketRepositoryを作成
func NewTicketRepository(db *DB) *TicketRepository {
	return &TicketRepository{
		db:     db,
		tracer: otel.Tracer("ticket-repository"),
	}
}

// Create チケットを作成
func (r *TicketRepository) Create(ctx context.Context, t *show.Ticket) error {
	ctx, span := r.tracer.Start(ctx, "TicketRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.ticket_id", t.TicketID()),
		attribute.String("db.show_id", t.ShowID()),
		attribute.String("db.holder_id", t.HolderID()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "show_tickets"),
	)

	query := `
		INSERT INTO show_tickets (ticket_id, show_id, holder_id, purchased_at, access_granted)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := execerFrom(ctx, r.db).ExecContext(ctx, query,
		t.TicketID(),
		t.ShowID(),
		t.HolderID(),
		t.PurchasedAt(),
		t.AccessGranted(),
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			span.SetStatus(otelcodes.Ok, "ticket already exists")
			return show.ErrDuplicateTicket
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "ticket created")
	return nil
}

// FindByShowAndHolder ショーIDと保有者IDでチケットを取得
func (r *TicketRepository) FindByShowAndHolder(ctx context.Context, showID, holderID string) (*show.Ticket, error) {
	ctx, span := r.tracer.Start(ctx, "TicketRepository.FindByShowAndHolder")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.show_id", showID),
		attribute.String("db.holder_id", holderID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "show_tickets"),
	)

	query := `
		SELECT ticket_id, show_id, holder_id, purchased_at, access_granted, used_at
		FROM show_tickets
		WHERE show_id = ? AND holder_id = ?
	`

	var ticketID, dbShowID, dbHolderID string
	var purchasedAt time.Time
	var accessGranted bool
	var usedAt sql.NullTime

	err := execerFrom(ctx, r.db).QueryRowContext(ctx, query, showID, holderID).Scan(
		&ticketID,
		&dbShowID,
		&dbHolderID,
		&purchasedAt,
		&accessGranted,
		&usedAt,
	)

	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "ticket not found")
		return nil, show.ErrTicketNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}

	var usedAtPtr *time.Time
	if usedAt.Valid {
		usedAtPtr = &usedAt.Time
	}

	span.SetStatus(otelcodes.Ok, "ticket found")
	return show.ReconstructTicket(ticketID, dbShowID, dbHolderID, purchasedAt, accessGranted, usedAtPtr), nil
}

// GrantAccess チケットのアクセスを許可する
func (r *TicketRepository) GrantAccess(ctx context.Context, ticketID string) error {
	ctx, span := r.tracer.Start(ctx, "TicketRepository.GrantAccess")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.ticket_id", ticketID),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "show_tickets"),
	)

	query := `
		UPDATE show_tickets
		SET access_granted = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE ticket_id = ?
	`

	result, err := execerFrom(ctx, r.db).ExecContext(ctx, query, ticketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to grant access: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Ok, "ticket not found")
		return show.ErrTicketNotFound
	}

	span.SetStatus(otelcodes.Ok, "access granted")
	return nil
}

// MarkUsed 入室日時を記録する（初回入室のみ）
func (r *TicketRepository) MarkUsed(ctx context.Context, ticketID string, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "TicketRepository.MarkUsed")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.ticket_id", ticketID),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "show_tickets"),
	)

	query := `
		UPDATE show_tickets
		SET used_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE ticket_id = ? AND used_at IS NULL
	`

	_, err := execerFrom(ctx, r.db).ExecContext(ctx, query, at, ticketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to mark ticket used: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "ticket marked used")
	return nil
}

// CountAttendees 入室済みチケット数を取得
func (r *TicketRepository) CountAttendees(ctx context.Context, showID string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "TicketRepository.CountAttendees")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.show_id", showID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "show_tickets"),
	)

	query := `
		SELECT COUNT(*)
		FROM show_tickets
		WHERE show_id = ? AND used_at IS NOT NULL
	`

	var count int64
	err := execerFrom(ctx, r.db).QueryRowContext(ctx, query, showID).Scan(&count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("failed to count attendees: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.attendee_count", count))
	span.SetStatus(otelcodes.Ok, "attendees counted")
	return count, nil
}
