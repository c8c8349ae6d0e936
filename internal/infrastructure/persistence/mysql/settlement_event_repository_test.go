package mysql

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"coin-server/internal/domain/settlement"
)

func newEventRepo(t *testing.T) (*SettlementEventRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	repo := &SettlementEventRepository{
		db:     &DB{DB: db},
		tracer: otel.Tracer("test"),
	}
	return repo, mock, func() { db.Close() }
}

func TestSettlementEventRepository_Create(t *testing.T) {
	repo, mock, cleanup := newEventRepo(t)
	defer cleanup()

	event, err := settlement.NewEvent("evt_abc", "stripe", "fan123", 1000, "USD", `{"id":"evt_abc"}`)
	require.NoError(t, err)

	tests := []struct {
		name      string
		setupMock func()
		wantError bool
		errorType error
	}{
		{
			name: "正常系: イベントを作成",
			setupMock: func() {
				mock.ExpectExec(`INSERT INTO settlement_events`).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			wantError: false,
		},
		{
			name: "異常系: 外部ID重複",
			setupMock: func() {
				mock.ExpectExec(`INSERT INTO settlement_events`).
					WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
			},
			wantError: true,
			errorType: settlement.ErrDuplicateEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			err := repo.Create(context.Background(), event)

			if tt.wantError {
				assert.Error(t, err)
				if tt.errorType != nil {
					assert.Equal(t, tt.errorType, err)
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSettlementEventRepository_FindByExternalID(t *testing.T) {
	repo, mock, cleanup := newEventRepo(t)
	defer cleanup()

	now := time.Now()

	tests := []struct {
		name       string
		externalID string
		setupMock  func()
		wantError  bool
		errorType  error
	}{
		{
			name:       "正常系: イベントが見つかる",
			externalID: "evt_abc",
			setupMock: func() {
				rows := sqlmock.NewRows([]string{
					"external_id", "provider", "account_id", "amount_cents", "currency",
					"raw_payload", "status", "attempts", "last_error", "processed_at",
					"created_at", "updated_at",
				}).AddRow("evt_abc", "stripe", "fan123", 1000, "USD", "{}", "applied", 1, nil, now, now, now)
				mock.ExpectQuery(`SELECT external_id, provider, account_id`).
					WithArgs("evt_abc").
					WillReturnRows(rows)
			},
			wantError: false,
		},
		{
			name:       "異常系: イベントが見つからない",
			externalID: "evt_missing",
			setupMock: func() {
				mock.ExpectQuery(`SELECT external_id, provider, account_id`).
					WithArgs("evt_missing").
					WillReturnError(sql.ErrNoRows)
			},
			wantError: true,
			errorType: settlement.ErrEventNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			got, err := repo.FindByExternalID(context.Background(), tt.externalID)

			if tt.wantError {
				assert.Error(t, err)
				if tt.errorType != nil {
					assert.Equal(t, tt.errorType, err)
				}
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "evt_abc", got.ExternalID())
				assert.Equal(t, "stripe", got.Provider())
				assert.Equal(t, int64(1000), got.AmountCents())
				assert.True(t, got.IsApplied())
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSettlementEventRepository_Update(t *testing.T) {
	repo, mock, cleanup := newEventRepo(t)
	defer cleanup()

	event, err := settlement.NewEvent("evt_abc", "stripe", "fan123", 1000, "USD", "{}")
	require.NoError(t, err)
	event.RecordAttempt()
	event.MarkApplied()

	mock.ExpectExec(`UPDATE settlement_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Update(context.Background(), event)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementEventRepository_FindPending(t *testing.T) {
	repo, mock, cleanup := newEventRepo(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"external_id", "provider", "account_id", "amount_cents", "currency",
		"raw_payload", "status", "attempts", "last_error", "processed_at",
		"created_at", "updated_at",
	}).
		AddRow("evt_1", "stripe", "fan123", 1000, "USD", "{}", "pending", 0, nil, nil, now, now).
		AddRow("evt_2", "stripe", "fan456", 500, "USD", "{}", "pending", 2, "timeout", nil, now, now)

	mock.ExpectQuery(`SELECT external_id, provider, account_id`).
		WithArgs(100).
		WillReturnRows(rows)

	got, err := repo.FindPending(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "evt_1", got[0].ExternalID())
	assert.Equal(t, 2, got[1].Attempts())
	require.NotNil(t, got[1].LastError())
	assert.Equal(t, "timeout", *got[1].LastError())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementEventRepository_FindAccountIDsInWindow(t *testing.T) {
	repo, mock, cleanup := newEventRepo(t)
	defer cleanup()

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"account_id"}).
		AddRow("fan123").
		AddRow("fan456")

	mock.ExpectQuery(`SELECT DISTINCT account_id`).
		WithArgs(from, to).
		WillReturnRows(rows)

	got, err := repo.FindAccountIDsInWindow(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, []string{"fan123", "fan456"}, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}
