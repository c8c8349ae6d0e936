package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"coin-server/internal/domain/reconciliation"
)

func newClaimRepo(t *testing.T) (*ReconciliationClaimRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	repo := &ReconciliationClaimRepository{
		db:     &DB{DB: db},
		tracer: otel.Tracer("test"),
	}
	return repo, mock, func() { db.Close() }
}

func TestReconciliationClaimRepository_Claim(t *testing.T) {
	repo, mock, cleanup := newClaimRepo(t)
	defer cleanup()

	windowStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	t.Run("正常系: クレームを獲得", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO reconciliation_claims`).
			WithArgs("fan123", windowStart, windowEnd).
			WillReturnResult(sqlmock.NewResult(1, 1))

		claimed, err := repo.Claim(context.Background(), "fan123", windowStart, windowEnd)
		require.NoError(t, err)
		assert.True(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("正常系: 既にクレーム済み", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO reconciliation_claims`).
			WithArgs("fan123", windowStart, windowEnd).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

		claimed, err := repo.Claim(context.Background(), "fan123", windowStart, windowEnd)
		require.NoError(t, err)
		assert.False(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReconciliationClaimRepository_Release(t *testing.T) {
	repo, mock, cleanup := newClaimRepo(t)
	defer cleanup()

	windowStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM reconciliation_claims`).
		WithArgs("fan123", windowStart).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Release(context.Background(), "fan123", windowStart)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciliationClaimRepository_RecordResult(t *testing.T) {
	repo, mock, cleanup := newClaimRepo(t)
	defer cleanup()

	windowStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	t.Run("正常系: 結果を記録", func(t *testing.T) {
		mock.ExpectExec(`UPDATE reconciliation_claims`).
			WithArgs(int64(250), int64(240), "ent_adj_1", "fan123", windowStart).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.RecordResult(context.Background(), "fan123", windowStart, 250, 240, "ent_adj_1")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("異常系: クレームが見つからない", func(t *testing.T) {
		mock.ExpectExec(`UPDATE reconciliation_claims`).
			WithArgs(int64(250), int64(250), nil, "fan123", windowStart).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.RecordResult(context.Background(), "fan123", windowStart, 250, 250, "")
		assert.Equal(t, reconciliation.ErrClaimNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
