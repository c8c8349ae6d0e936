package mysql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"coin-server/internal/domain/wallet"
)

func TestWalletRepository_FindByOwnerID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &WalletRepository{
		db:     &DB{DB: db},
		tracer: otel.Tracer("test"),
	}

	tests := []struct {
		name      string
		ownerID   string
		setupMock func()
		want      *wallet.Wallet
		wantError bool
		errorType error
	}{
		{
			name:    "正常系: ウォレットが見つかる",
			ownerID: "fan123",
			setupMock: func() {
				rows := sqlmock.NewRows([]string{"owner_id", "balance", "version"}).
					AddRow("fan123", 1000, 1)
				mock.ExpectQuery(`SELECT owner_id, balance, version`).
					WithArgs("fan123").
					WillReturnRows(rows)
			},
			want:      wallet.MustNewWallet("fan123", 1000, 1),
			wantError: false,
		},
		{
			name:    "異常系: ウォレットが見つからない",
			ownerID: "fan123",
			setupMock: func() {
				mock.ExpectQuery(`SELECT owner_id, balance, version`).
					WithArgs("fan123").
					WillReturnError(sql.ErrNoRows)
			},
			want:      nil,
			wantError: true,
			errorType: wallet.ErrWalletNotFound,
		},
		{
			name:    "異常系: DBエラー",
			ownerID: "fan123",
			setupMock: func() {
				mock.ExpectQuery(`SELECT owner_id, balance, version`).
					WithArgs("fan123").
					WillReturnError(sql.ErrConnDone)
			},
			want:      nil,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			ctx := context.Background()
			got, err := repo.FindByOwnerID(ctx, tt.ownerID)

			if tt.wantError {
				assert.Error(t, err)
				if tt.errorType != nil {
					assert.Equal(t, tt.errorType, err)
				}
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, got)
				assert.Equal(t, tt.want.OwnerID(), got.OwnerID())
				assert.Equal(t, tt.want.Balance(), got.Balance())
				assert.Equal(t, tt.want.Version(), got.Version())
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWalletRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &WalletRepository{
		db:     &DB{DB: db},
		tracer: otel.Tracer("test"),
	}

	tests := []struct {
		name      string
		wallet    *wallet.Wallet
		setupMock func()
		wantError bool
		errorType error
	}{
		{
			name:   "正常系: ウォレットを保存",
			wallet: wallet.MustNewWallet("fan123", 1000, 1),
			setupMock: func() {
				mock.ExpectExec(`UPDATE wallets`).
					WithArgs(int64(1000), "fan123", 1).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantError: false,
		},
		{
			name:   "異常系: 楽観的ロック失敗（行が更新されない）",
			wallet: wallet.MustNewWallet("fan123", 1000, 1),
			setupMock: func() {
				mock.ExpectExec(`UPDATE wallets`).
					WithArgs(int64(1000), "fan123", 1).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantError: true,
			errorType: wallet.ErrVersionConflict,
		},
		{
			name:   "異常系: DBエラー",
			wallet: wallet.MustNewWallet("fan123", 1000, 1),
			setupMock: func() {
				mock.ExpectExec(`UPDATE wallets`).
					WithArgs(int64(1000), "fan123", 1).
					WillReturnError(sql.ErrConnDone)
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			ctx := context.Background()
			err := repo.Save(ctx, tt.wallet)

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

func TestWalletRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &WalletRepository{
		db:     &DB{DB: db},
		tracer: otel.Tracer("test"),
	}

	tests := []struct {
		name      string
		wallet    *wallet.Wallet
		setupMock func()
		wantError bool
		errorType error
	}{
		{
			name:   "正常系: ウォレットを作成",
			wallet: wallet.MustNewWallet("fan123", 0, 0),
			setupMock: func() {
				mock.ExpectExec(`INSERT INTO wallets`).
					WithArgs("fan123", int64(0), 0).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			wantError: false,
		},
		{
			name:   "異常系: 並行作成との競合（重複キー）",
			wallet: wallet.MustNewWallet("fan123", 0, 0),
			setupMock: func() {
				mock.ExpectExec(`INSERT INTO wallets`).
					WithArgs("fan123", int64(0), 0).
					WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
			},
			wantError: true,
			errorType: wallet.ErrVersionConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			ctx := context.Background()
			err := repo.Create(ctx, tt.wallet)

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
