package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coin-server/internal/domain/wallet"
)

// WalletRepository MySQL実装のWalletRepository
type WalletRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewWalletRepository 新しいWalletRepositoryを作成
func NewWalletRepository(db *DB) *WalletRepository {
	return &WalletRepository{
		db:     db,
		tracer: otel.Tracer("wallet-repository"),
	}
}

// FindByOwnerID 所有者IDでウォレットを取得
func (r *WalletRepository) FindByOwnerID(ctx context.Context, ownerID string) (*wallet.Wallet, error) {
	ctx, span := r.tracer.Start(ctx, "WalletRepository.FindByOwnerID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.owner_id", ownerID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "wallets"),
	)

	query := `
		SELECT owner_id, balance, version
		FROM wallets
		WHERE owner_id = ?
	`

	var dbOwnerID string
	var balance int64
	var version int

	err := execerFrom(ctx, r.db).QueryRowContext(ctx, query, ownerID).Scan(
		&dbOwnerID,
		&balance,
		&version,
	)

	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "wallet not found")
		return nil, wallet.ErrWalletNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find wallet: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("db.balance", balance),
		attribute.Int("db.version", version),
	)
	span.SetStatus(otelcodes.Ok, "wallet found")

	w, err := wallet.NewWallet(dbOwnerID, balance, version)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct wallet entity: %w", err)
	}

	return w, nil
}

// Save ウォレットを保存（更新、楽観的ロック対応）
func (r *WalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	ctx, span := r.tracer.Start(ctx, "WalletRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.owner_id", w.OwnerID()),
		attribute.Int64("db.balance", w.Balance()),
		attribute.Int("db.version", w.Version()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "wallets"),
	)

	query := `
		UPDATE wallets
		SET balance = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = ? AND version = ?
	`

	result, err := execerFrom(ctx, r.db).ExecContext(ctx, query,
		w.Balance(),
		w.OwnerID(),
		w.Version(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save wallet: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		span.RecordError(wallet.ErrVersionConflict)
		span.SetStatus(otelcodes.Error, wallet.ErrVersionConflict.Error())
		return wallet.ErrVersionConflict
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	span.SetStatus(otelcodes.Ok, "wallet saved")
	return nil
}

// Create 新しいウォレットを作成
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	ctx, span := r.tracer.Start(ctx, "WalletRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.owner_id", w.OwnerID()),
		attribute.Int64("db.balance", w.Balance()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "wallets"),
	)

	query := `
		INSERT INTO wallets (owner_id, balance, version)
		VALUES (?, ?, ?)
	`

	_, err := execerFrom(ctx, r.db).ExecContext(ctx, query,
		w.OwnerID(),
		w.Balance(),
		w.Version(),
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			// 並行作成との競合。既存行を前提に呼び出し側がリトライする
			span.SetStatus(otelcodes.Ok, "wallet already exists")
			return wallet.ErrVersionConflict
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "wallet created")
	return nil
}
