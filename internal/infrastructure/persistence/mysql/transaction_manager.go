package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// executor *sql.DBと*sql.Txに共通するクエリ実行インターフェース
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// txFromContext コンテキストからトランザクションを取り出す
func txFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// execerFrom トランザクション内ならそのトランザクション、外ならプールを返す
// 各リポジトリはこれを経由してクエリを実行することでWithTransactionに参加する
func execerFrom(ctx context.Context, db *DB) executor {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}

// TransactionManager ウォレット更新と台帳追記をひとつのトランザクションに束ねる
type TransactionManager struct {
	db *DB
}

// NewTransactionManager 新しいトランザクションマネージャーを作成
func NewTransactionManager(db *DB) *TransactionManager {
	return &TransactionManager{db: db}
}

// WithTransaction fnをトランザクション内で実行する。
// fnに渡すコンテキストにトランザクションを載せ、リポジトリ操作を同一トランザクションで実行させる。
// fnがエラーを返した場合とパニックした場合はロールバックし、正常終了時のみコミットする。
// 既にトランザクション内のコンテキストで呼ばれた場合は外側のトランザクションに参加する
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
