package database

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// TxManager runs functions inside a database transaction and stows the
// transaction in the context so repositories join it transparently. Nested
// calls reuse the outer transaction.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager constructs a TxManager.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// RunInTx executes fn within a transaction, committing on nil error and
// rolling back otherwise.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	ctx = context.WithValue(ctx, txKey{}, tx)
	if err := fn(ctx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// AdvisoryLock takes a transaction-scoped advisory lock through the manager's
// pool. Call it inside RunInTx.
func (m *TxManager) AdvisoryLock(ctx context.Context, key string) error {
	return AdvisoryLock(ctx, m.db, key)
}

// Ext returns the ambient transaction when one is running, else the pool.
// Repositories issue all statements through it.
func Ext(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// AdvisoryLock takes a transaction-scoped advisory lock derived from key.
// It blocks until the lock is granted and releases on commit/rollback,
// giving single-writer semantics per key.
func AdvisoryLock(ctx context.Context, db *sqlx.DB, key string) error {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	ext := Ext(ctx, db)
	if _, err := ext.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", int64(h.Sum64())); err != nil {
		return fmt.Errorf("advisory lock %s: %w", key, err)
	}
	return nil
}
