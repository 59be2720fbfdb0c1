package postgres

import (
	"context"
	"database/sql"
	"fmt"

	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/jmoiron/sqlx"
)

// TxKey is the context key holding the active *Tx
type TxKey struct{}

var _ IClient = (*DB)(nil)

// Tx is a top-level transaction. Nested WithTx calls open savepoints on it.
type Tx struct {
	*sqlx.Tx
	depth int
	ID    string
}

func GetTx(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(TxKey{}).(*Tx)
	return tx, ok
}

func (tx *Tx) savepoint() string {
	return fmt.Sprintf("sp_%d", tx.depth)
}

// execSavepoint runs one savepoint statement for the current depth
func (db *DB) execSavepoint(ctx context.Context, tx *Tx, stmt string) error {
	name := tx.savepoint()
	db.logger.Debugw("savepoint", "tx_id", tx.ID, "stmt", stmt, "savepoint", name)
	if _, err := tx.ExecContext(ctx, stmt+" "+name); err != nil {
		return fmt.Errorf("%s %s: %w", stmt, name, err)
	}
	return nil
}

// BeginTx joins the transaction already in ctx through a savepoint or opens a new one
func (db *DB) BeginTx(ctx context.Context) (context.Context, *Tx, error) {
	if tx, ok := GetTx(ctx); ok {
		tx.depth++
		if err := db.execSavepoint(ctx, tx, "SAVEPOINT"); err != nil {
			tx.depth--
			return ctx, nil, err
		}
		return ctx, tx, nil
	}

	sqlxTx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}

	tx := &Tx{Tx: sqlxTx, ID: types.GenerateUUID()}
	db.logger.Debugw("transaction started", "tx_id", tx.ID)

	ctx = context.WithValue(ctx, types.CtxDBTransaction, tx.ID)
	return context.WithValue(ctx, TxKey{}, tx), tx, nil
}

// CommitTx releases the innermost savepoint, or commits when none is open
func (db *DB) CommitTx(ctx context.Context) error {
	tx, ok := GetTx(ctx)
	if !ok {
		return fmt.Errorf("no transaction in context")
	}
	if tx.depth > 0 {
		defer func() { tx.depth-- }()
		return db.execSavepoint(ctx, tx, "RELEASE SAVEPOINT")
	}

	db.logger.Debugw("committing transaction", "tx_id", tx.ID)
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RollbackTx undoes the innermost savepoint, or the whole transaction when none is open
func (db *DB) RollbackTx(ctx context.Context) error {
	tx, ok := GetTx(ctx)
	if !ok {
		return fmt.Errorf("no transaction in context")
	}
	if tx.depth > 0 {
		defer func() { tx.depth-- }()
		return db.execSavepoint(ctx, tx, "ROLLBACK TO SAVEPOINT")
	}

	db.logger.Debugw("rolling back transaction", "tx_id", tx.ID)
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction. Errors from fn come back unchanged after
// rollback so sentinel marks survive.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, tx, err := db.BeginTx(ctx)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Could not start a database transaction").
			Mark(ierr.ErrDatabase)
	}

	defer func() {
		if r := recover(); r != nil {
			db.logger.Errorw("panic in transaction", "tx_id", tx.ID, "panic", r)
			_ = db.RollbackTx(ctx)
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		db.logger.Debugw("transaction failed, rolling back", "tx_id", tx.ID, "error", err)
		if rbErr := db.RollbackTx(ctx); rbErr != nil {
			return ierr.WithError(err).
				WithMessage(fmt.Sprintf("rollback failed: %v", rbErr)).
				Mark(ierr.ErrDatabase)
		}
		return err
	}

	if err := db.CommitTx(ctx); err != nil {
		return ierr.WithError(err).
			WithHint("Could not commit the database transaction").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
