package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/siherrmann/directory/helper"
	"github.com/siherrmann/directory/model"
)

// DBTX is the subset of *sql.DB and *sql.Tx the handlers need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// RunInTx runs fn in a single transaction and commits when fn succeeds.
// Any error rolls the transaction back and is classified with Classify.
// op names the operation in storage errors, e.g. "create entity".
func RunInTx(ctx context.Context, db *helper.Database, op string, readOnly bool, fn func(tx DBTX) error) error {
	if db == nil || db.Instance == nil {
		return model.NewStorageError(op, model.StorageConnection, errors.New("database connection is nil"))
	}

	tx, err := db.Instance.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return model.NewStorageError(op, beginErrorKind(ctx, err), helper.NewError("begin transaction", err))
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.Logger.Error("Rollback failed", slog.String("operation", op), slog.String("error", rbErr.Error()))
		}
		return Classify(op, err)
	}

	if err := tx.Commit(); err != nil {
		return model.NewStorageError(op, model.StorageTransaction, helper.NewError("commit transaction", err))
	}

	return nil
}
