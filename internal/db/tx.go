package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/logger"

	"go.uber.org/zap"
)

var (
	Serializable  = &sql.TxOptions{Isolation: sql.LevelSerializable}
	ReadCommitted = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
)

// WithTx runs fn inside a transaction. The transaction is rolled back when
// fn returns an error or panics, and committed otherwise. Serialization
// failures and deadlocks surface as apperr conflicts so callers can retry.
func WithTx(ctx context.Context, conn *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) (err error) {
	log := logger.FromCtx(ctx)

	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	if err = fn(tx); err != nil {
		return classify(err)
	}

	if err = tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	committed = true
	return nil
}

func classify(err error) error {
	if IsSerializationFailure(err) {
		return apperr.Wrap(apperr.KindConflict, "concurrent update, retry the operation", err)
	}
	return err
}
