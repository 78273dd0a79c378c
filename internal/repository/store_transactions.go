package repository

import (
	"context"
	"database/sql"
	"errors"

	repoerrors "actrack/internal/infrastructure/errors"
	"actrack/internal/infrastructure/logging"
)

// WithTransaction executes fn within a database transaction with retry logic.
// The whole transaction is retried on busy or connection failures, so fn must
// be safe to run more than once. Calls made on a repository that is already
// inside a transaction join it instead of opening a new one.
func (r *SQLiteRepository) WithTransaction(ctx context.Context, fn func(repo AggregateStore) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.withTx(ctx, "WithTransaction", func(tx *SQLiteRepository) error { return fn(tx) })
}

func (r *SQLiteRepository) withTx(ctx context.Context, op string, fn func(tx *SQLiteRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	start := r.clock.Now()

	err := repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return r.wrapError(op+".Begin", err, nil)
		}

		var originalErr error
		committed := false
		defer func() {
			if !committed {
				if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
					r.logger.Debug("Failed to rollback transaction",
						"operation", op,
						"rollback_error", rollbackErr,
						"original_error", originalErr)
				}
			}
		}()

		txRepo := &SQLiteRepository{
			db:          r.db,
			q:           tx,
			inTx:        true,
			retryConfig: r.retryConfig,
			clock:       r.clock,
			location:    r.location,
			logger:      r.logger,
		}

		// fn returns repository errors already
		if err := fn(txRepo); err != nil {
			originalErr = err
			r.logger.Debug("Transaction function failed", "operation", op, "error", err)
			return err
		}

		if err := tx.Commit(); err != nil {
			originalErr = err
			return r.wrapError(op+".Commit", err, nil)
		}
		committed = true
		return nil
	}, op)

	if err == nil {
		logging.LogOperation(r.logger, op, r.clock.Since(start), nil)
	}
	return err
}
