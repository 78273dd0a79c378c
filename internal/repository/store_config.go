package repository

import (
	"context"
	"database/sql"
	"errors"

	repoerrors "actrack/internal/infrastructure/errors"
)

// GetConfig reads a Configuration value. A missing key is a NotFound error.
func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", repoerrors.HandleValidationError("GetConfig", "key", key, "key cannot be empty")
	}

	var value string
	err := repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		err := r.q.QueryRowContext(ctx, "SELECT Value FROM Configuration WHERE Key = ?", key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return repoerrors.HandleNotFound("GetConfig", "configuration", key)
		}
		if err != nil {
			return r.wrapError("GetConfig", err, map[string]string{"key": key})
		}
		return nil
	}, "GetConfig")
	return value, err
}

// SetConfig overwrites a Configuration value.
func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	if key == "" {
		return repoerrors.HandleValidationError("SetConfig", "key", key, "key cannot be empty")
	}

	return r.withTx(ctx, "SetConfig", func(tx *SQLiteRepository) error {
		_, err := tx.q.ExecContext(ctx, `
INSERT INTO Configuration (Key, Value) VALUES (?, ?)
ON CONFLICT(Key) DO UPDATE SET Value = excluded.Value`, key, value)
		if err != nil {
			return tx.wrapError("SetConfig", err, map[string]string{"key": key})
		}
		return nil
	})
}
