package repository

import (
	"context"
	"strconv"

	repoerrors "actrack/internal/infrastructure/errors"
	"actrack/internal/types"
)

// Cleanup deletes every aggregate row dated before today minus retentionDays
// and returns how many rows went. Entity names are never deleted.
func (r *SQLiteRepository) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 0 {
		return 0, repoerrors.HandleValidationError("Cleanup", "retentionDays", strconv.Itoa(retentionDays), "cannot be negative")
	}

	now := r.clock.Now().In(r.location)
	cutoff := types.DayOf(types.StartOfDay(now).AddDate(0, 0, -retentionDays))

	var deleted int64
	err := r.withTx(ctx, "Cleanup", func(tx *SQLiteRepository) error {
		res, err := tx.q.ExecContext(ctx, "DELETE FROM DailyAggregate WHERE Date < ?", cutoff)
		if err != nil {
			return tx.wrapError("Cleanup", err, map[string]string{"cutoff": cutoff})
		}
		deleted, err = res.RowsAffected()
		if err != nil {
			return tx.wrapError("Cleanup.RowsAffected", err, nil)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("Retention cleanup completed",
		"cutoff", cutoff,
		"retention_days", retentionDays,
		"deleted_rows", deleted)
	return deleted, nil
}
