package repository

import (
	"context"
	"fmt"

	repoerrors "actrack/internal/infrastructure/errors"
	"actrack/internal/types"
)

// QueryToday returns today's totals for kind.
func (r *SQLiteRepository) QueryToday(ctx context.Context, kind types.EntityKind) ([]types.ActivityTotal, error) {
	return r.QueryDay(ctx, kind, r.Today())
}

// QueryDay returns the totals for kind on a single day.
func (r *SQLiteRepository) QueryDay(ctx context.Context, kind types.EntityKind, date string) ([]types.ActivityTotal, error) {
	return r.QueryRange(ctx, kind, date, date)
}

// QueryRange sums seconds per entity over the inclusive range [from, to],
// ordered by total descending and name ascending. The sentinel is never
// returned.
func (r *SQLiteRepository) QueryRange(ctx context.Context, kind types.EntityKind, from, to string) ([]types.ActivityTotal, error) {
	if err := validateKind("QueryRange", kind); err != nil {
		return nil, err
	}
	if err := validateDate("QueryRange", from); err != nil {
		return nil, err
	}
	if err := validateDate("QueryRange", to); err != nil {
		return nil, err
	}
	if from > to {
		return nil, repoerrors.HandleValidationError("QueryRange", "range", from+".."+to, "from is after to")
	}

	table, column, err := entityTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT e.Name, SUM(a.Seconds) AS Total
FROM DailyAggregate a
JOIN %[1]s e ON a.%[2]s = e.Id
WHERE a.Date BETWEEN ? AND ? AND a.%[2]s <> ?
GROUP BY e.Id, e.Name
ORDER BY Total DESC, e.Name ASC`, table, column)

	var totals []types.ActivityTotal
	err = repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		totals = totals[:0]
		rows, err := r.q.QueryContext(ctx, query, from, to, sentinelID)
		if err != nil {
			return r.wrapError("QueryRange", err, map[string]string{"kind": kind.String(), "from": from, "to": to})
		}
		defer rows.Close()

		for rows.Next() {
			var t types.ActivityTotal
			if err := rows.Scan(&t.Name, &t.Seconds); err != nil {
				return r.wrapError("QueryRange.Scan", err, nil)
			}
			totals = append(totals, t)
		}
		if err := rows.Err(); err != nil {
			return r.wrapError("QueryRange.Rows", err, nil)
		}
		return nil
	}, "QueryRange")
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = []types.ActivityTotal{}
	}
	return totals, nil
}
