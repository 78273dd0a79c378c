package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	repoerrors "actrack/internal/infrastructure/errors"
	"actrack/internal/types"
)

const mergeSQL = `
INSERT INTO DailyAggregate (Date, AppId, DomainId, Seconds)
VALUES (?, ?, ?, ?)
ON CONFLICT(Date, AppId, DomainId) DO UPDATE SET Seconds = Seconds + excluded.Seconds`

// MergeSeconds adds delta to the row for key, creating it if absent.
// A zero delta is a no-op and a negative one is rejected.
func (r *SQLiteRepository) MergeSeconds(ctx context.Context, key types.AggregateKey, delta int64) error {
	if err := validateDate("MergeSeconds", key.Date); err != nil {
		return err
	}
	if err := validateKind("MergeSeconds", key.Kind); err != nil {
		return err
	}
	if delta < 0 {
		return repoerrors.HandleValidationError("MergeSeconds", "delta", strconv.FormatInt(delta, 10), "delta cannot be negative")
	}
	if delta == 0 {
		return nil
	}

	return r.withTx(ctx, "MergeSeconds", func(tx *SQLiteRepository) error {
		return tx.merge(ctx, key, delta)
	})
}

func (r *SQLiteRepository) merge(ctx context.Context, key types.AggregateKey, delta int64) error {
	appID, domainID, err := keyColumns(key)
	if err != nil {
		return err
	}
	if _, err := r.q.ExecContext(ctx, mergeSQL, key.Date, appID, domainID, delta); err != nil {
		return r.wrapError("MergeSeconds", err, map[string]string{
			"date":  key.Date,
			"kind":  key.Kind.String(),
			"id":    strconv.FormatInt(key.EntityID, 10),
			"delta": strconv.FormatInt(delta, 10),
		})
	}
	return nil
}

// MergeBatch resolves and merges every credit in one transaction: either all
// of them land or none do. Credits are applied in (date, name) order.
func (r *SQLiteRepository) MergeBatch(ctx context.Context, kind types.EntityKind, credits []types.Credit) error {
	if err := validateKind("MergeBatch", kind); err != nil {
		return err
	}

	pending := make([]types.Credit, 0, len(credits))
	for _, c := range credits {
		if err := validateDate("MergeBatch", c.Date); err != nil {
			return err
		}
		if err := validateName("MergeBatch", c.Name); err != nil {
			return err
		}
		if c.Seconds < 0 {
			return repoerrors.HandleValidationError("MergeBatch", "seconds", strconv.FormatInt(c.Seconds, 10), "seconds cannot be negative")
		}
		if c.Seconds > 0 {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	slices.SortFunc(pending, func(a, b types.Credit) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.Name, b.Name))
	})

	err := r.withTx(ctx, "MergeBatch", func(tx *SQLiteRepository) error {
		ids := make(map[string]int64, len(pending))
		for i, c := range pending {
			id, ok := ids[c.Name]
			if !ok {
				var err error
				if id, err = tx.resolveEntity(ctx, kind, c.Name); err != nil {
					return err
				}
				ids[c.Name] = id
			}
			key := types.AggregateKey{Date: c.Date, Kind: kind, EntityID: id}
			if err := tx.merge(ctx, key, c.Seconds); err != nil {
				return fmt.Errorf("credit %d of %d (%s): %w", i+1, len(pending), c.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return repoerrors.WrapDatabaseErrorWithContext("MergeBatch", err, map[string]string{
			"kind":    kind.String(),
			"entries": strconv.Itoa(len(pending)),
		})
	}
	return nil
}

// RecordActivity credits seconds to an application, a domain, or both on
// date (today when empty). Each named side gets its own row, written in a
// single transaction. Non-positive seconds are ignored.
func (r *SQLiteRepository) RecordActivity(ctx context.Context, appName, domainName string, seconds int64, date string) error {
	if seconds <= 0 {
		return nil
	}
	if appName == "" && domainName == "" {
		return repoerrors.HandleValidationError("RecordActivity", "name", "", "an application or a domain is required")
	}
	if date == "" {
		date = r.Today()
	}
	if err := validateDate("RecordActivity", date); err != nil {
		return err
	}

	sides := []struct {
		kind types.EntityKind
		name string
	}{
		{types.EntityApplication, appName},
		{types.EntityDomain, domainName},
	}
	for _, s := range sides {
		if s.name == "" {
			continue
		}
		if err := validateName("RecordActivity", s.name); err != nil {
			return err
		}
	}

	return r.withTx(ctx, "RecordActivity", func(tx *SQLiteRepository) error {
		for _, s := range sides {
			if s.name == "" {
				continue
			}
			id, err := tx.resolveEntity(ctx, s.kind, s.name)
			if err != nil {
				return err
			}
			if err := tx.merge(ctx, types.AggregateKey{Date: date, Kind: s.kind, EntityID: id}, seconds); err != nil {
				return err
			}
		}
		return nil
	})
}
