package repository

import (
	"context"

	"actrack/internal/types"
)

// ResolveOrCreateEntity returns the dedup id for name, inserting it first if
// it has never been seen. Names are matched exactly.
func (r *SQLiteRepository) ResolveOrCreateEntity(ctx context.Context, kind types.EntityKind, name string) (int64, error) {
	if err := validateKind("ResolveOrCreateEntity", kind); err != nil {
		return 0, err
	}
	if err := validateName("ResolveOrCreateEntity", name); err != nil {
		return 0, err
	}

	var id int64
	err := r.withTx(ctx, "ResolveOrCreateEntity", func(tx *SQLiteRepository) error {
		var err error
		id, err = tx.resolveEntity(ctx, kind, name)
		return err
	})
	return id, err
}

// resolveEntity must run inside a transaction so the insert and the lookup
// see the same snapshot.
func (r *SQLiteRepository) resolveEntity(ctx context.Context, kind types.EntityKind, name string) (int64, error) {
	table, _, err := entityTable(kind)
	if err != nil {
		return 0, err
	}
	errCtx := map[string]string{"kind": kind.String(), "name": name}

	if _, err := r.q.ExecContext(ctx,
		"INSERT INTO "+table+" (Name) VALUES (?) ON CONFLICT(Name) DO NOTHING", name); err != nil {
		return 0, r.wrapError("ResolveOrCreateEntity.Insert", err, errCtx)
	}

	var id int64
	if err := r.q.QueryRowContext(ctx, "SELECT Id FROM "+table+" WHERE Name = ?", name).Scan(&id); err != nil {
		return 0, r.wrapError("ResolveOrCreateEntity.Select", err, errCtx)
	}
	return id, nil
}
