package repository

import (
	"context"

	"actrack/internal/types"
)

// AggregateStore persists per-day activity counters. Seconds only ever grow
// through additive merges, and every write runs inside a transaction.
type AggregateStore interface {
	// Entity dedup
	ResolveOrCreateEntity(ctx context.Context, kind types.EntityKind, name string) (int64, error)

	// Additive writes
	MergeSeconds(ctx context.Context, key types.AggregateKey, delta int64) error
	MergeBatch(ctx context.Context, kind types.EntityKind, credits []types.Credit) error
	RecordActivity(ctx context.Context, appName, domainName string, seconds int64, date string) error

	// Reports, ordered by seconds descending then name ascending
	QueryToday(ctx context.Context, kind types.EntityKind) ([]types.ActivityTotal, error)
	QueryDay(ctx context.Context, kind types.EntityKind, date string) ([]types.ActivityTotal, error)
	QueryRange(ctx context.Context, kind types.EntityKind, from, to string) ([]types.ActivityTotal, error)

	// Retention
	Cleanup(ctx context.Context, retentionDays int) (int64, error)

	// Key/value settings
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Transaction support
	WithTransaction(ctx context.Context, fn func(repo AggregateStore) error) error
}
