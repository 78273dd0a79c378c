package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"actrack/internal/database"
	repoerrors "actrack/internal/infrastructure/errors"
	"actrack/internal/infrastructure/logging"
	"actrack/internal/types"
)

const (
	sentinelID   = database.SentinelID
	sentinelName = database.SentinelName
)

// entityTable returns the dedup table and the DailyAggregate column for kind.
func entityTable(kind types.EntityKind) (table, column string, err error) {
	switch kind {
	case types.EntityApplication:
		return "Applications", "AppId", nil
	case types.EntityDomain:
		return "Domains", "DomainId", nil
	default:
		return "", "", fmt.Errorf("unknown entity kind %d", int(kind))
	}
}

// keyColumns maps a tagged key onto the (AppId, DomainId) pair stored on disk.
func keyColumns(key types.AggregateKey) (appID, domainID int64, err error) {
	switch key.Kind {
	case types.EntityApplication:
		return key.EntityID, sentinelID, nil
	case types.EntityDomain:
		return sentinelID, key.EntityID, nil
	default:
		return 0, 0, fmt.Errorf("unknown entity kind %d", int(key.Kind))
	}
}

func validateDate(op, date string) error {
	if _, err := time.Parse(types.DateLayout, date); err != nil {
		return repoerrors.HandleValidationError(op, "date", date, "expected YYYY-MM-DD")
	}
	return nil
}

func validateKind(op string, kind types.EntityKind) error {
	if !kind.Valid() {
		return repoerrors.HandleValidationError(op, "kind", kind.String(), "unknown entity kind")
	}
	return nil
}

func validateName(op, name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return repoerrors.HandleValidationError(op, "name", name, "name cannot be empty")
	case name == sentinelName:
		return repoerrors.HandleValidationError(op, "name", name, "name is reserved")
	}
	return nil
}

// classifyError classifies database errors into repository error codes
func (r *SQLiteRepository) classifyError(err error) repoerrors.ErrorCode {
	return repoerrors.ClassifyError(err)
}

// wrapError classifies err and logs it: retryable failures at debug since
// the caller will try again, everything else through LogError.
// Errors that are already classified pass through untouched.
func (r *SQLiteRepository) wrapError(op string, err error, context map[string]string) error {
	var existing *repoerrors.RepositoryError
	if errors.As(err, &existing) {
		return err
	}

	repoErr := repoerrors.NewRepositoryErrorWithContext(op, err, r.classifyError(err), context)
	if repoErr.IsRetryable() {
		r.logger.Debug("Retryable error in "+op, "error", err)
	} else {
		logging.LogError(r.logger, repoErr, op, nil)
	}
	return repoErr
}
