package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes the repositories classify
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
)

// translateError maps store errors onto the domain error taxonomy. Domain
// errors pass through unchanged; unclassified errors are returned as is.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.WrapDomainError(shared.CodeDuplicateKey, "Resource already exists", err)
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapDomainError(shared.CodeTransientFailure, "Store operation timed out", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return shared.WrapDomainError(shared.CodeDuplicateKey, "Resource already exists", err)
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled:
			return shared.WrapDomainError(shared.CodeTransientFailure, "Store is temporarily unavailable", err)
		}
	}

	// SQLite reports lock contention only through the message text
	if msg := err.Error(); strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return shared.WrapDomainError(shared.CodeTransientFailure, "Store is temporarily unavailable", err)
	}
	return err
}
