package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"record not found", gorm.ErrRecordNotFound, shared.CodeNotFound},
		{"wrapped record not found", fmt.Errorf("find: %w", gorm.ErrRecordNotFound), shared.CodeNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, shared.CodeDuplicateKey},
		{"deadline", context.DeadlineExceeded, shared.CodeTransientFailure},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, shared.CodeDuplicateKey},
		{"pg serialization failure", &pgconn.PgError{Code: "40001"}, shared.CodeTransientFailure},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, shared.CodeTransientFailure},
		{"pg lock timeout", &pgconn.PgError{Code: "55P03"}, shared.CodeTransientFailure},
		{"pg statement timeout", &pgconn.PgError{Code: "57014"}, shared.CodeTransientFailure},
		{"sqlite busy", errors.New("database is locked"), shared.CodeTransientFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.err)
			assert.True(t, shared.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestTranslateError_PassThrough(t *testing.T) {
	assert.NoError(t, translateError(nil))

	domainErr := shared.NewDomainError(shared.CodeValidationFailed, "bad")
	assert.Same(t, domainErr, translateError(domainErr))

	other := &pgconn.PgError{Code: "23503"}
	assert.Equal(t, other, translateError(other))
}

func TestTranslateError_KeepsCause(t *testing.T) {
	cause := &pgconn.PgError{Code: "23505", ConstraintName: "idx_idempotency_tenant_key"}
	err := translateError(cause)

	assert.ErrorIs(t, err, shared.ErrDuplicateKey)
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "idx_idempotency_tenant_key", pgErr.ConstraintName)
}
