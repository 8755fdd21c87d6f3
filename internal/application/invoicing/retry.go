package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/invoicing/backend/internal/domain/shared"
)

// RetryPolicy controls how a conflicting or transiently failing transaction
// is re-run. Each attempt is a fresh transaction, so a retry never observes
// partial state from the failed one.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the default retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// IsRetryable reports whether err may succeed when the transaction is re-run
func IsRetryable(err error) bool {
	return shared.HasCode(err, shared.CodeConcurrencyConflict) || shared.HasCode(err, shared.CodeTransientFailure)
}

// Run executes op until it succeeds, fails permanently, or the attempts are
// exhausted. A conflict still present after the last attempt is reported as
// a TransientFailure so the caller can retry with the same idempotency key.
func (p RetryPolicy) Run(ctx context.Context, op func(attempt int) error, onRetry func(err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op(attempt)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, _ time.Duration) {
		if onRetry != nil {
			onRetry(err)
		}
	})

	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.WrapDomainError(shared.CodeTransientFailure, "Request deadline exceeded before commit", err)
	}
	if shared.HasCode(err, shared.CodeConcurrencyConflict) {
		return shared.WrapDomainError(shared.CodeTransientFailure, "Invoice is under concurrent modification, retry the request", err)
	}
	return err
}
