package invoicing

import (
	"context"

	"github.com/invoicing/backend/internal/domain/invoicing"
)

// LedgerObserver receives ledger outcomes that do not surface as domain
// events: idempotent replays and retried transactions.
type LedgerObserver interface {
	RecordReplay(ctx context.Context, op invoicing.IdempotentOperation)
	RecordRetry(ctx context.Context, op string, err error)
}

type noopObserver struct{}

func (noopObserver) RecordReplay(context.Context, invoicing.IdempotentOperation) {}

func (noopObserver) RecordRetry(context.Context, string, error) {}
