package invoicing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ReplayCache is an optional read-through cache in front of the idempotency
// table. The table stays authoritative; the cache only saves a transaction
// for retries of requests that already completed.
type ReplayCache interface {
	// Get returns the cached record, or nil when absent
	Get(ctx context.Context, tenantID uuid.UUID, key string) (*invoicing.IdempotencyRecord, error)
	Put(ctx context.Context, record *invoicing.IdempotencyRecord) error
}

// errLedgerRace marks an idempotency insert that lost the uniqueness race to
// a concurrent request carrying the same key.
var errLedgerRace = errors.New("idempotency key committed by a concurrent request")

// IdempotencyLedger deduplicates mutating requests per (tenant, key).
//
// A request first looks its key up; on a miss it performs the mutation and
// inserts the ledger record in the same transaction. The unique index on
// (tenant_id, idempotency_key) decides races between processes: the loser's
// transaction rolls back and the request is answered from the winner's record.
type IdempotencyLedger struct {
	repo   invoicing.IdempotencyRepository
	cache  ReplayCache
	logger *zap.Logger
}

// NewIdempotencyLedger creates a ledger. repo is used outside transactions to
// resolve lost races; cache may be nil.
func NewIdempotencyLedger(repo invoicing.IdempotencyRepository, cache ReplayCache, logger *zap.Logger) *IdempotencyLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyLedger{repo: repo, cache: cache, logger: logger}
}

// Fingerprint hashes the parts of a request that must match for a key to be
// replayed.
func Fingerprint(op invoicing.IdempotentOperation, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(op))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cached consults the replay cache. Cache failures are logged and treated as a miss.
func (l *IdempotencyLedger) Cached(ctx context.Context, tenantID uuid.UUID, key string, op invoicing.IdempotentOperation, fingerprint string) (*invoicing.IdempotencyRecord, error) {
	if l.cache == nil {
		return nil, nil
	}
	rec, err := l.cache.Get(ctx, tenantID, key)
	if err != nil {
		l.logger.Warn("Idempotency cache lookup failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return nil, nil
	}
	if rec == nil {
		return nil, nil
	}
	if err := rec.CheckReplay(op, fingerprint); err != nil {
		return nil, err
	}
	return rec, nil
}

// CheckOrReserve looks (tenant, key) up through the transaction's repository.
// It returns the stored record on a hit and nil on a miss; the reservation
// itself is the insert performed by Commit.
func (l *IdempotencyLedger) CheckOrReserve(ctx context.Context, repo invoicing.IdempotencyRepository, tenantID uuid.UUID, key string, op invoicing.IdempotentOperation, fingerprint string) (*invoicing.IdempotencyRecord, error) {
	rec, err := repo.Find(ctx, tenantID, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := rec.CheckReplay(op, fingerprint); err != nil {
		return nil, err
	}
	return rec, nil
}

// Commit inserts the record through the transaction's repository. Losing the
// uniqueness race yields errLedgerRace, which the caller resolves with Resolve
// once the transaction has rolled back.
func (l *IdempotencyLedger) Commit(ctx context.Context, repo invoicing.IdempotencyRepository, record *invoicing.IdempotencyRecord) error {
	if err := repo.Create(ctx, record); err != nil {
		if errors.Is(err, shared.ErrDuplicateKey) {
			return errors.Join(errLedgerRace, err)
		}
		return err
	}
	return nil
}

// Resolve re-reads the record committed by the request that won the race.
func (l *IdempotencyLedger) Resolve(ctx context.Context, tenantID uuid.UUID, key string, op invoicing.IdempotentOperation, fingerprint string) (*invoicing.IdempotencyRecord, error) {
	rec, err := l.CheckOrReserve(ctx, l.repo, tenantID, key, op, fingerprint)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, shared.NewDomainError(shared.CodeDuplicateKey, "Idempotency key is held by a request that did not complete")
	}
	return rec, nil
}

// Remember stores a committed record in the replay cache
func (l *IdempotencyLedger) Remember(ctx context.Context, record *invoicing.IdempotencyRecord) {
	if l.cache == nil || record == nil {
		return
	}
	if err := l.cache.Put(ctx, record); err != nil {
		l.logger.Warn("Idempotency cache store failed",
			zap.String("tenant_id", record.TenantID.String()),
			zap.Error(err),
		)
	}
}

func isLedgerRace(err error) bool {
	return errors.Is(err, errLedgerRace)
}

func fingerprintParts(target uuid.UUID, parts ...string) []string {
	out := make([]string, 0, len(parts)+1)
	out = append(out, target.String())
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
