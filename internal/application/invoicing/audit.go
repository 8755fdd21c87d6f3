package invoicing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
)

// AuditRecorder appends audit entries through the transaction's audit
// repository. A snapshot that cannot be serialized, or an entry that cannot
// be written, fails the whole mutation.
type AuditRecorder struct {
	repo invoicing.AuditRepository
}

// NewAuditRecorder creates an AuditRecorder writing to repo
func NewAuditRecorder(repo invoicing.AuditRepository) *AuditRecorder {
	return &AuditRecorder{repo: repo}
}

// Append records one mutation. oldValue and newValue are serialized to JSON;
// pass nil for an absent side.
func (a *AuditRecorder) Append(
	ctx context.Context,
	tenantID uuid.UUID,
	entityType invoicing.AuditEntityType,
	entityID uuid.UUID,
	action invoicing.AuditAction,
	oldValue, newValue any,
) error {
	oldJSON, err := snapshot(oldValue)
	if err != nil {
		return err
	}
	newJSON, err := snapshot(newValue)
	if err != nil {
		return err
	}

	entry := invoicing.NewAuditEntry(tenantID, entityType, entityID, action, oldJSON, newJSON)
	if err := a.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry %s/%s: %w", entityType, action, err)
	}
	return nil
}

func snapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeSerializationFailure, "Failed to serialize audit snapshot", err)
	}
	return data, nil
}
