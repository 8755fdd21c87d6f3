package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	Status     *InvoiceStatus
	CustomerID *uuid.UUID
	Search     string
}

// InvoiceRepository defines the interface for invoice persistence.
// Every lookup is tenant scoped; a row owned by another tenant yields
// shared.ErrNotFound.
type InvoiceRepository interface {
	// FindByIDForTenant loads an invoice with its line items
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate loads an invoice with its line items and holds an
	// exclusive row lock until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindAllForTenant lists invoices (without line items) and the total match count
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, int64, error)

	// FindOverdueCandidates returns IDs of invoices across all tenants whose
	// status allows the overdue transition and whose due date is before asOf
	FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]InvoiceRef, error)

	// ExistsByNumber checks if an invoice number is taken within the tenant
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error)

	// Create inserts a new invoice together with its line items
	Create(ctx context.Context, invoice *Invoice) error

	// Save updates the invoice header guarded by its version (Version-1 must
	// still be stored). Returns shared.ErrConcurrencyConflict on mismatch.
	Save(ctx context.Context, invoice *Invoice) error

	// SaveLineItems replaces the stored line items with invoice.Items
	SaveLineItems(ctx context.Context, invoice *Invoice) error
}

// InvoiceRef identifies an invoice across tenants
type InvoiceRef struct {
	TenantID  uuid.UUID
	InvoiceID uuid.UUID
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindByIDForUpdate loads the payment and locks its row so concurrent
	// refunds of the same payment serialize
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindByInvoice lists payments of an invoice, oldest first
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Payment, error)

	// ExistsByReference checks if a payment reference is taken within the tenant
	ExistsByReference(ctx context.Context, tenantID uuid.UUID, reference string) (bool, error)

	// Create inserts a payment. A duplicate reference yields shared.ErrDuplicateKey.
	Create(ctx context.Context, payment *Payment) error
}

// RefundRepository defines the interface for refund persistence
type RefundRepository interface {
	// SumByPayment returns the total refunded against a payment
	SumByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (decimal.Decimal, error)

	// SumByPayments returns refunded totals keyed by payment ID
	SumByPayments(ctx context.Context, tenantID uuid.UUID, paymentIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)

	// FindByPayment lists refunds of a payment, oldest first
	FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]Refund, error)

	Create(ctx context.Context, refund *Refund) error
}

// IdempotencyRepository is the persisted idempotency ledger
type IdempotencyRepository interface {
	// Find returns the record for (tenant, key) or shared.ErrNotFound
	Find(ctx context.Context, tenantID uuid.UUID, key string) (*IdempotencyRecord, error)

	// Create inserts a record. A concurrent insert of the same (tenant, key)
	// yields shared.ErrDuplicateKey.
	Create(ctx context.Context, record *IdempotencyRecord) error
}

// AuditRepository is the append-only audit sink
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error

	// FindByEntity lists entries for an entity, oldest first
	FindByEntity(ctx context.Context, tenantID uuid.UUID, entityType AuditEntityType, entityID uuid.UUID) ([]AuditEntry, error)
}
