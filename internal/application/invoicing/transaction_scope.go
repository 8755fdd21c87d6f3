package invoicing

import (
	"context"

	"github.com/invoicing/backend/internal/domain/invoicing"
)

// TransactionScope provides transactional access to the invoicing repositories.
// All repository operations performed inside Execute are committed or rolled
// back together: the invoice row, its line items, the payment or refund fact,
// the idempotency record and the audit entries.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all invoicing repositories
// sharing one underlying database transaction.
type TransactionalRepositories interface {
	Invoices() invoicing.InvoiceRepository
	Payments() invoicing.PaymentRepository
	Refunds() invoicing.RefundRepository
	Idempotency() invoicing.IdempotencyRepository
	Audit() invoicing.AuditRepository
}

// NoOpTransactionScope runs fn against fixed repositories without a real
// transaction. It is used by unit tests.
type NoOpTransactionScope struct {
	invoiceRepo     invoicing.InvoiceRepository
	paymentRepo     invoicing.PaymentRepository
	refundRepo      invoicing.RefundRepository
	idempotencyRepo invoicing.IdempotencyRepository
	auditRepo       invoicing.AuditRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	invoiceRepo invoicing.InvoiceRepository,
	paymentRepo invoicing.PaymentRepository,
	refundRepo invoicing.RefundRepository,
	idempotencyRepo invoicing.IdempotencyRepository,
	auditRepo invoicing.AuditRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo:     invoiceRepo,
		paymentRepo:     paymentRepo,
		refundRepo:      refundRepo,
		idempotencyRepo: idempotencyRepo,
		auditRepo:       auditRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Invoices returns the invoice repository.
func (s *NoOpTransactionScope) Invoices() invoicing.InvoiceRepository { return s.invoiceRepo }

// Payments returns the payment repository.
func (s *NoOpTransactionScope) Payments() invoicing.PaymentRepository { return s.paymentRepo }

// Refunds returns the refund repository.
func (s *NoOpTransactionScope) Refunds() invoicing.RefundRepository { return s.refundRepo }

// Idempotency returns the idempotency ledger repository.
func (s *NoOpTransactionScope) Idempotency() invoicing.IdempotencyRepository {
	return s.idempotencyRepo
}

// Audit returns the audit repository.
func (s *NoOpTransactionScope) Audit() invoicing.AuditRepository { return s.auditRepo }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
