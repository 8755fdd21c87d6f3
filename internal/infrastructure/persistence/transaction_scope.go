package persistence

import (
	"context"

	appinv "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository handed to fn shares the same transaction, so the invoice
// row lock, the new payment or refund, the ledger record and the audit entries
// commit or roll back together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// A context cancelled before commit also rolls back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
	return translateError(err)
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Invoices returns the invoice repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Invoices() invoicing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// Payments returns the payment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Payments() invoicing.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

// Refunds returns the refund repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Refunds() invoicing.RefundRepository {
	return NewGormRefundRepository(r.tx)
}

// Idempotency returns the idempotency ledger repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Idempotency() invoicing.IdempotencyRepository {
	return NewGormIdempotencyRepository(r.tx)
}

// Audit returns the audit repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Audit() invoicing.AuditRepository {
	return NewGormAuditRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appinv.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
