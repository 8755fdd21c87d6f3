package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories
// =============================================================================

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Error(1)
	case func(context.Context, uuid.UUID, uuid.UUID) *invoicing.Invoice:
		return v(ctx, tenantID, id), args.Error(1)
	default:
		return v.(*invoicing.Invoice), args.Error(1)
	}
}

func (m *MockInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]invoicing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]invoicing.InvoiceRef, error) {
	args := m.Called(ctx, asOf, limit)
	return args.Get(0).([]invoicing.InvoiceRef), args.Error(1)
}

func (m *MockInvoiceRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error) {
	args := m.Called(ctx, tenantID, invoiceNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, inv *invoicing.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *MockInvoiceRepository) SaveLineItems(ctx context.Context, inv *invoicing.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Payment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Payment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]invoicing.Payment, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ExistsByReference(ctx context.Context, tenantID uuid.UUID, reference string) (bool, error) {
	args := m.Called(ctx, tenantID, reference)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *invoicing.Payment) error {
	return m.Called(ctx, payment).Error(0)
}

type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) SumByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, paymentID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRefundRepository) SumByPayments(ctx context.Context, tenantID uuid.UUID, paymentIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, paymentIDs)
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

func (m *MockRefundRepository) FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]invoicing.Refund, error) {
	args := m.Called(ctx, tenantID, paymentID)
	return args.Get(0).([]invoicing.Refund), args.Error(1)
}

func (m *MockRefundRepository) Create(ctx context.Context, refund *invoicing.Refund) error {
	return m.Called(ctx, refund).Error(0)
}

type MockIdempotencyRepository struct {
	mock.Mock
}

func (m *MockIdempotencyRepository) Find(ctx context.Context, tenantID uuid.UUID, key string) (*invoicing.IdempotencyRecord, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.IdempotencyRecord), args.Error(1)
}

func (m *MockIdempotencyRepository) Create(ctx context.Context, record *invoicing.IdempotencyRecord) error {
	return m.Called(ctx, record).Error(0)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *invoicing.AuditEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockAuditRepository) FindByEntity(ctx context.Context, tenantID uuid.UUID, entityType invoicing.AuditEntityType, entityID uuid.UUID) ([]invoicing.AuditEntry, error) {
	args := m.Called(ctx, tenantID, entityType, entityID)
	return args.Get(0).([]invoicing.AuditEntry), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	return m.Called(ctx, events).Error(0)
}

type MockLedgerObserver struct {
	mock.Mock
}

func (m *MockLedgerObserver) RecordReplay(ctx context.Context, op invoicing.IdempotentOperation) {
	m.Called(ctx, op)
}

func (m *MockLedgerObserver) RecordRetry(ctx context.Context, op string, err error) {
	m.Called(ctx, op, err)
}

// =============================================================================
// Fixtures
// =============================================================================

type testRepos struct {
	invoices    *MockInvoiceRepository
	payments    *MockPaymentRepository
	refunds     *MockRefundRepository
	idempotency *MockIdempotencyRepository
	audit       *MockAuditRepository
}

func newTestRepos() *testRepos {
	return &testRepos{
		invoices:    new(MockInvoiceRepository),
		payments:    new(MockPaymentRepository),
		refunds:     new(MockRefundRepository),
		idempotency: new(MockIdempotencyRepository),
		audit:       new(MockAuditRepository),
	}
}

func (r *testRepos) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(r.invoices, r.payments, r.refunds, r.idempotency, r.audit)
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newSentInvoice returns a SENT invoice of 2 x 100.00 at 10% tax (total 220.00)
func newSentInvoice(tenantID uuid.UUID) *invoicing.Invoice {
	issue := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	inv, err := invoicing.NewInvoice(tenantID, "INV-001", uuid.New(), "USD", issue, issue.AddDate(0, 0, 30))
	if err != nil {
		panic(err)
	}
	tax := dec("10")
	if _, err := inv.AddLineItem(invoicing.LineItemSpec{
		Description: "Consulting",
		Quantity:    dec("2"),
		UnitPrice:   dec("100"),
		TaxPercent:  &tax,
	}); err != nil {
		panic(err)
	}
	if err := inv.Send(); err != nil {
		panic(err)
	}
	inv.ClearDomainEvents()
	return inv
}
