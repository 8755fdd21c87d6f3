package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appinv "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// flowFixture wires the invoicing services to real GORM repositories over SQLite
type flowFixture struct {
	db       *gorm.DB
	invoices *appinv.InvoiceService
	payments *appinv.PaymentService
	now      time.Time
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	db := testdb.NewSQLite(t)
	f := &flowFixture{db: db, now: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}

	scope := NewGormTransactionScope(db)
	ledger := appinv.NewIdempotencyLedger(NewGormIdempotencyRepository(db), nil, nil)
	f.invoices = appinv.NewInvoiceService(scope, NewGormInvoiceRepository(db),
		appinv.WithClock(func() time.Time { return f.now }))
	f.payments = appinv.NewPaymentService(scope, ledger)
	return f
}

func (f *flowFixture) sentInvoice(t *testing.T, tenantID uuid.UUID, number string) *appinv.InvoiceView {
	t.Helper()
	ctx := context.Background()
	tax := decimal.NewFromInt(10)
	issue := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	view, err := f.invoices.CreateInvoice(ctx, tenantID, appinv.CreateInvoiceRequest{
		InvoiceNumber: number,
		CustomerID:    uuid.New(),
		Currency:      "USD",
		IssueDate:     issue,
		DueDate:       issue.AddDate(0, 0, 10),
		LineItems: []appinv.LineItemInput{{
			Description: "Consulting",
			Quantity:    decimal.NewFromInt(2),
			UnitPrice:   decimal.NewFromInt(100),
			TaxPercent:  &tax,
		}},
	})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(220).Equal(view.TotalAmount))

	view, err = f.invoices.SendInvoice(ctx, tenantID, view.ID)
	require.NoError(t, err)
	return view
}

func TestInvoicingFlow_PaymentAndRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)
	tenantID := uuid.New()
	inv := f.sentInvoice(t, tenantID, "INV-FLOW-1")

	paid, err := f.payments.RecordPayment(ctx, tenantID, appinv.RecordPaymentRequest{
		InvoiceID:      inv.ID,
		Amount:         decimal.NewFromInt(220),
		Reference:      "WIRE-220",
		IdempotencyKey: "pay-1",
	})
	require.NoError(t, err)
	assert.False(t, paid.Replayed)
	assert.Equal(t, "PAID", paid.Invoice.Status)

	t.Run("retry with the same key replays the stored body", func(t *testing.T) {
		again, err := f.payments.RecordPayment(ctx, tenantID, appinv.RecordPaymentRequest{
			InvoiceID:      inv.ID,
			Amount:         decimal.NewFromInt(220),
			Reference:      "WIRE-220",
			IdempotencyKey: "pay-1",
		})
		require.NoError(t, err)
		assert.True(t, again.Replayed)
		assert.Equal(t, paid.Body, again.Body)

		payments, err := f.payments.ListPayments(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.Len(t, payments, 1)
	})

	t.Run("reusing the key for another request is rejected", func(t *testing.T) {
		_, err := f.payments.RecordPayment(ctx, tenantID, appinv.RecordPaymentRequest{
			InvoiceID:      inv.ID,
			Amount:         decimal.NewFromInt(1),
			IdempotencyKey: "pay-1",
		})
		assert.True(t, shared.HasCode(err, shared.CodeValidationFailed), "got %v", err)
	})

	payments, err := f.payments.ListPayments(ctx, tenantID, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	paymentID := payments[0].ID

	partial, err := f.payments.RefundPayment(ctx, tenantID, appinv.RefundPaymentRequest{
		PaymentID:      paymentID,
		Amount:         decimal.NewFromInt(100),
		Reason:         "damaged goods",
		IdempotencyKey: "refund-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "PARTIALLY_PAID", partial.Invoice.Status)
	assert.True(t, decimal.NewFromInt(120).Equal(partial.Invoice.AmountPaid))

	replayed, err := f.payments.RefundPayment(ctx, tenantID, appinv.RefundPaymentRequest{
		PaymentID:      paymentID,
		Amount:         decimal.NewFromInt(100),
		Reason:         "damaged goods",
		IdempotencyKey: "refund-1",
	})
	require.NoError(t, err)
	assert.True(t, replayed.Replayed)
	assert.Equal(t, partial.Body, replayed.Body)

	full, err := f.payments.RefundPayment(ctx, tenantID, appinv.RefundPaymentRequest{
		PaymentID: paymentID,
		Amount:    decimal.NewFromInt(120),
	})
	require.NoError(t, err)
	assert.Equal(t, "SENT", full.Invoice.Status)
	assert.True(t, full.Invoice.AmountPaid.IsZero())

	_, err = f.payments.RefundPayment(ctx, tenantID, appinv.RefundPaymentRequest{
		PaymentID: paymentID,
		Amount:    decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, shared.ErrAmountExceedsBalance)

	payments, err = f.payments.ListPayments(ctx, tenantID, inv.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(220).Equal(payments[0].RefundedAmount))

	trail, err := NewGormAuditRepository(f.db).FindByEntity(ctx, tenantID, invoicing.AuditEntityInvoice, inv.ID)
	require.NoError(t, err)
	actions := make([]invoicing.AuditAction, len(trail))
	for i, e := range trail {
		actions[i] = e.Action
	}
	assert.Equal(t, []invoicing.AuditAction{
		invoicing.AuditActionCreated,
		invoicing.AuditActionSent,
		invoicing.AuditActionPaymentApplied,
		invoicing.AuditActionRefundApplied,
		invoicing.AuditActionRefundApplied,
	}, actions)
}

func TestInvoicingFlow_ConcurrentSameKeyAppliesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)
	tenantID := uuid.New()
	inv := f.sentInvoice(t, tenantID, "INV-FLOW-2")

	const workers = 8
	results := make([]*appinv.MutationResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.payments.RecordPayment(ctx, tenantID, appinv.RecordPaymentRequest{
				InvoiceID:      inv.ID,
				Amount:         decimal.NewFromInt(50),
				IdempotencyKey: "same-key",
			})
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if !results[i].Replayed {
			fresh++
		}
		assert.Equal(t, results[0].Body, results[i].Body)
	}
	assert.Equal(t, 1, fresh)

	got, err := f.invoices.GetInvoice(ctx, tenantID, inv.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(got.AmountPaid), got.AmountPaid.String())

	payments, err := f.payments.ListPayments(ctx, tenantID, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestInvoicingFlow_ConcurrentDistinctKeysNeverOverpay(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)
	tenantID := uuid.New()
	inv := f.sentInvoice(t, tenantID, "INV-FLOW-3")

	const workers = 6
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.payments.RecordPayment(ctx, tenantID, appinv.RecordPaymentRequest{
				InvoiceID:      inv.ID,
				Amount:         decimal.NewFromInt(44),
				IdempotencyKey: fmt.Sprintf("key-%d", i),
			})
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, shared.ErrAmountExceedsBalance), errors.Is(err, shared.ErrInvalidStateTransition):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 1, rejected)

	got, err := f.invoices.GetInvoice(ctx, tenantID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAID", got.Status)
	assert.True(t, decimal.NewFromInt(220).Equal(got.AmountPaid))
}

func TestInvoicingFlow_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)
	owner, intruder := uuid.New(), uuid.New()
	inv := f.sentInvoice(t, owner, "INV-FLOW-4")

	_, err := f.invoices.GetInvoice(ctx, intruder, inv.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.payments.RecordPayment(ctx, intruder, appinv.RecordPaymentRequest{
		InvoiceID:      inv.ID,
		Amount:         decimal.NewFromInt(10),
		IdempotencyKey: "shared-key",
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	res, err := f.payments.RecordPayment(ctx, owner, appinv.RecordPaymentRequest{
		InvoiceID:      inv.ID,
		Amount:         decimal.NewFromInt(10),
		IdempotencyKey: "shared-key",
	})
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	_, err = f.payments.ListPayments(ctx, intruder, inv.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.payments.ListPayments(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
	listed, err := f.payments.ListPayments(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = f.payments.RecordPayment(ctx, uuid.Nil, appinv.RecordPaymentRequest{
		InvoiceID:      inv.ID,
		Amount:         decimal.NewFromInt(10),
		IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, shared.ErrMissingTenant)
}

func TestInvoicingFlow_OverdueSweep(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)
	tenantID := uuid.New()
	inv := f.sentInvoice(t, tenantID, "INV-FLOW-5")

	marked, err := f.invoices.MarkOverdue(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, err := f.invoices.GetInvoice(ctx, tenantID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "OVERDUE", got.Status)

	marked, err = f.invoices.MarkOverdue(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, marked)

	res, err := f.payments.RecordPayment(ctx, tenantID, appinv.RecordPaymentRequest{
		InvoiceID:      inv.ID,
		Amount:         decimal.NewFromInt(20),
		IdempotencyKey: "late",
	})
	require.NoError(t, err)
	assert.Equal(t, "PARTIALLY_PAID", res.Invoice.Status)

	_, err = f.invoices.CancelInvoice(ctx, tenantID, inv.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
}

// failingAuditScope hands out the real transactional repositories except for
// an audit sink that always fails, so the surrounding mutation must roll back
type failingAuditScope struct {
	inner *GormTransactionScope
	err   error
}

func (s failingAuditScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	return s.inner.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		return fn(failingAuditRepos{TransactionalRepositories: repos, err: s.err})
	})
}

type failingAuditRepos struct {
	appinv.TransactionalRepositories
	err error
}

func (r failingAuditRepos) Audit() invoicing.AuditRepository {
	return failingAuditSink{err: r.err}
}

type failingAuditSink struct{ err error }

func (s failingAuditSink) Append(context.Context, *invoicing.AuditEntry) error { return s.err }

func (s failingAuditSink) FindByEntity(context.Context, uuid.UUID, invoicing.AuditEntityType, uuid.UUID) ([]invoicing.AuditEntry, error) {
	return nil, s.err
}

func TestInvoicingFlow_AuditFailureRollsBackMutation(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)
	tenantID := uuid.New()
	inv := f.sentInvoice(t, tenantID, "INV-FLOW-6")
	auditDown := errors.New("audit sink unavailable")

	ledger := appinv.NewIdempotencyLedger(NewGormIdempotencyRepository(f.db), nil, nil)
	broken := appinv.NewPaymentService(failingAuditScope{inner: NewGormTransactionScope(f.db), err: auditDown}, ledger)
	invoices := NewGormInvoiceRepository(f.db)
	keys := NewGormIdempotencyRepository(f.db)

	assertInvoiceUnchanged := func(t *testing.T, paid decimal.Decimal, status invoicing.InvoiceStatus) {
		t.Helper()
		stored, err := invoices.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.True(t, paid.Equal(stored.AmountPaid), "amount paid %s", stored.AmountPaid)
		assert.Equal(t, status, stored.Status)
	}

	t.Run("payment", func(t *testing.T) {
		req := appinv.RecordPaymentRequest{
			InvoiceID:      inv.ID,
			Amount:         decimal.NewFromInt(120),
			Reference:      "WIRE-AUDIT",
			IdempotencyKey: "pay-audit",
		}

		_, err := broken.RecordPayment(ctx, tenantID, req)
		require.ErrorIs(t, err, auditDown)

		payments, err := NewGormPaymentRepository(f.db).FindByInvoice(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.Empty(t, payments)
		_, err = keys.Find(ctx, tenantID, "pay-audit")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assertInvoiceUnchanged(t, decimal.Zero, invoicing.InvoiceStatusSent)

		res, err := f.payments.RecordPayment(ctx, tenantID, req)
		require.NoError(t, err)
		assert.False(t, res.Replayed)
		assert.Equal(t, "PARTIALLY_PAID", res.Invoice.Status)
	})

	t.Run("refund", func(t *testing.T) {
		payments, err := f.payments.ListPayments(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		require.Len(t, payments, 1)
		req := appinv.RefundPaymentRequest{
			PaymentID:      payments[0].ID,
			Amount:         decimal.NewFromInt(20),
			Reason:         "overcharge",
			IdempotencyKey: "refund-audit",
		}

		_, err = broken.RefundPayment(ctx, tenantID, req)
		require.ErrorIs(t, err, auditDown)

		refunds, err := NewGormRefundRepository(f.db).FindByPayment(ctx, tenantID, payments[0].ID)
		require.NoError(t, err)
		assert.Empty(t, refunds)
		_, err = keys.Find(ctx, tenantID, "refund-audit")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assertInvoiceUnchanged(t, decimal.NewFromInt(120), invoicing.InvoiceStatusPartiallyPaid)

		res, err := f.payments.RefundPayment(ctx, tenantID, req)
		require.NoError(t, err)
		assert.False(t, res.Replayed)
		assert.True(t, decimal.NewFromInt(100).Equal(res.Invoice.AmountPaid))
	})
}

func TestGormTransactionScope_RollsBack(t *testing.T) {
	ctx := context.Background()
	db := testdb.NewSQLite(t)
	scope := NewGormTransactionScope(db)
	inv := newTestInvoice(t, uuid.New(), "INV-TX-1")
	boom := errors.New("boom")

	err := scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		require.NoError(t, repos.Invoices().Create(ctx, inv))
		require.NoError(t, repos.Audit().Append(ctx, invoicing.NewAuditEntry(inv.TenantID,
			invoicing.AuditEntityInvoice, inv.ID, invoicing.AuditActionCreated, nil, nil)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewGormInvoiceRepository(db).FindByIDForTenant(ctx, inv.TenantID, inv.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	trail, err := NewGormAuditRepository(db).FindByEntity(ctx, inv.TenantID, invoicing.AuditEntityInvoice, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, trail)
}
