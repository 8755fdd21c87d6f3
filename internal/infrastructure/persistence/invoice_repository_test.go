package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoice(t *testing.T, tenantID uuid.UUID, number string) *invoicing.Invoice {
	t.Helper()
	issue := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	inv, err := invoicing.NewInvoice(tenantID, number, uuid.New(), "USD", issue, issue.AddDate(0, 0, 30))
	require.NoError(t, err)
	tax := decimal.NewFromInt(10)
	_, err = inv.AddLineItem(invoicing.LineItemSpec{
		Description: "Consulting",
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.NewFromInt(100),
		TaxPercent:  &tax,
	})
	require.NoError(t, err)
	return inv
}

func TestGormInvoiceRepository_FindByIDForUpdate_LocksRow(t *testing.T) {
	m := testdb.NewMock(t)
	repo := NewGormInvoiceRepository(m.DB)
	tenantID, id := uuid.New(), uuid.New()

	m.Mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE .*tenant_id = \$1 AND id = \$2.*LIMIT \$3 FOR UPDATE`).
		WithArgs(tenantID, id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "version", "status"}).
			AddRow(id, tenantID, 3, "SENT"))
	m.Mock.ExpectQuery(`SELECT \* FROM "invoice_line_items" WHERE invoice_id = \$1 ORDER BY position ASC`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_id", "position"}))

	inv, err := repo.FindByIDForUpdate(context.Background(), tenantID, id)
	require.NoError(t, err)
	assert.Equal(t, 3, inv.Version)
	assert.Equal(t, invoicing.InvoiceStatusSent, inv.Status)
}

func TestGormInvoiceRepository_FindByIDForTenant_NotFound(t *testing.T) {
	m := testdb.NewMock(t)
	repo := NewGormInvoiceRepository(m.DB)

	m.Mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE .*tenant_id = \$1 AND id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByIDForTenant(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormInvoiceRepository_Save_VersionGuard(t *testing.T) {
	tenantID := uuid.New()

	t.Run("writes header when stored version matches", func(t *testing.T) {
		m := testdb.NewMock(t)
		repo := NewGormInvoiceRepository(m.DB)
		inv := newTestInvoice(t, tenantID, "INV-1")
		inv.Version = 4

		m.Mock.ExpectExec(`UPDATE "invoices" SET .* WHERE tenant_id = \$\d+ AND id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Save(context.Background(), inv))
	})

	t.Run("reports a conflict when no row matched", func(t *testing.T) {
		m := testdb.NewMock(t)
		repo := NewGormInvoiceRepository(m.DB)
		inv := newTestInvoice(t, tenantID, "INV-2")
		inv.Version = 4

		m.Mock.ExpectExec(`UPDATE "invoices" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Save(context.Background(), inv)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("translates store errors", func(t *testing.T) {
		m := testdb.NewMock(t)
		repo := NewGormInvoiceRepository(m.DB)
		inv := newTestInvoice(t, tenantID, "INV-3")

		m.Mock.ExpectExec(`UPDATE "invoices" SET`).
			WillReturnError(assert.AnError)

		err := repo.Save(context.Background(), inv)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestGormInvoiceRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	db := testdb.NewSQLite(t)
	repo := NewGormInvoiceRepository(db)
	tenantID := uuid.New()

	inv := newTestInvoice(t, tenantID, "INV-100")
	require.NoError(t, repo.Create(ctx, inv))

	t.Run("round trips header and line items", func(t *testing.T) {
		got, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-100", got.InvoiceNumber)
		assert.True(t, decimal.NewFromInt(220).Equal(got.TotalAmount), got.TotalAmount.String())
		require.Len(t, got.Items, 1)
		assert.True(t, decimal.NewFromInt(10).Equal(*got.Items[0].TaxPercent))
		assert.Nil(t, got.Items[0].DiscountPercent)
	})

	t.Run("other tenants cannot see the invoice", func(t *testing.T) {
		_, err := repo.FindByIDForTenant(ctx, uuid.New(), inv.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("invoice numbers are unique per tenant", func(t *testing.T) {
		err := repo.Create(ctx, newTestInvoice(t, tenantID, "INV-100"))
		assert.ErrorIs(t, err, shared.ErrDuplicateKey)

		assert.NoError(t, repo.Create(ctx, newTestInvoice(t, uuid.New(), "INV-100")))

		exists, err := repo.ExistsByNumber(ctx, tenantID, "INV-100")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("save bumps the stored version once", func(t *testing.T) {
		loaded, err := repo.FindByIDForUpdate(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Send())
		require.NoError(t, repo.Save(ctx, loaded))

		stale := *loaded
		assert.ErrorIs(t, repo.Save(ctx, &stale), shared.ErrConcurrencyConflict)

		got, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, invoicing.InvoiceStatusSent, got.Status)
		assert.Equal(t, loaded.Version, got.Version)
	})

	t.Run("line items are replaced", func(t *testing.T) {
		draft := newTestInvoice(t, tenantID, "INV-101")
		require.NoError(t, repo.Create(ctx, draft))
		_, err := draft.AddLineItem(invoicing.LineItemSpec{
			Description: "Travel",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromInt(50),
		})
		require.NoError(t, err)
		require.NoError(t, repo.SaveLineItems(ctx, draft))

		got, err := repo.FindByIDForTenant(ctx, tenantID, draft.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 2)
		assert.Equal(t, "Travel", got.Items[1].Description)
	})
}

func TestGormInvoiceRepository_FindAllForTenant(t *testing.T) {
	ctx := context.Background()
	db := testdb.NewSQLite(t)
	repo := NewGormInvoiceRepository(db)
	tenantID := uuid.New()

	for _, n := range []string{"INV-A1", "INV-A2", "INV-B1"} {
		require.NoError(t, repo.Create(ctx, newTestInvoice(t, tenantID, n)))
	}
	require.NoError(t, repo.Create(ctx, newTestInvoice(t, uuid.New(), "INV-A3")))

	items, total, err := repo.FindAllForTenant(ctx, tenantID, invoicing.InvoiceFilter{
		Filter: shared.Filter{Page: 1, PageSize: 10, OrderBy: "invoice_number", OrderDir: "asc"},
		Search: "INV-A",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, "INV-A1", items[0].InvoiceNumber)
	assert.Empty(t, items[0].Items)

	draft := invoicing.InvoiceStatusDraft
	_, total, err = repo.FindAllForTenant(ctx, tenantID, invoicing.InvoiceFilter{Status: &draft})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestGormInvoiceRepository_FindOverdueCandidates(t *testing.T) {
	ctx := context.Background()
	db := testdb.NewSQLite(t)
	repo := NewGormInvoiceRepository(db)

	sent := newTestInvoice(t, uuid.New(), "INV-OD-1")
	require.NoError(t, sent.Send())
	draft := newTestInvoice(t, uuid.New(), "INV-OD-2")
	for _, inv := range []*invoicing.Invoice{sent, draft} {
		require.NoError(t, repo.Create(ctx, inv))
	}

	refs, err := repo.FindOverdueCandidates(ctx, sent.DueDate.AddDate(0, 0, 1), 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, invoicing.InvoiceRef{TenantID: sent.TenantID, InvoiceID: sent.ID}, refs[0])

	refs, err = repo.FindOverdueCandidates(ctx, sent.DueDate.AddDate(0, 0, -1), 10)
	require.NoError(t, err)
	assert.Empty(t, refs)
}
