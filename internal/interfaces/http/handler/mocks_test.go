package handler

import (
	"context"

	"github.com/google/uuid"
	appinv "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

type mockInvoices struct {
	mock.Mock
}

func (m *mockInvoices) view(args mock.Arguments) (*appinv.InvoiceView, error) {
	if v := args.Get(0); v != nil {
		return v.(*appinv.InvoiceView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInvoices) CreateInvoice(ctx context.Context, tenantID uuid.UUID, req appinv.CreateInvoiceRequest) (*appinv.InvoiceView, error) {
	return m.view(m.Called(ctx, tenantID, req))
}

func (m *mockInvoices) GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appinv.InvoiceView, error) {
	return m.view(m.Called(ctx, tenantID, invoiceID))
}

func (m *mockInvoices) ListInvoices(ctx context.Context, tenantID uuid.UUID, req appinv.ListInvoicesRequest) (shared.Paginated[appinv.InvoiceSummaryView], error) {
	args := m.Called(ctx, tenantID, req)
	return args.Get(0).(shared.Paginated[appinv.InvoiceSummaryView]), args.Error(1)
}

func (m *mockInvoices) AddLineItem(ctx context.Context, tenantID, invoiceID uuid.UUID, input appinv.LineItemInput) (*appinv.InvoiceView, error) {
	return m.view(m.Called(ctx, tenantID, invoiceID, input))
}

func (m *mockInvoices) UpdateLineItem(ctx context.Context, tenantID, invoiceID, itemID uuid.UUID, input appinv.LineItemInput) (*appinv.InvoiceView, error) {
	return m.view(m.Called(ctx, tenantID, invoiceID, itemID, input))
}

func (m *mockInvoices) DeleteLineItem(ctx context.Context, tenantID, invoiceID, itemID uuid.UUID) (*appinv.InvoiceView, error) {
	return m.view(m.Called(ctx, tenantID, invoiceID, itemID))
}

func (m *mockInvoices) SendInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appinv.InvoiceView, error) {
	return m.view(m.Called(ctx, tenantID, invoiceID))
}

func (m *mockInvoices) CancelInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appinv.InvoiceView, error) {
	return m.view(m.Called(ctx, tenantID, invoiceID))
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) RecordPayment(ctx context.Context, tenantID uuid.UUID, req appinv.RecordPaymentRequest) (*appinv.MutationResult, error) {
	args := m.Called(ctx, tenantID, req)
	if v := args.Get(0); v != nil {
		return v.(*appinv.MutationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPayments) RefundPayment(ctx context.Context, tenantID uuid.UUID, req appinv.RefundPaymentRequest) (*appinv.MutationResult, error) {
	args := m.Called(ctx, tenantID, req)
	if v := args.Get(0); v != nil {
		return v.(*appinv.MutationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPayments) ListPayments(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]appinv.PaymentView, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if v := args.Get(0); v != nil {
		return v.([]appinv.PaymentView), args.Error(1)
	}
	return nil, args.Error(1)
}

var (
	_ InvoiceOperations = (*mockInvoices)(nil)
	_ PaymentOperations = (*mockPayments)(nil)
	_ InvoiceOperations = (*appinv.InvoiceService)(nil)
	_ PaymentOperations = (*appinv.PaymentService)(nil)
)
