package telemetry

import (
	"context"
	"fmt"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
)

const invoiceMeterName = "invoicing-backend/invoice"

// InvoiceMetrics counts money movement and ledger behaviour.
// It subscribes to the event bus for applied payments and refunds and is
// installed as the services' ledger observer for replays and retries.
type InvoiceMetrics struct {
	payments      metric.Int64Counter
	paymentAmount metric.Float64Counter
	refunds       metric.Int64Counter
	replays       metric.Int64Counter
	retries       metric.Int64Counter
}

// NewInvoiceMetrics registers the invoice counters on the given meter
func NewInvoiceMetrics(meter metric.Meter) (*InvoiceMetrics, error) {
	var (
		m   InvoiceMetrics
		err error
	)
	counters := []struct {
		dst              *metric.Int64Counter
		name, desc, unit string
	}{
		{&m.payments, "invoice_payments_total", "Payments applied to invoices", "{payment}"},
		{&m.refunds, "invoice_refunds_total", "Refunds reconciled against invoices", "{refund}"},
		{&m.replays, "invoice_idempotent_replays_total", "Requests answered from the idempotency ledger", "{request}"},
		{&m.retries, "invoice_retries_total", "Transactions retried after a conflict or transient failure", "{retry}"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit)); err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
	}
	if m.paymentAmount, err = meter.Float64Counter("invoice_payment_amount_total",
		metric.WithDescription("Sum of payment amounts applied to invoices"),
		metric.WithUnit("{currency_unit}")); err != nil {
		return nil, fmt.Errorf("failed to create counter invoice_payment_amount_total: %w", err)
	}
	return &m, nil
}

// NewInvoiceMetricsFromProvider registers the counters on the provider's meter
func NewInvoiceMetricsFromProvider(mp *MeterProvider) (*InvoiceMetrics, error) {
	return NewInvoiceMetrics(mp.Meter(invoiceMeterName))
}

// Handle implements shared.EventHandler
func (m *InvoiceMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *invoicing.PaymentAppliedEvent:
		tenant := AttrTenantID.String(e.TenantID().String())
		currency := AttrCurrency.String(e.Currency)
		m.payments.Add(ctx, 1, metric.WithAttributes(tenant, currency, AttrInvoiceStatus.String(string(e.Status))))
		m.paymentAmount.Add(ctx, e.Amount.InexactFloat64(), metric.WithAttributes(tenant, currency))
	case *invoicing.RefundAppliedEvent:
		m.refunds.Add(ctx, 1, metric.WithAttributes(
			AttrTenantID.String(e.TenantID().String()),
			AttrCurrency.String(e.Currency),
		))
	}
	return nil
}

// EventTypes implements shared.EventHandler
func (m *InvoiceMetrics) EventTypes() []string {
	return []string{invoicing.EventTypePaymentApplied, invoicing.EventTypeRefundApplied}
}

// RecordReplay counts a response served from the idempotency ledger
func (m *InvoiceMetrics) RecordReplay(ctx context.Context, op invoicing.IdempotentOperation) {
	m.replays.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(string(op))))
}

// RecordRetry counts a retried transaction attempt
func (m *InvoiceMetrics) RecordRetry(ctx context.Context, op string, err error) {
	code := shared.CodeOf(err)
	if code == "" {
		code = "UNKNOWN"
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(op), AttrErrorCode.String(code)))
}

var _ shared.EventHandler = (*InvoiceMetrics)(nil)
