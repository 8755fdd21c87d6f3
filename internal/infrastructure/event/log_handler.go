package event

import (
	"context"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LogHandler writes one structured log line per invoice event
type LogHandler struct {
	logger *zap.Logger
}

// NewLogHandler creates a handler that logs to logger
func NewLogHandler(logger *zap.Logger) *LogHandler {
	return &LogHandler{logger: logger.Named("events")}
}

// Handle implements shared.EventHandler
func (h *LogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("invoice_id", event.AggregateID().String()),
	}

	switch e := event.(type) {
	case *invoicing.InvoiceCreatedEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("total_amount", e.TotalAmount.String()),
			zap.String("currency", e.Currency),
		)
	case *invoicing.InvoiceSentEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.Time("due_date", e.DueDate),
		)
	case *invoicing.PaymentAppliedEvent:
		fields = append(fields,
			zap.String("amount", e.Amount.String()),
			zap.String("amount_paid", e.AmountPaid.String()),
			zap.String("status", string(e.Status)),
		)
	case *invoicing.RefundAppliedEvent:
		fields = append(fields,
			zap.String("amount", e.Amount.String()),
			zap.String("amount_paid", e.AmountPaid.String()),
			zap.String("status", string(e.Status)),
		)
	case *invoicing.InvoiceStatusChangedEvent:
		fields = append(fields,
			zap.String("from_status", string(e.FromStatus)),
			zap.String("to_status", string(e.ToStatus)),
		)
	}

	h.logger.Info("Invoice event", fields...)
	return nil
}

// EventTypes implements shared.EventHandler
func (h *LogHandler) EventTypes() []string {
	return []string{
		invoicing.EventTypeInvoiceCreated,
		invoicing.EventTypeInvoiceSent,
		invoicing.EventTypePaymentApplied,
		invoicing.EventTypeRefundApplied,
		invoicing.EventTypeInvoiceOverdue,
		invoicing.EventTypeInvoiceCancelled,
	}
}

var _ shared.EventHandler = (*LogHandler)(nil)
