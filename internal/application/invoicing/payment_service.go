package invoicing

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PaymentService applies payments to invoices and reconciles refunds against
// prior payments. Every mutation runs in one transaction covering the invoice
// row (locked for update), the new fact, the audit entries and, when a key is
// supplied, the idempotency record.
type PaymentService struct {
	txScope  TransactionScope
	ledger   *IdempotencyLedger
	retry    RetryPolicy
	events   shared.EventPublisher
	observer LedgerObserver
	logger   *zap.Logger
}

// PaymentServiceOption is a functional option for configuring PaymentService
type PaymentServiceOption func(*PaymentService)

// WithPaymentRetryPolicy overrides the default retry policy
func WithPaymentRetryPolicy(policy RetryPolicy) PaymentServiceOption {
	return func(s *PaymentService) {
		s.retry = policy
	}
}

// WithPaymentEventPublisher publishes domain events after each commit
func WithPaymentEventPublisher(publisher shared.EventPublisher) PaymentServiceOption {
	return func(s *PaymentService) {
		s.events = publisher
	}
}

// WithLedgerObserver reports replays and retries
func WithLedgerObserver(observer LedgerObserver) PaymentServiceOption {
	return func(s *PaymentService) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithPaymentLogger sets the service logger
func WithPaymentLogger(logger *zap.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(txScope TransactionScope, ledger *IdempotencyLedger, opts ...PaymentServiceOption) *PaymentService {
	s := &PaymentService{
		txScope:  txScope,
		ledger:   ledger,
		retry:    DefaultRetryPolicy(),
		observer: noopObserver{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordPayment applies a settled payment to an invoice exactly once per
// (tenant, idempotency key). A retried request returns the byte-identical
// body of the first successful response without repeating side effects.
func (s *PaymentService) RecordPayment(ctx context.Context, tenantID uuid.UUID, req RecordPaymentRequest) (*MutationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, req.InvoiceID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	if err := shared.RequireTenant(tenantID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	key, err := invoicing.NormalizeIdempotencyKey(req.IdempotencyKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	currency := ""
	if strings.TrimSpace(req.Currency) != "" {
		if currency, err = invoicing.NormalizeCurrency(req.Currency); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	op := invoicing.OperationRecordPayment
	fp := Fingerprint(op, fingerprintParts(req.InvoiceID, req.Amount.String(), currency, req.Reference)...)

	if rec, err := s.ledger.Cached(ctx, tenantID, key, op, fp); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	} else if rec != nil {
		return s.replay(ctx, span, rec)
	}

	var (
		result    *MutationResult
		committed *invoicing.IdempotencyRecord
		events    []shared.DomainEvent
	)
	err = s.retry.Run(ctx, func(attempt int) error {
		result, committed, events = nil, nil, nil
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if rec, err := s.ledger.CheckOrReserve(ctx, repos.Idempotency(), tenantID, key, op, fp); err != nil || rec != nil {
				result, committed = replayOf(rec), rec
				return err
			}

			inv, err := repos.Invoices().FindByIDForUpdate(ctx, tenantID, req.InvoiceID)
			if err != nil {
				return err
			}

			// A request with the same key may have committed while this one
			// waited for the invoice lock.
			if rec, err := s.ledger.CheckOrReserve(ctx, repos.Idempotency(), tenantID, key, op, fp); err != nil || rec != nil {
				result, committed = replayOf(rec), rec
				return err
			}

			if currency != "" && currency != inv.Currency {
				return shared.NewDomainError(shared.CodeValidationFailed,
					"Payment currency "+currency+" does not match invoice currency "+inv.Currency)
			}

			before := NewInvoiceView(inv)
			if err := inv.ApplyPayment(req.Amount); err != nil {
				return err
			}

			payment, err := invoicing.NewPayment(inv, req.Amount, req.Reference)
			if err != nil {
				return err
			}
			if payment.Reference != nil {
				exists, err := repos.Payments().ExistsByReference(ctx, tenantID, *payment.Reference)
				if err != nil {
					return err
				}
				if exists {
					return shared.NewDomainError(shared.CodeDuplicateKey, "Payment reference has already been recorded")
				}
			}
			if err := repos.Payments().Create(ctx, payment); err != nil {
				return err
			}
			if err := repos.Invoices().Save(ctx, inv); err != nil {
				return err
			}

			after := NewInvoiceView(inv)
			audit := NewAuditRecorder(repos.Audit())
			if err := audit.Append(ctx, tenantID, invoicing.AuditEntityPayment, payment.ID, invoicing.AuditActionCreated,
				nil, NewPaymentView(payment, decimal.Zero)); err != nil {
				return err
			}
			if err := audit.Append(ctx, tenantID, invoicing.AuditEntityInvoice, inv.ID, invoicing.AuditActionPaymentApplied,
				before, after); err != nil {
				return err
			}

			body, err := encodeView(after)
			if err != nil {
				return err
			}
			rec := invoicing.NewIdempotencyRecord(tenantID, key, op, fp, inv.ID, body)
			if err := s.ledger.Commit(ctx, repos.Idempotency(), rec); err != nil {
				return err
			}

			result = &MutationResult{Invoice: after, Body: body}
			committed = rec
			events = inv.GetDomainEvents()
			return nil
		})
	}, func(err error) {
		s.observer.RecordRetry(ctx, "record_payment", err)
		telemetry.RecordRetry(span, err)
		s.logger.Warn("Retrying payment transaction",
			zap.String("invoice_id", req.InvoiceID.String()),
			zap.Error(err),
		)
	})

	if err != nil {
		if isLedgerRace(err) {
			rec, rerr := s.ledger.Resolve(ctx, tenantID, key, op, fp)
			if rerr != nil {
				telemetry.RecordError(span, rerr)
				return nil, rerr
			}
			return s.replay(ctx, span, rec)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.ledger.Remember(ctx, committed)
	if result.Replayed {
		return s.finishReplay(ctx, span, result, op)
	}

	s.publish(ctx, events)
	s.logger.Info("Payment recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", result.Invoice.ID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("status", result.Invoice.Status),
	)
	return result, nil
}

// ListPayments returns the payments of an invoice with their refunded totals
func (s *PaymentService) ListPayments(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]PaymentView, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	var (
		payments []invoicing.Payment
		refunded map[uuid.UUID]decimal.Decimal
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Invoices().FindByIDForTenant(ctx, tenantID, invoiceID); err != nil {
			return err
		}
		var err error
		if payments, err = repos.Payments().FindByInvoice(ctx, tenantID, invoiceID); err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(payments))
		for i := range payments {
			ids[i] = payments[i].ID
		}
		refunded, err = repos.Refunds().SumByPayments(ctx, tenantID, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	views := make([]PaymentView, len(payments))
	for i := range payments {
		amount, ok := refunded[payments[i].ID]
		if !ok {
			amount = decimal.Zero
		}
		views[i] = NewPaymentView(&payments[i], amount)
	}
	return views, nil
}

func (s *PaymentService) replay(ctx context.Context, span trace.Span, rec *invoicing.IdempotencyRecord) (*MutationResult, error) {
	return s.finishReplay(ctx, span, replayOf(rec), rec.Operation)
}

func (s *PaymentService) finishReplay(ctx context.Context, span trace.Span, result *MutationResult, op invoicing.IdempotentOperation) (*MutationResult, error) {
	view, err := decodeView(result.Body)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result.Invoice = view
	telemetry.SetAttributes(span, telemetry.SpanAttrReplayed, true)
	s.observer.RecordReplay(ctx, op)
	return result, nil
}

func (s *PaymentService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish invoice events", zap.Error(err))
	}
}

// replayOf builds a replay result from a stored record; the view is decoded later.
func replayOf(rec *invoicing.IdempotencyRecord) *MutationResult {
	if rec == nil {
		return nil
	}
	return &MutationResult{Body: rec.ResponseBody, Replayed: true}
}

func encodeView(view *InvoiceView) ([]byte, error) {
	body, err := json.Marshal(view)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeSerializationFailure, "Failed to serialize invoice response", err)
	}
	return body, nil
}

func decodeView(body []byte) (*InvoiceView, error) {
	var view InvoiceView
	if err := json.Unmarshal(body, &view); err != nil {
		return nil, shared.WrapDomainError(shared.CodeSerializationFailure, "Stored idempotent response is unreadable", err)
	}
	return &view, nil
}

