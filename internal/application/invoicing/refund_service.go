package invoicing

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RefundPayment returns part or all of a payment. The payment row is locked
// before the invoice row so concurrent refunds of one payment serialize and
// their sum can never exceed the payment amount.
//
// The idempotency key is optional here; without one every call creates a new
// refund.
func (s *PaymentService) RefundPayment(ctx context.Context, tenantID uuid.UUID, req RefundPaymentRequest) (*MutationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "refund")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrPaymentID, req.PaymentID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	if err := shared.RequireTenant(tenantID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var key string
	if strings.TrimSpace(req.IdempotencyKey) != "" {
		var err error
		if key, err = invoicing.NormalizeIdempotencyKey(req.IdempotencyKey); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}
	keyed := key != ""

	op := invoicing.OperationRefundPayment
	fp := Fingerprint(op, fingerprintParts(req.PaymentID, req.Amount.String(), req.Reason)...)

	if keyed {
		if rec, err := s.ledger.Cached(ctx, tenantID, key, op, fp); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		} else if rec != nil {
			return s.replay(ctx, span, rec)
		}
	}

	var (
		result    *MutationResult
		committed *invoicing.IdempotencyRecord
		events    []shared.DomainEvent
	)
	err := s.retry.Run(ctx, func(attempt int) error {
		result, committed, events = nil, nil, nil
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if keyed {
				if rec, err := s.ledger.CheckOrReserve(ctx, repos.Idempotency(), tenantID, key, op, fp); err != nil || rec != nil {
					result, committed = replayOf(rec), rec
					return err
				}
			}

			payment, err := repos.Payments().FindByIDForUpdate(ctx, tenantID, req.PaymentID)
			if err != nil {
				return err
			}

			if keyed {
				if rec, err := s.ledger.CheckOrReserve(ctx, repos.Idempotency(), tenantID, key, op, fp); err != nil || rec != nil {
					result, committed = replayOf(rec), rec
					return err
				}
			}

			prior, err := repos.Refunds().SumByPayment(ctx, tenantID, payment.ID)
			if err != nil {
				return err
			}
			refund, err := invoicing.NewRefund(payment, req.Amount, prior, req.Reason)
			if err != nil {
				return err
			}

			inv, err := repos.Invoices().FindByIDForUpdate(ctx, tenantID, payment.InvoiceID)
			if err != nil {
				return err
			}
			before := NewInvoiceView(inv)
			if err := inv.ApplyRefund(refund.Amount); err != nil {
				return err
			}

			if err := repos.Refunds().Create(ctx, refund); err != nil {
				return err
			}
			if err := repos.Invoices().Save(ctx, inv); err != nil {
				return err
			}

			after := NewInvoiceView(inv)
			audit := NewAuditRecorder(repos.Audit())
			if err := audit.Append(ctx, tenantID, invoicing.AuditEntityRefund, refund.ID, invoicing.AuditActionCreated,
				nil, NewRefundView(refund)); err != nil {
				return err
			}
			if err := audit.Append(ctx, tenantID, invoicing.AuditEntityInvoice, inv.ID, invoicing.AuditActionRefundApplied,
				before, after); err != nil {
				return err
			}

			body, err := encodeView(after)
			if err != nil {
				return err
			}
			if keyed {
				rec := invoicing.NewIdempotencyRecord(tenantID, key, op, fp, refund.ID, body)
				if err := s.ledger.Commit(ctx, repos.Idempotency(), rec); err != nil {
					return err
				}
				committed = rec
			}

			result = &MutationResult{Invoice: after, Body: body}
			events = inv.GetDomainEvents()
			return nil
		})
	}, func(err error) {
		s.observer.RecordRetry(ctx, "refund_payment", err)
		telemetry.RecordRetry(span, err)
		s.logger.Warn("Retrying refund transaction",
			zap.String("payment_id", req.PaymentID.String()),
			zap.Error(err),
		)
	})

	if err != nil {
		if keyed && isLedgerRace(err) {
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
	s.logger.Info("Refund recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("invoice_id", result.Invoice.ID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("status", result.Invoice.Status),
	)
	return result, nil
}
