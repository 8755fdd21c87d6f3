package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// InvoiceService handles the invoice lifecycle outside of payments: drafting,
// line item edits, sending, cancelling and the overdue sweep.
type InvoiceService struct {
	txScope     TransactionScope
	invoiceRepo invoicing.InvoiceRepository
	retry       RetryPolicy
	events      shared.EventPublisher
	observer    LedgerObserver
	logger      *zap.Logger
	now         func() time.Time
}

// InvoiceServiceOption is a functional option for configuring InvoiceService
type InvoiceServiceOption func(*InvoiceService)

// WithInvoiceRetryPolicy overrides the default retry policy
func WithInvoiceRetryPolicy(policy RetryPolicy) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.retry = policy
	}
}

// WithInvoiceEventPublisher publishes domain events after each commit
func WithInvoiceEventPublisher(publisher shared.EventPublisher) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.events = publisher
	}
}

// WithInvoiceObserver reports retried transactions
func WithInvoiceObserver(observer LedgerObserver) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithInvoiceLogger sets the service logger
func WithInvoiceLogger(logger *zap.Logger) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used by the overdue sweep
func WithClock(now func() time.Time) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(txScope TransactionScope, invoiceRepo invoicing.InvoiceRepository, opts ...InvoiceServiceOption) *InvoiceService {
	s := &InvoiceService{
		txScope:     txScope,
		invoiceRepo: invoiceRepo,
		retry:       DefaultRetryPolicy(),
		observer:    noopObserver{},
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInvoice drafts a new invoice with its initial line items
func (s *InvoiceService) CreateInvoice(ctx context.Context, tenantID uuid.UUID, req CreateInvoiceRequest) (*InvoiceView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	inv, err := invoicing.NewInvoice(tenantID, req.InvoiceNumber, req.CustomerID, req.Currency, req.IssueDate, req.DueDate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if len(req.LineItems) == 0 {
		err := shared.NewDomainError(shared.CodeValidationFailed, "At least one line item is required")
		telemetry.RecordError(span, err)
		return nil, err
	}
	for _, input := range req.LineItems {
		if _, err := inv.AddLineItem(input.ToSpec()); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	view := NewInvoiceView(inv)
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Invoices().ExistsByNumber(ctx, tenantID, inv.InvoiceNumber)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewDomainError(shared.CodeDuplicateKey, "Invoice number already exists: "+inv.InvoiceNumber)
		}
		if err := repos.Invoices().Create(ctx, inv); err != nil {
			return err
		}
		return NewAuditRecorder(repos.Audit()).Append(ctx, tenantID,
			invoicing.AuditEntityInvoice, inv.ID, invoicing.AuditActionCreated, nil, view)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, inv.GetDomainEvents())
	s.logger.Info("Invoice created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
	)
	return view, nil
}

// GetInvoice returns an invoice with its line items
func (s *InvoiceService) GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceView, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	return NewInvoiceView(inv), nil
}

// ListInvoices returns a page of invoice summaries
func (s *InvoiceService) ListInvoices(ctx context.Context, tenantID uuid.UUID, req ListInvoicesRequest) (shared.Paginated[InvoiceSummaryView], error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return shared.Paginated[InvoiceSummaryView]{}, err
	}
	if req.Status != nil && !req.Status.IsValid() {
		return shared.Paginated[InvoiceSummaryView]{}, shared.NewDomainError(shared.CodeValidationFailed, "Unknown invoice status: "+req.Status.String())
	}

	filter := invoicing.InvoiceFilter{
		Filter:     shared.Filter{Page: req.Page, PageSize: req.PageSize, OrderBy: req.SortBy, OrderDir: req.SortDir}.Normalize(),
		Status:     req.Status,
		CustomerID: req.CustomerID,
		Search:     req.Search,
	}
	invoices, total, err := s.invoiceRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[InvoiceSummaryView]{}, err
	}
	items := lo.Map(invoices, func(inv invoicing.Invoice, _ int) InvoiceSummaryView {
		return NewInvoiceSummaryView(&inv)
	})
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// AddLineItem appends a line item to a draft invoice
func (s *InvoiceService) AddLineItem(ctx context.Context, tenantID, invoiceID uuid.UUID, input LineItemInput) (*InvoiceView, error) {
	return s.mutate(ctx, tenantID, invoiceID, "add_line_item", true,
		func(ctx context.Context, inv *invoicing.Invoice, audit *AuditRecorder) error {
			item, err := inv.AddLineItem(input.ToSpec())
			if err != nil {
				return err
			}
			return audit.Append(ctx, tenantID, invoicing.AuditEntityLineItem, item.ID, invoicing.AuditActionCreated,
				nil, NewLineItemView(item))
		})
}

// UpdateLineItem replaces the fields of a line item on a draft invoice
func (s *InvoiceService) UpdateLineItem(ctx context.Context, tenantID, invoiceID, itemID uuid.UUID, input LineItemInput) (*InvoiceView, error) {
	return s.mutate(ctx, tenantID, invoiceID, "update_line_item", true,
		func(ctx context.Context, inv *invoicing.Invoice, audit *AuditRecorder) error {
			var before any
			if existing, ok := inv.FindLineItem(itemID); ok {
				before = NewLineItemView(existing)
			}
			item, err := inv.UpdateLineItem(itemID, input.ToSpec())
			if err != nil {
				return err
			}
			return audit.Append(ctx, tenantID, invoicing.AuditEntityLineItem, item.ID, invoicing.AuditActionUpdated,
				before, NewLineItemView(item))
		})
}

// DeleteLineItem removes a line item from a draft invoice
func (s *InvoiceService) DeleteLineItem(ctx context.Context, tenantID, invoiceID, itemID uuid.UUID) (*InvoiceView, error) {
	return s.mutate(ctx, tenantID, invoiceID, "delete_line_item", true,
		func(ctx context.Context, inv *invoicing.Invoice, audit *AuditRecorder) error {
			removed, err := inv.RemoveLineItem(itemID)
			if err != nil {
				return err
			}
			return audit.Append(ctx, tenantID, invoicing.AuditEntityLineItem, removed.ID, invoicing.AuditActionDeleted,
				NewLineItemView(removed), nil)
		})
}

// SendInvoice issues a draft invoice to the customer
func (s *InvoiceService) SendInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceView, error) {
	return s.transition(ctx, tenantID, invoiceID, "send", invoicing.AuditActionSent, (*invoicing.Invoice).Send)
}

// CancelInvoice voids an invoice without payments
func (s *InvoiceService) CancelInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceView, error) {
	return s.transition(ctx, tenantID, invoiceID, "cancel", invoicing.AuditActionCancelled, (*invoicing.Invoice).Cancel)
}

// MarkOverdue moves every eligible invoice whose due date is before the
// current time to OVERDUE, at most limit per call. Each invoice is handled in
// its own transaction; an invoice that changed since the scan is skipped.
func (s *InvoiceService) MarkOverdue(ctx context.Context, limit int) (int, error) {
	asOf := s.now()
	refs, err := s.invoiceRepo.FindOverdueCandidates(ctx, asOf, limit)
	if err != nil {
		return 0, err
	}

	marked := 0
	var errs []error
	for _, ref := range refs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, err := s.transition(ctx, ref.TenantID, ref.InvoiceID, "mark_overdue", invoicing.AuditActionOverdue,
			func(inv *invoicing.Invoice) error { return inv.MarkOverdue(asOf) })
		switch {
		case err == nil:
			marked++
		case errors.Is(err, shared.ErrInvalidStateTransition):
			s.logger.Debug("Invoice no longer eligible for overdue",
				zap.String("invoice_id", ref.InvoiceID.String()))
		default:
			s.logger.Error("Failed to mark invoice overdue",
				zap.String("tenant_id", ref.TenantID.String()),
				zap.String("invoice_id", ref.InvoiceID.String()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return marked, errors.Join(errs...)
}

// transition applies a header-only state change and audits the invoice before and after
func (s *InvoiceService) transition(
	ctx context.Context,
	tenantID, invoiceID uuid.UUID,
	name string,
	action invoicing.AuditAction,
	change func(inv *invoicing.Invoice) error,
) (*InvoiceView, error) {
	return s.mutate(ctx, tenantID, invoiceID, name, false,
		func(ctx context.Context, inv *invoicing.Invoice, audit *AuditRecorder) error {
			before := NewInvoiceView(inv)
			if err := change(inv); err != nil {
				return err
			}
			return audit.Append(ctx, tenantID, invoicing.AuditEntityInvoice, inv.ID, action, before, NewInvoiceView(inv))
		})
}

// mutate locks the invoice, applies change and persists the result with a
// version check, retrying on conflict.
func (s *InvoiceService) mutate(
	ctx context.Context,
	tenantID, invoiceID uuid.UUID,
	name string,
	itemsChanged bool,
	change func(ctx context.Context, inv *invoicing.Invoice, audit *AuditRecorder) error,
) (*InvoiceView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", name)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
	)

	if err := shared.RequireTenant(tenantID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		view   *InvoiceView
		events []shared.DomainEvent
	)
	err := s.retry.Run(ctx, func(attempt int) error {
		view, events = nil, nil
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			inv, err := repos.Invoices().FindByIDForUpdate(ctx, tenantID, invoiceID)
			if err != nil {
				return err
			}
			if err := change(ctx, inv, NewAuditRecorder(repos.Audit())); err != nil {
				return err
			}
			if err := repos.Invoices().Save(ctx, inv); err != nil {
				return err
			}
			if itemsChanged {
				if err := repos.Invoices().SaveLineItems(ctx, inv); err != nil {
					return err
				}
			}
			view = NewInvoiceView(inv)
			events = inv.GetDomainEvents()
			return nil
		})
	}, func(err error) {
		s.observer.RecordRetry(ctx, name, err)
		telemetry.RecordRetry(span, err)
		s.logger.Warn("Retrying invoice transaction",
			zap.String("operation", name),
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err),
		)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceStatus, view.Status)
	s.publish(ctx, events)
	return view, nil
}

func (s *InvoiceService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish invoice events", zap.Error(err))
	}
}
