package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appinv "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
)

// PaymentOperations is the part of the payment service the handler uses
type PaymentOperations interface {
	RecordPayment(ctx context.Context, tenantID uuid.UUID, req appinv.RecordPaymentRequest) (*appinv.MutationResult, error)
	RefundPayment(ctx context.Context, tenantID uuid.UUID, req appinv.RefundPaymentRequest) (*appinv.MutationResult, error)
	ListPayments(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]appinv.PaymentView, error)
}

// PaymentHandler serves the payment and refund endpoints. Successful
// payments and refunds answer with the stored invoice bytes, so a retried
// request sees exactly what the first one saw.
type PaymentHandler struct {
	BaseHandler
	payments PaymentOperations
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentOperations) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Record handles POST /invoices/:id/payments. The route must run behind
// middleware.IdempotencyKey(true).
func (h *PaymentHandler) Record(c *gin.Context) {
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var body dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.HandleBindError(c, err)
		return
	}

	key := middleware.GetIdempotencyKey(c)
	result, err := h.payments.RecordPayment(c.Request.Context(), tenantID(c), body.ToRequest(invoiceID, key))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.RawCreated(c, result.Body, result.Replayed)
}

// List handles GET /invoices/:id/payments
func (h *PaymentHandler) List(c *gin.Context) {
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	payments, err := h.payments.ListPayments(c.Request.Context(), tenantID(c), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// Refund handles POST /payments/:id/refunds. The Idempotency-Key header is
// optional; without it the refund is not deduplicated.
func (h *PaymentHandler) Refund(c *gin.Context) {
	paymentID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var body dto.RefundPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.HandleBindError(c, err)
		return
	}

	key := middleware.GetIdempotencyKey(c)
	result, err := h.payments.RefundPayment(c.Request.Context(), tenantID(c), body.ToRequest(paymentID, key))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.RawCreated(c, result.Body, result.Replayed)
}
