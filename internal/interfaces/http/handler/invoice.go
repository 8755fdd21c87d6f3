package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appinv "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
)

// InvoiceOperations is the part of the invoice service the handler uses
type InvoiceOperations interface {
	CreateInvoice(ctx context.Context, tenantID uuid.UUID, req appinv.CreateInvoiceRequest) (*appinv.InvoiceView, error)
	GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appinv.InvoiceView, error)
	ListInvoices(ctx context.Context, tenantID uuid.UUID, req appinv.ListInvoicesRequest) (shared.Paginated[appinv.InvoiceSummaryView], error)
	AddLineItem(ctx context.Context, tenantID, invoiceID uuid.UUID, input appinv.LineItemInput) (*appinv.InvoiceView, error)
	UpdateLineItem(ctx context.Context, tenantID, invoiceID, itemID uuid.UUID, input appinv.LineItemInput) (*appinv.InvoiceView, error)
	DeleteLineItem(ctx context.Context, tenantID, invoiceID, itemID uuid.UUID) (*appinv.InvoiceView, error)
	SendInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appinv.InvoiceView, error)
	CancelInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appinv.InvoiceView, error)
}

// InvoiceHandler serves the invoice and line item endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices InvoiceOperations
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices InvoiceOperations) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var body dto.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.HandleBindError(c, err)
		return
	}
	req, err := body.ToRequest()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	view, err := h.invoices.CreateInvoice(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, view)
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var query dto.ListInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.HandleBindError(c, err)
		return
	}

	page, err := h.invoices.ListInvoices(c.Request.Context(), tenantID(c), query.ToRequest())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	view, err := h.invoices.GetInvoice(c.Request.Context(), tenantID(c), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// AddItem handles POST /invoices/:id/items
func (h *InvoiceHandler) AddItem(c *gin.Context) {
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var body dto.LineItemRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.HandleBindError(c, err)
		return
	}

	view, err := h.invoices.AddLineItem(c.Request.Context(), tenantID(c), invoiceID, body.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, view)
}

// UpdateItem handles PUT /invoices/:id/items/:itemId
func (h *InvoiceHandler) UpdateItem(c *gin.Context) {
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathUUID(c, "itemId")
	if !ok {
		return
	}
	var body dto.LineItemRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.HandleBindError(c, err)
		return
	}

	view, err := h.invoices.UpdateLineItem(c.Request.Context(), tenantID(c), invoiceID, itemID, body.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// DeleteItem handles DELETE /invoices/:id/items/:itemId and returns the
// recalculated invoice
func (h *InvoiceHandler) DeleteItem(c *gin.Context) {
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathUUID(c, "itemId")
	if !ok {
		return
	}

	view, err := h.invoices.DeleteLineItem(c.Request.Context(), tenantID(c), invoiceID, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Send handles POST /invoices/:id/send
func (h *InvoiceHandler) Send(c *gin.Context) {
	h.transition(c, h.invoices.SendInvoice)
}

// Cancel handles POST /invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	h.transition(c, h.invoices.CancelInvoice)
}

func (h *InvoiceHandler) transition(c *gin.Context, op func(context.Context, uuid.UUID, uuid.UUID) (*appinv.InvoiceView, error)) {
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	view, err := op(c.Request.Context(), tenantID(c), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}
