package invoicing

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
	InvoiceStatusRefunded      InvoiceStatus = "REFUNDED"
)

// IsValid checks if the status is a known value
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPartiallyPaid, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusCancelled, InvoiceStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsEditable reports whether line items may be added, changed or removed
func (s InvoiceStatus) IsEditable() bool {
	return s == InvoiceStatusDraft
}

// AcceptsPayment reports whether a payment may be applied in this status
func (s InvoiceStatus) AcceptsPayment() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusOverdue, InvoiceStatusPartiallyPaid:
		return true
	}
	return false
}

// AcceptsRefund reports whether a refund may be reconciled in this status.
// Only statuses that can carry a non-zero paid amount qualify.
func (s InvoiceStatus) AcceptsRefund() bool {
	switch s {
	case InvoiceStatusPaid, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// CanBecomeOverdue reports whether the overdue sweep may move this status to OVERDUE
func (s InvoiceStatus) CanBecomeOverdue() bool {
	return s == InvoiceStatusSent || s == InvoiceStatusPartiallyPaid
}

// CanCancel reports whether the invoice may be cancelled from this status
func (s InvoiceStatus) CanCancel() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusOverdue:
		return true
	}
	return false
}

// OverdueCandidateStatuses lists the statuses scanned by the overdue sweep
func OverdueCandidateStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceStatusSent, InvoiceStatusPartiallyPaid}
}
