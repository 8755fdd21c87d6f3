package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC.
// Anything other than a case-insensitive "asc" yields DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, otherwise defaultField.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// InvoiceSortFields contains allowed sort fields for invoice listings
var InvoiceSortFields = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"invoice_number": true,
	"issue_date":     true,
	"due_date":       true,
	"total_amount":   true,
	"status":         true,
}
