package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByIDForTenant finds an invoice with its line items within a tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.find(ctx, r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds an invoice and locks its row (SELECT ... FOR UPDATE).
// Must be called inside a transaction; the lock is released on commit or rollback.
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.find(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
}

func (r *GormInvoiceRepository) find(ctx context.Context, query *gorm.DB, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := query.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", id).
		Order("position ASC").
		Find(&model.Items).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists invoices of a tenant without their line items
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("invoice_number LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	page := filter.Filter.Normalize()
	sortField := ValidateSortField(page.OrderBy, InvoiceSortFields, "created_at")
	sortOrder := ValidateSortOrder(page.OrderDir)

	var rows []models.InvoiceModel
	if err := query.
		Order(sortField + " " + sortOrder).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return lo.Map(rows, func(m models.InvoiceModel, _ int) invoicing.Invoice {
		return *m.ToDomain()
	}), total, nil
}

// FindOverdueCandidates returns invoices across all tenants that are past due
// and still in a status that may become OVERDUE, oldest due date first
func (r *GormInvoiceRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]invoicing.InvoiceRef, error) {
	var rows []invoiceRefRow
	query := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("tenant_id, id").
		Where("status IN ? AND due_date < ?", invoicing.OverdueCandidateStatuses(), asOf).
		Order("due_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return lo.Map(rows, func(row invoiceRefRow, _ int) invoicing.InvoiceRef {
		return invoicing.InvoiceRef{TenantID: row.TenantID, InvoiceID: row.ID}
	}), nil
}

type invoiceRefRow struct {
	TenantID uuid.UUID
	ID       uuid.UUID
}

// ExistsByNumber checks if an invoice number is taken within a tenant
func (r *GormInvoiceRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, invoiceNumber).
		Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

// Create inserts a new invoice and its line items
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		return translateError(err)
	}
	if len(model.Items) == 0 {
		return nil
	}
	return translateError(r.db.WithContext(ctx).Create(&model.Items).Error)
}

// Save writes the invoice header guarded by its version. The aggregate has
// already incremented Version, so the stored row must still hold Version-1.
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", inv.TenantID, inv.ID, inv.Version-1).
		Updates(model.HeaderColumns())
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// SaveLineItems replaces the stored line items of an invoice
func (r *GormInvoiceRepository) SaveLineItems(ctx context.Context, inv *invoicing.Invoice) error {
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", inv.ID).
		Delete(&models.InvoiceLineItemModel{}).Error; err != nil {
		return translateError(err)
	}
	items := models.LineItemModelsFromDomain(inv.ID, inv.Items)
	if len(items) == 0 {
		return nil
	}
	return translateError(r.db.WithContext(ctx).Create(&items).Error)
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
