package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByIDForTenant finds a payment by ID within a tenant
func (r *GormPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Payment, error) {
	return r.find(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a payment and locks its row until the transaction ends
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Payment, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
}

func (r *GormPaymentRepository) find(query *gorm.DB, tenantID, id uuid.UUID) (*invoicing.Payment, error) {
	var model models.PaymentModel
	if err := query.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByInvoice lists the payments of an invoice, oldest first
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]invoicing.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return lo.Map(rows, func(m models.PaymentModel, _ int) invoicing.Payment {
		return *m.ToDomain()
	}), nil
}

// ExistsByReference checks if a payment reference is taken within a tenant
func (r *GormPaymentRepository) ExistsByReference(ctx context.Context, tenantID uuid.UUID, reference string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("tenant_id = ? AND payment_reference = ?", tenantID, reference).
		Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

// Create inserts a payment
func (r *GormPaymentRepository) Create(ctx context.Context, payment *invoicing.Payment) error {
	return translateError(r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(payment)).Error)
}

// GormRefundRepository implements RefundRepository using GORM
type GormRefundRepository struct {
	db *gorm.DB
}

// NewGormRefundRepository creates a new GormRefundRepository
func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// SumByPayment returns the total refunded against a payment
func (r *GormRefundRepository) SumByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&models.RefundModel{}).
		Select("SUM(amount)").
		Where("tenant_id = ? AND payment_id = ?", tenantID, paymentID).
		Row().Scan(&sum); err != nil {
		return decimal.Zero, translateError(err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

type refundSumRow struct {
	PaymentID uuid.UUID
	Total     decimal.Decimal
}

// SumByPayments returns refunded totals keyed by payment ID. Payments without
// refunds are absent from the map.
func (r *GormRefundRepository) SumByPayments(ctx context.Context, tenantID uuid.UUID, paymentIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	if len(paymentIDs) == 0 {
		return map[uuid.UUID]decimal.Decimal{}, nil
	}
	var rows []refundSumRow
	if err := r.db.WithContext(ctx).
		Model(&models.RefundModel{}).
		Select("payment_id, SUM(amount) AS total").
		Where("tenant_id = ? AND payment_id IN ?", tenantID, paymentIDs).
		Group("payment_id").
		Scan(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return lo.SliceToMap(rows, func(row refundSumRow) (uuid.UUID, decimal.Decimal) {
		return row.PaymentID, row.Total
	}), nil
}

// FindByPayment lists the refunds of a payment, oldest first
func (r *GormRefundRepository) FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]invoicing.Refund, error) {
	var rows []models.RefundModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND payment_id = ?", tenantID, paymentID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return lo.Map(rows, func(m models.RefundModel, _ int) invoicing.Refund {
		return *m.ToDomain()
	}), nil
}

// Create inserts a refund
func (r *GormRefundRepository) Create(ctx context.Context, refund *invoicing.Refund) error {
	return translateError(r.db.WithContext(ctx).Create(models.RefundModelFromDomain(refund)).Error)
}

var (
	_ invoicing.PaymentRepository = (*GormPaymentRepository)(nil)
	_ invoicing.RefundRepository  = (*GormRefundRepository)(nil)
)
