package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// GormIdempotencyRepository implements IdempotencyRepository using GORM.
// Uniqueness of (tenant_id, idempotency_key) is enforced by the database.
type GormIdempotencyRepository struct {
	db *gorm.DB
}

// NewGormIdempotencyRepository creates a new GormIdempotencyRepository
func NewGormIdempotencyRepository(db *gorm.DB) *GormIdempotencyRepository {
	return &GormIdempotencyRepository{db: db}
}

// Find returns the ledger record for (tenant, key)
func (r *GormIdempotencyRepository) Find(ctx context.Context, tenantID uuid.UUID, key string) (*invoicing.IdempotencyRecord, error) {
	var model models.IdempotencyRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Create inserts a ledger record; a concurrent insert of the same key yields DuplicateKey
func (r *GormIdempotencyRepository) Create(ctx context.Context, record *invoicing.IdempotencyRecord) error {
	return translateError(r.db.WithContext(ctx).Create(models.IdempotencyRecordModelFromDomain(record)).Error)
}

// GormAuditRepository implements AuditRepository using GORM
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append inserts an audit entry
func (r *GormAuditRepository) Append(ctx context.Context, entry *invoicing.AuditEntry) error {
	return translateError(r.db.WithContext(ctx).Create(models.AuditLogModelFromDomain(entry)).Error)
}

// FindByEntity lists the audit trail of one entity, oldest first
func (r *GormAuditRepository) FindByEntity(ctx context.Context, tenantID uuid.UUID, entityType invoicing.AuditEntityType, entityID uuid.UUID) ([]invoicing.AuditEntry, error) {
	var rows []models.AuditLogModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, entityID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return lo.Map(rows, func(m models.AuditLogModel, _ int) invoicing.AuditEntry {
		return *m.ToDomain()
	}), nil
}

var (
	_ invoicing.IdempotencyRepository = (*GormIdempotencyRepository)(nil)
	_ invoicing.AuditRepository       = (*GormAuditRepository)(nil)
)
