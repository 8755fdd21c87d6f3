package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
)

// BaseModel holds the identity and audit columns shared by every table
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (m *BaseModel) entity() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func (m *BaseModel) setEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// TenantAggregateModel adds the owning tenant and the optimistic-lock version.
// Repositories guard every update with "version = expected" on this column.
type TenantAggregateModel struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Version  int       `gorm:"not null;default:1"`
}

func (m *TenantAggregateModel) root() shared.TenantAggregateRoot {
	return shared.TenantAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: m.entity(), Version: m.Version},
		TenantID:          m.TenantID,
	}
}

func (m *TenantAggregateModel) setRoot(r shared.TenantAggregateRoot) {
	m.setEntity(r.BaseEntity)
	m.TenantID = r.TenantID
	m.Version = r.Version
}
