package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and audit timestamps. Timestamps are UTC.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity creates a base entity with a fresh ID
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// BaseAggregateRoot adds the optimistic-lock version and the pending event
// buffer. Version starts at 1 and moves by exactly one per persisted mutation.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

// NewBaseAggregateRoot creates a version 1 aggregate with no pending events
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// Touch records a mutation: UpdatedAt moves to at and Version is bumped.
func (a *BaseAggregateRoot) Touch(at time.Time) {
	a.UpdatedAt = at.UTC()
	a.Version++
}

// AddDomainEvent buffers an event until the owning transaction commits
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// TenantAggregateRoot is an aggregate owned by exactly one tenant.
// A row owned by another tenant is indistinguishable from a missing one.
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID uuid.UUID
}

// NewTenantAggregateRoot creates a new tenant-scoped aggregate root
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{BaseAggregateRoot: NewBaseAggregateRoot(), TenantID: tenantID}
}

// RequireTenant returns ErrMissingTenant when tenantID is the zero UUID.
func RequireTenant(tenantID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrMissingTenant
	}
	return nil
}
