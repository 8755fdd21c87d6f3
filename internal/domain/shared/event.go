package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate and published after commit
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// BaseDomainEvent holds the envelope every event carries. Embed it in
// concrete events so they satisfy DomainEvent.
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	At        time.Time `json:"occurred_at"`
	Aggregate uuid.UUID `json:"aggregate_id"`
	Kind      string    `json:"aggregate_type"`
	Tenant    uuid.UUID `json:"tenant_id"`
}

// NewBaseDomainEvent stamps a new envelope with a fresh ID and the current UTC time
func NewBaseDomainEvent(eventType, aggType string, aggID, tenantID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		At:        time.Now().UTC(),
		Aggregate: aggID,
		Kind:      aggType,
		Tenant:    tenantID,
	}
}

func (e BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e BaseDomainEvent) EventType() string      { return e.Type }
func (e BaseDomainEvent) OccurredAt() time.Time  { return e.At }
func (e BaseDomainEvent) AggregateID() uuid.UUID { return e.Aggregate }
func (e BaseDomainEvent) AggregateType() string  { return e.Kind }
func (e BaseDomainEvent) TenantID() uuid.UUID    { return e.Tenant }

// EventHandler reacts to published events. An empty EventTypes means every type.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher hands committed events to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is a publisher that handlers can subscribe to
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
}
