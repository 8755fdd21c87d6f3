package event

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/invoicing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus dispatches committed domain events to in-process handlers.
//
// Events are published after the owning transaction commits, so a failing
// handler cannot undo the mutation. Handler errors and panics are logged and
// the remaining handlers still run.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	stopped  atomic.Bool
	failures atomic.Int64
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// Publish delivers events synchronously in order. It never fails; once the
// bus is stopped events are dropped.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.stopped.Load() {
		b.logger.Warn("Event bus stopped, dropping events", zap.Int("count", len(events)))
		return nil
	}
	for _, event := range events {
		for _, handler := range b.registry.HandlersFor(event.EventType()) {
			if err := b.dispatch(ctx, handler, event); err != nil {
				b.failures.Add(1)
				b.logger.Error("Event handler failed",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.String("aggregate_id", event.AggregateID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers handler for eventTypes, falling back to the handler's own EventTypes
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Event handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Stop makes further Publish calls no-ops. Publishing is synchronous, so no
// deliveries are in flight once the callers have returned.
func (b *InMemoryEventBus) Stop(context.Context) error {
	if b.stopped.CompareAndSwap(false, true) {
		b.logger.Info("Event bus stopped", zap.Int64("handler_failures", b.failures.Load()))
	}
	return nil
}

// Failures returns how many handler invocations failed since creation
func (b *InMemoryEventBus) Failures() int64 {
	return b.failures.Load()
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
