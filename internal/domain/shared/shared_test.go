package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError(t *testing.T) {
	cause := errors.New("pq: could not serialize access")
	err := fmt.Errorf("record payment: %w", WrapDomainError(CodeTransientFailure, "Store busy", cause))

	assert.True(t, errors.Is(err, NewDomainError(CodeTransientFailure, "any message")))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeTransientFailure))
	assert.Equal(t, CodeTransientFailure, CodeOf(err))
	assert.Equal(t, "record payment: Store busy: pq: could not serialize access", err.Error())

	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestRequireTenant(t *testing.T) {
	assert.ErrorIs(t, RequireTenant(uuid.Nil), ErrMissingTenant)
	assert.NoError(t, RequireTenant(uuid.New()))
}

func TestTenantAggregateRoot_Touch(t *testing.T) {
	tenant := uuid.New()
	root := NewTenantAggregateRoot(tenant)
	require.Equal(t, 1, root.Version)
	assert.Equal(t, tenant, root.TenantID)
	assert.NotEqual(t, uuid.Nil, root.ID)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	root.Touch(at)

	assert.Equal(t, 2, root.Version)
	assert.Equal(t, time.UTC, root.UpdatedAt.Location())
	assert.True(t, root.UpdatedAt.Equal(at))
}

func TestAggregateEvents(t *testing.T) {
	root := NewBaseAggregateRoot()
	evt := NewBaseDomainEvent("InvoiceSent", "Invoice", root.ID, uuid.New())
	root.AddDomainEvent(evt)

	require.Len(t, root.GetDomainEvents(), 1)
	assert.Equal(t, "InvoiceSent", root.GetDomainEvents()[0].EventType())
	assert.Equal(t, root.ID, root.GetDomainEvents()[0].AggregateID())

	root.ClearDomainEvents()
	assert.Empty(t, root.GetDomainEvents())
}

func TestFilter_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Filter
		want Filter
	}{
		{"zero value", Filter{}, Filter{Page: 1, PageSize: 20, OrderBy: "created_at", OrderDir: "desc"}},
		{"clamps page size", Filter{Page: 3, PageSize: 500}, Filter{Page: 3, PageSize: 100, OrderBy: "created_at", OrderDir: "desc"}},
		{"keeps ordering", Filter{Page: -2, PageSize: 10, OrderBy: "due_date", OrderDir: "asc"}, Filter{Page: 1, PageSize: 10, OrderBy: "due_date", OrderDir: "asc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}

	assert.Equal(t, 40, Filter{Page: 3, PageSize: 20}.Offset())
}

func TestNewPaginated(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		pages    int
	}{
		{0, 20, 0},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		p := NewPaginated([]int{}, tt.total, 1, tt.pageSize)
		assert.Equal(t, tt.pages, p.TotalPages, "total=%d size=%d", tt.total, tt.pageSize)
	}
}
