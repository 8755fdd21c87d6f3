package invoicing

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayment(t *testing.T) {
	inv := newSentInvoice(t)

	p, err := NewPayment(inv, dec("50"), "  WIRE-123 ")
	require.NoError(t, err)
	assert.Equal(t, inv.TenantID, p.TenantID)
	assert.Equal(t, inv.ID, p.InvoiceID)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, PaymentStatusReceived, p.Status)
	require.NotNil(t, p.Reference)
	assert.Equal(t, "WIRE-123", *p.Reference)

	p, err = NewPayment(inv, dec("50"), "")
	require.NoError(t, err)
	assert.Nil(t, p.Reference)

	_, err = NewPayment(inv, dec("50"), strings.Repeat("r", MaxReferenceLength+1))
	assert.ErrorIs(t, err, shared.ErrValidationFailed)
}

func TestNewRefund(t *testing.T) {
	payment := &Payment{ID: uuid.New(), TenantID: uuid.New(), InvoiceID: uuid.New(), Amount: dec("100"), Currency: "USD"}

	t.Run("within refundable amount", func(t *testing.T) {
		r, err := NewRefund(payment, dec("40"), dec("60"), "customer request")
		require.NoError(t, err)
		assert.Equal(t, payment.ID, r.PaymentID)
		assert.Equal(t, payment.InvoiceID, r.InvoiceID)
		assert.True(t, r.Amount.Equal(dec("40")))
	})

	t.Run("cumulative refunds exceed payment", func(t *testing.T) {
		_, err := NewRefund(payment, dec("40.01"), dec("60"), "")
		assert.ErrorIs(t, err, shared.ErrAmountExceedsBalance)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := NewRefund(payment, decimal.Zero, decimal.Zero, "")
		assert.ErrorIs(t, err, shared.ErrValidationFailed)
	})

	assert.True(t, payment.RefundableAmount(dec("30")).Equal(dec("70")))
}

func TestIdempotencyRecord_CheckReplay(t *testing.T) {
	rec := NewIdempotencyRecord(uuid.New(), "abc", OperationRecordPayment, "fp-1", uuid.New(), []byte(`{"id":"x"}`))

	assert.NoError(t, rec.CheckReplay(OperationRecordPayment, "fp-1"))
	assert.ErrorIs(t, rec.CheckReplay(OperationRecordPayment, "fp-2"), shared.ErrValidationFailed)
	assert.ErrorIs(t, rec.CheckReplay(OperationRefundPayment, "fp-1"), shared.ErrValidationFailed)
}

func TestNormalizeIdempotencyKey(t *testing.T) {
	key, err := NormalizeIdempotencyKey(" abc ")
	require.NoError(t, err)
	assert.Equal(t, "abc", key)

	_, err = NormalizeIdempotencyKey("")
	assert.ErrorIs(t, err, shared.ErrValidationFailed)

	_, err = NormalizeIdempotencyKey(strings.Repeat("k", MaxIdempotencyKeyLength+1))
	assert.ErrorIs(t, err, shared.ErrValidationFailed)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, int32(2), MinorUnits("USD"))
	assert.Equal(t, int32(0), MinorUnits("JPY"))
	assert.Equal(t, int32(3), MinorUnits("BHD"))

	assert.True(t, RoundMoney(dec("2.345"), "USD").Equal(dec("2.35")))
	assert.True(t, RoundMoney(dec("2.344"), "USD").Equal(dec("2.34")))
	assert.True(t, RoundMoney(dec("2.5"), "JPY").Equal(dec("3")))

	assert.True(t, HasExcessPrecision(dec("1.001"), "USD"))
	assert.False(t, HasExcessPrecision(dec("1.10"), "USD"))

	code, err := NormalizeCurrency(" eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", code)
}
