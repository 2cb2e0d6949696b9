package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

func TestChargeSucceeds(t *testing.T) {
	g := NewSimulatedGateway(0)

	ref, err := g.Charge(context.Background(), 210.50, domain.PaymentMethodUPI)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "PAY_"))
	assert.Len(t, ref, 20)
	assert.Equal(t, ref, strings.ToUpper(ref))
}

func TestChargeDeclined(t *testing.T) {
	g := NewSimulatedGateway(1)

	_, err := g.Charge(context.Background(), 100, domain.PaymentMethodCard)
	assert.ErrorIs(t, err, domain.ErrPaymentDeclined)
}

func TestChargeValidation(t *testing.T) {
	g := NewSimulatedGateway(0)

	_, err := g.Charge(context.Background(), 0, domain.PaymentMethodCard)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = g.Charge(context.Background(), 100, domain.PaymentMethod("BARTER"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDeclineRateRoll(t *testing.T) {
	g := NewSimulatedGateway(0.02)

	g.Rand = func() float64 { return 0.019 }
	_, err := g.Charge(context.Background(), 100, domain.PaymentMethodWallet)
	assert.ErrorIs(t, err, domain.ErrPaymentDeclined)

	g.Rand = func() float64 { return 0.021 }
	_, err = g.Charge(context.Background(), 100, domain.PaymentMethodWallet)
	assert.NoError(t, err)
}

func TestRefund(t *testing.T) {
	g := NewSimulatedGateway(0)

	assert.NoError(t, g.Refund(context.Background(), "PAY_ABC", 50))
	assert.ErrorIs(t, g.Refund(context.Background(), "", 50), domain.ErrValidation)
	assert.ErrorIs(t, g.Refund(context.Background(), "PAY_ABC", -1), domain.ErrValidation)
}

func TestReferencesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := NewReference()
		assert.False(t, seen[ref])
		seen[ref] = true
	}
}
