// Package payment abstracts the payment provider. The simulated
// gateway stands in for a real acquirer and declines a configurable
// fraction of charges.
package payment

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

// Gateway authorizes and refunds charges. Charge returns an opaque
// provider reference on success and domain.ErrPaymentDeclined when the
// provider rejects the charge.
type Gateway interface {
	Charge(ctx context.Context, amount float64, method domain.PaymentMethod) (string, error)
	Refund(ctx context.Context, reference string, amount float64) error
}

// SimulatedGateway approves charges with probability 1-declineRate.
type SimulatedGateway struct {
	declineRate float64

	// Rand is the approval roll, replaceable in tests.
	Rand func() float64
}

func NewSimulatedGateway(declineRate float64) *SimulatedGateway {
	if declineRate < 0 {
		declineRate = 0
	}
	if declineRate > 1 {
		declineRate = 1
	}
	return &SimulatedGateway{declineRate: declineRate, Rand: rand.Float64}
}

func (g *SimulatedGateway) Charge(_ context.Context, amount float64, method domain.PaymentMethod) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("charge amount must be positive: %w", domain.ErrValidation)
	}
	if !method.Valid() {
		return "", fmt.Errorf("payment method %q: %w", method, domain.ErrValidation)
	}
	if g.Rand() < g.declineRate {
		return "", fmt.Errorf("%s charge of %.2f: %w", method, amount, domain.ErrPaymentDeclined)
	}
	return NewReference(), nil
}

func (g *SimulatedGateway) Refund(_ context.Context, reference string, amount float64) error {
	if reference == "" {
		return fmt.Errorf("missing payment reference: %w", domain.ErrValidation)
	}
	if amount < 0 {
		return fmt.Errorf("refund amount must not be negative: %w", domain.ErrValidation)
	}
	return nil
}

// NewReference builds a provider-style reference such as
// "PAY_9F86D081884C7D65".
func NewReference() string {
	u := uuid.New()
	return "PAY_" + strings.ToUpper(hex.EncodeToString(u[:8]))
}

var _ Gateway = (*SimulatedGateway)(nil)
