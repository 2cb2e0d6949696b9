package domain

import "time"

type PaymentMethod string

const (
	PaymentMethodUPI        PaymentMethod = "UPI"
	PaymentMethodCard       PaymentMethod = "CARD"
	PaymentMethodWallet     PaymentMethod = "WALLET"
	PaymentMethodNetbanking PaymentMethod = "NETBANKING"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodUPI, PaymentMethodCard, PaymentMethodWallet, PaymentMethodNetbanking:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// Payment is the single payment row of a booking attempt.
type Payment struct {
	ID        int64
	BookingID int64
	Reference string
	Method    PaymentMethod
	Amount    float64
	Status    PaymentStatus
	PaidAt    time.Time
}
