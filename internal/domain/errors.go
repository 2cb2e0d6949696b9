package domain

import "errors"

// Failure taxonomy shared by the services and the transport layer.
// Everything not wrapping one of these is treated as an internal fault
// and surfaced as a 5xx.
var (
	ErrValidation      = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrCapacity        = errors.New("insufficient seats")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("operation not valid for current state")
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrTransient marks contention that exhausted its retry budget;
	// the caller may retry the whole operation.
	ErrTransient = errors.New("transient contention, retry later")
)
