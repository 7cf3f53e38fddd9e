package application

import (
	"errors"
	"fmt"
)

// The saga's error taxonomy. Conflict-class errors mean the order reached
// a terminal failure state and any reservation was compensated; transient
// errors mean the caller may retry by resubmitting.
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInsufficientStock  = errors.New("inventory reservation failed")
	ErrPaymentDeclined    = errors.New("payment failed")
	ErrLedgerUnavailable  = errors.New("inventory service unreachable")
	ErrGatewayUnavailable = errors.New("payment service unreachable")
)

// ValidationError rejects malformed input before any side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order: %s", e.Reason)
}
