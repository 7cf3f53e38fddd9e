package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderState is the saga's state machine. CANCELLED, PAYMENT_FAILED and
// FULFILLMENT_REQUESTED are terminal; RESERVED and PAID are transient and
// must never be the state an order is left in when control returns to the
// caller.
type OrderState string

const (
	StateReceived             OrderState = "RECEIVED"
	StateReserved             OrderState = "RESERVED"
	StatePaymentFailed        OrderState = "PAYMENT_FAILED"
	StatePaid                 OrderState = "PAID"
	StateFulfillmentRequested OrderState = "FULFILLMENT_REQUESTED"
	StateCancelled            OrderState = "CANCELLED"
)

// Terminal reports whether no further transition occurs from s.
func (s OrderState) Terminal() bool {
	switch s {
	case StateCancelled, StatePaymentFailed, StateFulfillmentRequested:
		return true
	}
	return false
}

// LineItem is one ordered position. PriceCents may be zero when the
// payment authority resolves prices from its own catalog.
type LineItem struct {
	ProductID  int64 `json:"productId"`
	Quantity   int   `json:"quantity"`
	PriceCents int64 `json:"pricePerUnit"`
}

// SKU maps the product identifier to the stock keeping unit the ledger is
// addressed by.
func (li LineItem) SKU() string {
	return fmt.Sprintf("SKU-%d", li.ProductID)
}

type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Order is owned exclusively by the orchestrator handling it. It holds at
// most one live reservation at a time.
type Order struct {
	ID            string
	Items         []LineItem
	State         OrderState
	ReservationID string
	PaymentID     string
	Customer      Customer
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOrder builds an order in the initial RECEIVED state.
func NewOrder(customer Customer, items []LineItem) Order {
	now := time.Now().UTC()
	return Order{
		ID:        uuid.NewString(),
		Items:     items,
		State:     StateReceived,
		Customer:  customer,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TotalCents sums unitPrice × quantity over the line items.
func (o Order) TotalCents() int64 {
	var total int64
	for _, item := range o.Items {
		total += int64(item.Quantity) * item.PriceCents
	}
	return total
}
