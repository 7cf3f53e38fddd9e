package domain

import "time"

// FulfillmentRequested is the one-way event published once an order is
// paid. No response is awaited.
type FulfillmentRequested struct {
	OrderID       string     `json:"orderId"`
	ReservationID string     `json:"reservationId"`
	Items         []LineItem `json:"items"`
	Customer      Customer   `json:"customer"`
	OccurredAt    time.Time  `json:"occurredAt"`
}
