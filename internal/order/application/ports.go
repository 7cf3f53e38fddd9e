package application

import (
	"context"

	"github.com/ordersaga/orderflow/internal/ledger"
	"github.com/ordersaga/orderflow/internal/order/domain"
)

// OrderStore holds order records for the lifetime of the process. Get
// returns ErrOrderNotFound for unknown ids. Implementations must be safe
// for concurrent orders.
type OrderStore interface {
	Save(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

// StockLedger is the reservation ledger boundary. Reserve surfaces
// *ledger.InsufficientError for a covered shortfall and any other error
// for a transport failure; Release and Commit surface ledger.ErrNotFound
// for an already-consumed id.
type StockLedger interface {
	Reserve(ctx context.Context, lines []ledger.Line) (string, error)
	Release(ctx context.Context, reservationID string) error
	Commit(ctx context.Context, reservationID string) error
	Stock(ctx context.Context, sku string) (int, error)
}

// PaymentRequest is the boundary contract consumed from the payment
// authority.
type PaymentRequest struct {
	OrderID     string            `json:"orderId"`
	Items       []domain.LineItem `json:"items"`
	Customer    domain.Customer   `json:"customer"`
	AmountCents int64             `json:"amount"`
}

// PaymentResult reports the authority's verdict. Success=false covers
// declines and unknown customer/product conditions alike; transport
// failures are returned as errors instead.
type PaymentResult struct {
	Success      bool   `json:"success"`
	PaymentID    string `json:"paymentId,omitempty"`
	Reason       string `json:"reason,omitempty"`
	BalanceCents int64  `json:"balance,omitempty"`
}

type PaymentGateway interface {
	Authorize(ctx context.Context, req PaymentRequest) (PaymentResult, error)
}

// FulfillmentNotifier is fire-and-forget: a returned error is surfaced as
// a warning, never rolled back into the saga.
type FulfillmentNotifier interface {
	OrderReady(ctx context.Context, evt domain.FulfillmentRequested) error
}
