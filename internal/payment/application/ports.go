package application

import (
	"context"

	"github.com/ordersaga/orderflow/internal/payment/domain"
)

// PaymentRepository persists payment records. Get returns
// ErrPaymentNotFound for unknown ids.
type PaymentRepository interface {
	Save(ctx context.Context, p domain.Payment) error
	Get(ctx context.Context, paymentID string) (domain.Payment, error)
	GetByOrder(ctx context.Context, orderID string) (domain.Payment, error)
}

// Deduper guards against double-charging an order when the caller
// resubmits; the redis-backed store implements it.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	PaymentKey(orderID string) string
}
