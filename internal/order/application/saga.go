// Package application drives the order fulfillment saga: reserve stock,
// authorize payment, compensate on failure, hand off to fulfillment.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ordersaga/orderflow/internal/audit"
	"github.com/ordersaga/orderflow/internal/ledger"
	"github.com/ordersaga/orderflow/internal/order/domain"
	"github.com/ordersaga/orderflow/pkg/metrics"
)

const auditService = "oms"

// Orchestrator sequences the saga for one order at a time. Every code
// path from RECEIVED ends in a terminal state or a typed transient error;
// the orchestrator never parks an order in RESERVED or PAID.
type Orchestrator struct {
	log      *slog.Logger
	store    OrderStore
	ledger   StockLedger
	gateway  PaymentGateway
	notifier FulfillmentNotifier
	audit    audit.Logger
	metrics  *metrics.SagaMetrics
	timeout  time.Duration
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithMetrics attaches saga counters. Without it, nothing is recorded.
func WithMetrics(m *metrics.SagaMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithCallTimeout bounds each external call (ledger, gateway, notifier).
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func NewOrchestrator(
	log *slog.Logger,
	store OrderStore,
	stockLedger StockLedger,
	gateway PaymentGateway,
	notifier FulfillmentNotifier,
	auditLog audit.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		log:      log,
		store:    store,
		ledger:   stockLedger,
		gateway:  gateway,
		notifier: notifier,
		audit:    auditLog,
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateResult carries the final order record plus any non-fatal warning
// (today only a failed fulfillment notification).
type CreateResult struct {
	Order         domain.Order
	NotifyWarning string
}

// CreateOrder runs the saga synchronously and returns once the order has
// reached a terminal state or a transient error occurred. Once stock is
// reserved the saga keeps running on a context detached from the caller,
// so an abandoned request still gets driven to a terminal state and no
// compensation is skipped.
func (o *Orchestrator) CreateOrder(ctx context.Context, customer domain.Customer, items []domain.LineItem) (CreateResult, error) {
	if err := validateItems(items); err != nil {
		return CreateResult{}, err
	}

	order := domain.NewOrder(customer, items)
	if err := o.store.Save(ctx, order); err != nil {
		return CreateResult{}, err
	}
	o.audit.Log(auditService, "info", "order received", map[string]any{"orderId": order.ID})

	order, err := o.reserve(ctx, order)
	if err != nil {
		return CreateResult{}, err
	}

	// The caller may disconnect while payment is in flight; compensation
	// and state transitions must still run.
	sagaCtx := context.WithoutCancel(ctx)

	order, err = o.pay(sagaCtx, order)
	if err != nil {
		return CreateResult{}, err
	}

	order, warning := o.requestFulfillment(sagaCtx, order)
	o.countOutcome("fulfillment_requested")
	return CreateResult{Order: order, NotifyWarning: warning}, nil
}

// GetOrder returns the order record, ErrOrderNotFound if unknown.
func (o *Orchestrator) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := o.store.Get(ctx, id)
	if err != nil {
		o.audit.Log(auditService, "warn", "order not found", map[string]any{"orderId": id})
		return domain.Order{}, err
	}
	return order, nil
}

// ListOrders returns every order this process has handled.
func (o *Orchestrator) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return o.store.List(ctx)
}

func validateItems(items []domain.LineItem) error {
	if len(items) == 0 {
		return &ValidationError{Reason: "order has no line items"}
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return &ValidationError{Reason: fmt.Sprintf("quantity for product %d must be positive", item.ProductID)}
		}
		if item.PriceCents < 0 {
			return &ValidationError{Reason: fmt.Sprintf("price for product %d must not be negative", item.ProductID)}
		}
	}
	return nil
}

func (o *Orchestrator) reserve(ctx context.Context, order domain.Order) (domain.Order, error) {
	lines := make([]ledger.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, ledger.Line{SKU: item.SKU(), Qty: item.Quantity})
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	reservationID, err := o.ledger.Reserve(callCtx, lines)
	o.observeStep("reserve", start)

	if err != nil {
		var insufficient *ledger.InsufficientError
		if errors.As(err, &insufficient) {
			order.State = domain.StateCancelled
			order = o.save(ctx, order)
			o.audit.Log(auditService, "warn", "order rejected, insufficient stock", map[string]any{
				"orderId":   order.ID,
				"sku":       insufficient.SKU,
				"requested": insufficient.Requested,
				"available": insufficient.Available,
			})
			o.countOutcome("cancelled")
			return order, fmt.Errorf("%w: %w", ErrInsufficientStock, insufficient)
		}
		// Transport failure: the order stays in RECEIVED and the caller
		// may retry by resubmitting.
		o.log.Error("ledger unreachable", "order_id", order.ID, "err", err)
		o.audit.Log(auditService, "error", "inventory service unreachable", map[string]any{"orderId": order.ID})
		return order, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	order.ReservationID = reservationID
	order.State = domain.StateReserved
	order = o.save(ctx, order)
	o.audit.Log(auditService, "info", "stock reserved", map[string]any{
		"orderId":       order.ID,
		"reservationId": reservationID,
	})
	return order, nil
}

func (o *Orchestrator) pay(ctx context.Context, order domain.Order) (domain.Order, error) {
	req := PaymentRequest{
		OrderID:     order.ID,
		Items:       order.Items,
		Customer:    order.Customer,
		AmountCents: order.TotalCents(),
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	result, err := o.gateway.Authorize(callCtx, req)
	o.observeStep("payment", start)

	if err != nil {
		o.compensate(ctx, order)
		order.State = domain.StateCancelled
		order = o.save(ctx, order)
		o.log.Error("payment gateway unreachable", "order_id", order.ID, "err", err)
		o.audit.Log(auditService, "error", "payment service unreachable", map[string]any{"orderId": order.ID})
		o.countOutcome("cancelled")
		return order, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if !result.Success {
		o.compensate(ctx, order)
		order.State = domain.StatePaymentFailed
		order = o.save(ctx, order)
		o.audit.Log(auditService, "warn", "payment declined", map[string]any{
			"orderId": order.ID,
			"reason":  result.Reason,
		})
		o.countOutcome("payment_failed")
		return order, fmt.Errorf("%w: %s", ErrPaymentDeclined, result.Reason)
	}

	order.PaymentID = result.PaymentID
	order.State = domain.StatePaid
	order = o.save(ctx, order)
	o.audit.Log(auditService, "info", "payment authorized", map[string]any{
		"orderId":   order.ID,
		"paymentId": result.PaymentID,
	})
	return order, nil
}

func (o *Orchestrator) requestFulfillment(ctx context.Context, order domain.Order) (domain.Order, string) {
	evt := domain.FulfillmentRequested{
		OrderID:       order.ID,
		ReservationID: order.ReservationID,
		Items:         order.Items,
		Customer:      order.Customer,
		OccurredAt:    time.Now().UTC(),
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	err := o.notifier.OrderReady(callCtx, evt)
	o.observeStep("notify", start)

	var warning string
	if err != nil {
		// Payment is already captured; rolling it back here would need a
		// second compensating transaction this saga does not attempt.
		warning = "fulfillment notification failed; order will be re-published by reconciliation"
		o.log.Warn("fulfillment notify failed", "order_id", order.ID, "err", err)
		o.audit.Log(auditService, "warn", "fulfillment notify failed", map[string]any{"orderId": order.ID})
	} else {
		o.audit.Log(auditService, "info", "order sent to fulfillment", map[string]any{
			"orderId":       order.ID,
			"reservationId": order.ReservationID,
		})
	}

	order.State = domain.StateFulfillmentRequested
	order = o.save(ctx, order)
	return order, warning
}

// compensate releases the order's reservation. It runs only when a
// reservation exists and payment did not reach PAID; a failed release is
// logged and accepted rather than blocking the caller.
func (o *Orchestrator) compensate(ctx context.Context, order domain.Order) {
	if order.ReservationID == "" {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := o.ledger.Release(callCtx, order.ReservationID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			o.log.Warn("release of unknown reservation", "order_id", order.ID, "reservation_id", order.ReservationID)
			return
		}
		o.log.Error("compensating release failed", "order_id", order.ID, "reservation_id", order.ReservationID, "err", err)
		o.audit.Log(auditService, "error", "compensating release failed", map[string]any{
			"orderId":       order.ID,
			"reservationId": order.ReservationID,
		})
		return
	}
	if o.metrics != nil {
		o.metrics.Released.Inc()
	}
	o.audit.Log(auditService, "info", "reservation released", map[string]any{
		"orderId":       order.ID,
		"reservationId": order.ReservationID,
	})
}

func (o *Orchestrator) save(ctx context.Context, order domain.Order) domain.Order {
	order.UpdatedAt = time.Now().UTC()
	if err := o.store.Save(ctx, order); err != nil {
		o.log.Error("order save failed", "order_id", order.ID, "err", err)
	}
	return order
}

func (o *Orchestrator) observeStep(step string, start time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveStep(step, start)
	}
}

func (o *Orchestrator) countOutcome(outcome string) {
	if o.metrics != nil {
		o.metrics.Orders.WithLabelValues(outcome).Inc()
	}
}
