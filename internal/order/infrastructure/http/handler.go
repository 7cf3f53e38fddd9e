// Package http carries the order API: create runs the saga synchronously,
// the reads serve the orchestrator's order store.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ordersaga/orderflow/internal/order/application"
	"github.com/ordersaga/orderflow/internal/order/domain"
)

type Handler struct {
	log    *slog.Logger
	saga   *application.Orchestrator
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, saga *application.Orchestrator) *Handler {
	return &Handler{
		log:    log,
		saga:   saga,
		tracer: otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderId}", h.getOrder)
	return r
}

type createOrderReq struct {
	Items     []domain.LineItem `json:"items"`
	FirstName string            `json:"firstName"`
	LastName  string            `json:"lastName"`
}

type orderView struct {
	ID            string            `json:"id"`
	Items         []domain.LineItem `json:"items"`
	State         domain.OrderState `json:"state"`
	ReservationID string            `json:"reservationId,omitempty"`
	PaymentID     string            `json:"paymentId,omitempty"`
	Customer      domain.Customer   `json:"customer"`
	Timestamps    timestamps        `json:"timestamps"`
	Warning       string            `json:"warning,omitempty"`
}

type timestamps struct {
	Created string `json:"created"`
	Updated string `json:"updated"`
}

func view(o domain.Order, warning string) orderView {
	return orderView{
		ID:            o.ID,
		Items:         o.Items,
		State:         o.State,
		ReservationID: o.ReservationID,
		PaymentID:     o.PaymentID,
		Customer:      o.Customer,
		Timestamps: timestamps{
			Created: o.CreatedAt.Format(time.RFC3339Nano),
			Updated: o.UpdatedAt.Format(time.RFC3339Nano),
		},
		Warning: warning,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	customer := domain.Customer{FirstName: req.FirstName, LastName: req.LastName}
	result, err := h.saga.CreateOrder(ctx, customer, req.Items)
	if err != nil {
		h.writeSagaError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, view(result.Order, result.NotifyWarning))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	order, err := h.saga.GetOrder(ctx, chi.URLParam(r, "orderId"))
	if err != nil {
		if errors.Is(err, application.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view(order, ""))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	orders, err := h.saga.ListOrders(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, view(o, ""))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": views, "count": len(views)})
}

// writeSagaError maps the saga's error taxonomy onto HTTP statuses:
// validation 400, insufficient stock 409, declined payment 402, gateway
// down 502, ledger down 503.
func (h *Handler) writeSagaError(w http.ResponseWriter, err error) {
	var validation *application.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, application.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrPaymentDeclined):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, application.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, application.ErrLedgerUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("order create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "statusCode": status})
}
