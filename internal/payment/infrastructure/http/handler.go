// Package http serves the payment authority's REST boundary.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ordersaga/orderflow/internal/payment/application"
	"github.com/ordersaga/orderflow/internal/payment/domain"
)

type Handler struct {
	log    *slog.Logger
	svc    *application.Service
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, svc *application.Service) *Handler {
	return &Handler{
		log:    log,
		svc:    svc,
		tracer: otel.Tracer("payment-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/payments", h.authorize)
	r.Get("/payments/{paymentId}", h.get)
	r.Post("/payments/{paymentId}/capture", h.capture)
	r.Post("/payments/{paymentId}/refund", h.refund)
	return r
}

type authorizeReq struct {
	OrderID  string `json:"orderId"`
	Customer struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"customer"`
	Items []struct {
		ProductID  int64 `json:"productId"`
		Quantity   int   `json:"quantity"`
		PriceCents int64 `json:"pricePerUnit"`
	} `json:"items"`
	AmountCents int64 `json:"amount"`
	Capture     *bool `json:"capture,omitempty"`
}

type authorizeResp struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Balance   int64  `json:"balance,omitempty"`
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AuthorizePayment")
	defer span.End()

	var req authorizeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" {
		http.Error(w, "orderId required", http.StatusBadRequest)
		return
	}
	if req.AmountCents < 0 {
		http.Error(w, "amount must not be negative", http.StatusBadRequest)
		return
	}

	items := make([]application.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, application.LineItem{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			PriceCents: it.PriceCents,
		})
	}

	result, err := h.svc.Authorize(ctx, application.AuthorizeRequest{
		OrderID:     req.OrderID,
		FirstName:   req.Customer.FirstName,
		LastName:    req.Customer.LastName,
		Items:       items,
		AmountCents: req.AmountCents,
		Capture:     req.Capture,
	})
	if err != nil {
		h.log.Error("authorize failed", "order_id", req.OrderID, "err", err)
		http.Error(w, "payment processing error", http.StatusInternalServerError)
		return
	}

	// Declines are a 200 with success=false: the verdict itself is the
	// payload, not an HTTP failure.
	writeJSON(w, http.StatusOK, authorizeResp{
		Success:   result.Success,
		PaymentID: result.PaymentID,
		Reason:    result.Reason,
		Balance:   result.BalanceCents,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentView(p))
}

func (h *Handler) capture(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CapturePayment")
	defer span.End()

	p, err := h.svc.Capture(ctx, chi.URLParam(r, "paymentId"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentView(p))
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RefundPayment")
	defer span.End()

	var body struct {
		AmountCents int64 `json:"amount"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	p, err := h.svc.Refund(ctx, chi.URLParam(r, "paymentId"), body.AmountCents)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentView(p))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrPaymentNotFound):
		http.Error(w, "payment not found", http.StatusNotFound)
	case errors.Is(err, application.ErrWrongStatus):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error("payment request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func paymentView(p domain.Payment) map[string]any {
	return map[string]any{
		"paymentId":      p.ID,
		"orderId":        p.OrderID,
		"amount":         p.AmountCents,
		"capturedAmount": p.CapturedCents,
		"refundedAmount": p.RefundedCents,
		"status":         p.Status,
		"createdAt":      p.CreatedAt,
		"updatedAt":      p.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
