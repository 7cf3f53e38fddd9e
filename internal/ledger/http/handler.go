// Package http exposes the reservation ledger boundary for cross-process
// deployments: reserve, release, commit and a stock query.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ordersaga/orderflow/internal/audit"
	"github.com/ordersaga/orderflow/internal/ledger"
)

const auditService = "inventory"

type Handler struct {
	log    *slog.Logger
	ledger *ledger.Ledger
	audit  audit.Logger
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, l *ledger.Ledger, auditLog audit.Logger) *Handler {
	return &Handler{
		log:    log,
		ledger: l,
		audit:  auditLog,
		tracer: otel.Tracer("ledger-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/inventory/reserve", h.reserve)
	r.Post("/inventory/release", h.release)
	r.Post("/inventory/commit", h.commit)
	r.Get("/inventory/stock/{sku}", h.stock)
	return r
}

type reserveReq struct {
	OrderID string        `json:"orderId,omitempty"`
	Items   []ledger.Line `json:"items"`
}

type reserveResp struct {
	OK            bool   `json:"ok"`
	ReservationID string `json:"reservationId,omitempty"`
	Reason        string `json:"reason,omitempty"`
	SKU           string `json:"sku,omitempty"`
	Requested     int    `json:"requested,omitempty"`
	Available     int    `json:"available,omitempty"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "Reserve")
	defer span.End()

	var req reserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "items required", http.StatusBadRequest)
		return
	}
	for _, ln := range req.Items {
		if ln.SKU == "" || ln.Qty <= 0 {
			http.Error(w, "each item needs a sku and a positive qty", http.StatusBadRequest)
			return
		}
	}

	id, err := h.ledger.Reserve(req.Items)
	if err != nil {
		var insufficient *ledger.InsufficientError
		if errors.As(err, &insufficient) {
			h.audit.Log(auditService, "warn", "not enough stock", map[string]any{
				"sku":       insufficient.SKU,
				"requested": insufficient.Requested,
				"available": insufficient.Available,
			})
			writeJSON(w, http.StatusConflict, reserveResp{
				OK:        false,
				Reason:    "OUT_OF_STOCK",
				SKU:       insufficient.SKU,
				Requested: insufficient.Requested,
				Available: insufficient.Available,
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.audit.Log(auditService, "info", "reservation created", map[string]any{"reservationId": id})
	writeJSON(w, http.StatusOK, reserveResp{OK: true, ReservationID: id})
}

type consumeReq struct {
	ReservationID string `json:"reservationId"`
}

type consumeResp struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	h.consume(w, r, "Release", h.ledger.Release)
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	h.consume(w, r, "Commit", h.ledger.Commit)
}

func (h *Handler) consume(w http.ResponseWriter, r *http.Request, op string, fn func(string) error) {
	_, span := h.tracer.Start(r.Context(), op)
	defer span.End()

	var req consumeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReservationID == "" {
		http.Error(w, "reservationId required", http.StatusBadRequest)
		return
	}

	if err := fn(req.ReservationID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			h.audit.Log(auditService, "warn", op+" on unknown reservation", map[string]any{
				"reservationId": req.ReservationID,
			})
			writeJSON(w, http.StatusNotFound, consumeResp{OK: false, Reason: "NOT_FOUND"})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.audit.Log(auditService, "info", op+" applied", map[string]any{"reservationId": req.ReservationID})
	writeJSON(w, http.StatusOK, consumeResp{OK: true})
}

type stockResp struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	writeJSON(w, http.StatusOK, stockResp{SKU: sku, Qty: h.ledger.Stock(sku)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
