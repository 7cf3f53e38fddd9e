// Package application implements the payment authority: authorize against
// account balances, capture, refund. The saga consumes only Authorize;
// capture and refund exist for the payment lifecycle's own API.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ordersaga/orderflow/internal/payment/domain"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrWrongStatus     = errors.New("wrong payment status")
)

// Decline reasons surfaced to the orchestrator. Unknown customer and
// unknown product are declines, not transport errors: they are not
// retryable and go straight to compensation.
const (
	ReasonUnknownCustomer   = "UNKNOWN_CUSTOMER"
	ReasonUnknownProduct    = "UNKNOWN_PRODUCT"
	ReasonInsufficientFunds = "INSUFFICIENT_FUNDS"
)

// AuthorizeRequest mirrors the payment boundary contract.
type AuthorizeRequest struct {
	OrderID     string
	FirstName   string
	LastName    string
	Items       []LineItem
	AmountCents int64
	Capture     *bool
}

type LineItem struct {
	ProductID  int64
	Quantity   int
	PriceCents int64
}

type AuthorizeResult struct {
	Success      bool
	PaymentID    string
	Reason       string
	BalanceCents int64
}

// Service holds customer accounts and a product catalog in memory and
// persists payment records through the repository. Balance mutation is
// serialized by one mutex.
type Service struct {
	log     *slog.Logger
	repo    PaymentRepository
	dedupe  Deduper
	mu      sync.Mutex
	balance map[string]int64
	catalog map[int64]int64
}

func NewService(log *slog.Logger, repo PaymentRepository, dedupe Deduper) *Service {
	return &Service{
		log:     log,
		repo:    repo,
		dedupe:  dedupe,
		balance: make(map[string]int64),
		catalog: make(map[int64]int64),
	}
}

// SetBalance seeds or replaces a customer account.
func (s *Service) SetBalance(firstName, lastName string, cents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance[accountKey(firstName, lastName)] = cents
}

// SetPrice seeds the catalog price for a product.
func (s *Service) SetPrice(productID, cents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog[productID] = cents
}

func accountKey(firstName, lastName string) string {
	return strings.ToLower(strings.TrimSpace(firstName) + "." + strings.TrimSpace(lastName))
}

// Authorize renders a verdict for the order: deterministic total, balance
// check, durable payment record. Repeated calls for the same order return
// the already-recorded outcome instead of charging twice; the durable
// record is consulted even when no dedupe store is configured.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error) {
	if s.dedupe != nil {
		seen, err := s.dedupe.Seen(ctx, s.dedupe.PaymentKey(req.OrderID))
		if err != nil {
			s.log.Error("payment dedupe check failed", "order_id", req.OrderID, "err", err)
		} else if seen {
			return s.replay(ctx, req.OrderID)
		}
	}

	existing, err := s.repo.GetByOrder(ctx, req.OrderID)
	switch {
	case err == nil:
		s.log.Info("duplicate authorization replayed", "order_id", req.OrderID, "payment_id", existing.ID)
		return verdict(existing), nil
	case !errors.Is(err, ErrPaymentNotFound):
		return AuthorizeResult{}, fmt.Errorf("lookup payment for order %s: %w", req.OrderID, err)
	}

	amount, reason := s.resolveAmount(req)
	account := accountKey(req.FirstName, req.LastName)
	if reason == "" {
		reason = s.debit(account, amount)
	}

	now := time.Now().UTC()
	p := domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     req.OrderID,
		AmountCents: amount,
		Status:      domain.StatusFailed,
		Reason:      reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if reason == "" {
		if req.Capture == nil || *req.Capture {
			p.Status = domain.StatusCaptured
			p.CapturedCents = amount
		} else {
			p.Status = domain.StatusAuthorized
		}
	}

	if err := s.repo.Save(ctx, p); err != nil {
		// The charge was never recorded, so the account must not stay
		// debited for it.
		if reason == "" {
			s.credit(account, amount)
		}
		return AuthorizeResult{}, fmt.Errorf("persist payment: %w", err)
	}

	if reason != "" {
		s.log.Warn("payment declined", "order_id", req.OrderID, "reason", reason)
		return AuthorizeResult{Success: false, Reason: reason}, nil
	}

	s.mu.Lock()
	remaining := s.balance[account]
	s.mu.Unlock()

	s.log.Info("payment authorized", "order_id", req.OrderID, "payment_id", p.ID, "amount_cents", amount)
	return AuthorizeResult{Success: true, PaymentID: p.ID, BalanceCents: remaining}, nil
}

// resolveAmount prefers the caller-supplied total and otherwise prices
// the line items from the catalog.
func (s *Service) resolveAmount(req AuthorizeRequest) (int64, string) {
	if req.AmountCents > 0 {
		return req.AmountCents, ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, item := range req.Items {
		price, ok := s.catalog[item.ProductID]
		if !ok {
			return 0, ReasonUnknownProduct
		}
		total += price * int64(item.Quantity)
	}
	return total, ""
}

func (s *Service) debit(account string, amount int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balance[account]
	if !ok {
		return ReasonUnknownCustomer
	}
	if balance < amount {
		return ReasonInsufficientFunds
	}
	s.balance[account] = balance - amount
	return ""
}

// credit reverses a debit whose payment record never got persisted.
func (s *Service) credit(account string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balance[account]; ok {
		s.balance[account] += amount
	}
}

// replay returns the recorded outcome of an already-processed order.
func (s *Service) replay(ctx context.Context, orderID string) (AuthorizeResult, error) {
	p, err := s.repo.GetByOrder(ctx, orderID)
	if err != nil {
		return AuthorizeResult{}, fmt.Errorf("replay payment for order %s: %w", orderID, err)
	}
	s.log.Info("duplicate authorization replayed", "order_id", orderID, "payment_id", p.ID)
	return verdict(p), nil
}

func verdict(p domain.Payment) AuthorizeResult {
	if p.Status == domain.StatusFailed {
		return AuthorizeResult{Success: false, Reason: p.Reason}
	}
	return AuthorizeResult{Success: true, PaymentID: p.ID}
}

// Get returns a payment record by id.
func (s *Service) Get(ctx context.Context, paymentID string) (domain.Payment, error) {
	return s.repo.Get(ctx, paymentID)
}

// Capture finalizes an authorized payment. Only AUTHORIZED may be
// captured.
func (s *Service) Capture(ctx context.Context, paymentID string) (domain.Payment, error) {
	p, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if p.Status != domain.StatusAuthorized {
		return domain.Payment{}, fmt.Errorf("%w: capture requires AUTHORIZED, have %s", ErrWrongStatus, p.Status)
	}
	p.Status = domain.StatusCaptured
	p.CapturedCents = p.AmountCents
	p.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, p); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

// Refund reverses a captured payment, fully unless an amount is given.
func (s *Service) Refund(ctx context.Context, paymentID string, amountCents int64) (domain.Payment, error) {
	p, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if p.Status != domain.StatusCaptured {
		return domain.Payment{}, fmt.Errorf("%w: refund only after capture, have %s", ErrWrongStatus, p.Status)
	}
	if amountCents <= 0 || amountCents > p.CapturedCents {
		amountCents = p.CapturedCents
	}
	p.RefundedCents = amountCents
	p.Status = domain.StatusRefunded
	p.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, p); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}
