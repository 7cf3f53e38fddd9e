package application_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/ordersaga/orderflow/internal/payment/application"
	"github.com/ordersaga/orderflow/internal/payment/domain"
)

type memRepo struct {
	byID    map[string]domain.Payment
	byOrder map[string]domain.Payment
	saveErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		byID:    make(map[string]domain.Payment),
		byOrder: make(map[string]domain.Payment),
	}
}

func (r *memRepo) Save(_ context.Context, p domain.Payment) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.byID[p.ID] = p
	r.byOrder[p.OrderID] = p
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (domain.Payment, error) {
	p, ok := r.byID[id]
	if !ok {
		return domain.Payment{}, application.ErrPaymentNotFound
	}
	return p, nil
}

func (r *memRepo) GetByOrder(_ context.Context, orderID string) (domain.Payment, error) {
	p, ok := r.byOrder[orderID]
	if !ok {
		return domain.Payment{}, application.ErrPaymentNotFound
	}
	return p, nil
}

type memDeduper struct {
	seen map[string]bool
}

func (d *memDeduper) PaymentKey(orderID string) string { return "idem:payment:" + orderID }

func (d *memDeduper) Seen(_ context.Context, key string) (bool, error) {
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	was := d.seen[key]
	d.seen[key] = true
	return was, nil
}

func newService(repo application.PaymentRepository, dedupe application.Deduper) *application.Service {
	svc := application.NewService(slog.New(slog.DiscardHandler), repo, dedupe)
	svc.SetBalance("Max", "Mustermann", 10_000)
	svc.SetPrice(123, 1_999)
	return svc
}

func request(orderID string, amount int64) application.AuthorizeRequest {
	return application.AuthorizeRequest{
		OrderID:     orderID,
		FirstName:   "Max",
		LastName:    "Mustermann",
		Items:       []application.LineItem{{ProductID: 123, Quantity: 2, PriceCents: 1_999}},
		AmountCents: amount,
	}
}

func TestAuthorizeCapturesByDefault(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, nil)

	result, err := svc.Authorize(context.Background(), request("order-1", 3_998))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Success || result.PaymentID == "" {
		t.Fatalf("Expected success with payment id, got %+v", result)
	}
	if result.BalanceCents != 6_002 {
		t.Errorf("Expected remaining balance 6002, got %d", result.BalanceCents)
	}

	p, err := svc.Get(context.Background(), result.PaymentID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Status != domain.StatusCaptured || p.CapturedCents != 3_998 {
		t.Errorf("Expected captured payment, got %+v", p)
	}
}

func TestAuthorizeResolvesAmountFromCatalog(t *testing.T) {
	svc := newService(newMemRepo(), nil)

	req := request("order-1", 0)
	result, err := svc.Authorize(context.Background(), req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got reason %s", result.Reason)
	}
	// 2 × 1999 from the catalog.
	if result.BalanceCents != 10_000-3_998 {
		t.Errorf("Expected balance %d, got %d", 10_000-3_998, result.BalanceCents)
	}
}

func TestAuthorizeDeclines(t *testing.T) {
	cases := []struct {
		name   string
		req    application.AuthorizeRequest
		reason string
	}{
		{
			name: "unknown customer",
			req: application.AuthorizeRequest{
				OrderID:     "order-1",
				FirstName:   "Nobody",
				LastName:    "Unknown",
				AmountCents: 100,
			},
			reason: application.ReasonUnknownCustomer,
		},
		{
			name: "unknown product",
			req: application.AuthorizeRequest{
				OrderID:   "order-2",
				FirstName: "Max",
				LastName:  "Mustermann",
				Items:     []application.LineItem{{ProductID: 999, Quantity: 1}},
			},
			reason: application.ReasonUnknownProduct,
		},
		{
			name:   "insufficient funds",
			req:    request("order-3", 1_000_000),
			reason: application.ReasonInsufficientFunds,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemRepo()
			svc := newService(repo, nil)

			result, err := svc.Authorize(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("Expected verdict, got error: %v", err)
			}
			if result.Success {
				t.Fatal("Expected decline")
			}
			if result.Reason != tc.reason {
				t.Errorf("Expected reason %s, got %s", tc.reason, result.Reason)
			}

			// The decline is recorded durably.
			p, err := repo.GetByOrder(context.Background(), tc.req.OrderID)
			if err != nil {
				t.Fatalf("Expected failed payment record: %v", err)
			}
			if p.Status != domain.StatusFailed {
				t.Errorf("Expected FAILED record, got %s", p.Status)
			}
		})
	}
}

func TestDeclineDoesNotDebit(t *testing.T) {
	svc := newService(newMemRepo(), nil)

	if _, err := svc.Authorize(context.Background(), request("order-1", 1_000_000)); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}

	// Full balance still available for the next order.
	result, err := svc.Authorize(context.Background(), request("order-2", 10_000))
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !result.Success {
		t.Errorf("Expected success, got reason %s", result.Reason)
	}
}

func TestFailedSaveRestoresBalance(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, nil)

	repo.saveErr = errors.New("connection refused")
	if _, err := svc.Authorize(context.Background(), request("order-1", 3_998)); err == nil {
		t.Fatal("Expected persist error")
	}

	// The unrecorded charge must not survive: the full balance is still
	// available once the repository recovers.
	repo.saveErr = nil
	result, err := svc.Authorize(context.Background(), request("order-2", 10_000))
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !result.Success {
		t.Errorf("Expected success, got decline: %s", result.Reason)
	}
}

func TestRepeatedAuthorizeWithoutDeduper(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, nil)

	first, err := svc.Authorize(context.Background(), request("order-1", 3_998))
	if err != nil {
		t.Fatalf("First authorize failed: %v", err)
	}
	second, err := svc.Authorize(context.Background(), request("order-1", 3_998))
	if err != nil {
		t.Fatalf("Repeat failed: %v", err)
	}

	if second.PaymentID != first.PaymentID {
		t.Errorf("Expected replayed payment id %s, got %s", first.PaymentID, second.PaymentID)
	}
	if len(repo.byID) != 1 {
		t.Errorf("Expected a single payment record, got %d", len(repo.byID))
	}

	// The account was charged exactly once.
	result, err := svc.Authorize(context.Background(), request("order-2", 6_002))
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !result.Success {
		t.Errorf("Expected remaining balance to cover the order, got decline: %s", result.Reason)
	}
}

func TestAuthorizeIsIdempotentPerOrder(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, &memDeduper{})

	first, err := svc.Authorize(context.Background(), request("order-1", 3_998))
	if err != nil {
		t.Fatalf("First authorize failed: %v", err)
	}
	second, err := svc.Authorize(context.Background(), request("order-1", 3_998))
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if second.PaymentID != first.PaymentID {
		t.Errorf("Expected replayed payment id %s, got %s", first.PaymentID, second.PaymentID)
	}
	if len(repo.byID) != 1 {
		t.Errorf("Expected a single payment record, got %d", len(repo.byID))
	}
}

func TestCaptureRequiresAuthorized(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, nil)

	noCapture := false
	req := request("order-1", 3_998)
	req.Capture = &noCapture

	result, err := svc.Authorize(context.Background(), req)
	if err != nil || !result.Success {
		t.Fatalf("Authorize failed: %v %+v", err, result)
	}

	p, err := svc.Capture(context.Background(), result.PaymentID)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if p.Status != domain.StatusCaptured || p.CapturedCents != 3_998 {
		t.Errorf("Expected captured, got %+v", p)
	}

	// A second capture is a status conflict.
	if _, err := svc.Capture(context.Background(), result.PaymentID); !errors.Is(err, application.ErrWrongStatus) {
		t.Errorf("Expected ErrWrongStatus, got: %v", err)
	}
}

func TestRefundOnlyAfterCapture(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, nil)

	noCapture := false
	req := request("order-1", 3_998)
	req.Capture = &noCapture
	result, _ := svc.Authorize(context.Background(), req)

	if _, err := svc.Refund(context.Background(), result.PaymentID, 0); !errors.Is(err, application.ErrWrongStatus) {
		t.Fatalf("Expected ErrWrongStatus before capture, got: %v", err)
	}

	if _, err := svc.Capture(context.Background(), result.PaymentID); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	p, err := svc.Refund(context.Background(), result.PaymentID, 0)
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if p.Status != domain.StatusRefunded || p.RefundedCents != 3_998 {
		t.Errorf("Expected full refund, got %+v", p)
	}
}

func TestRefundUnknownPayment(t *testing.T) {
	svc := newService(newMemRepo(), nil)
	if _, err := svc.Refund(context.Background(), "missing", 0); !errors.Is(err, application.ErrPaymentNotFound) {
		t.Errorf("Expected ErrPaymentNotFound, got: %v", err)
	}
}
