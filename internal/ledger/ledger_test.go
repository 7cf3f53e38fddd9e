package ledger

import (
	"errors"
	"sync"
	"testing"
)

func TestReserveDecrementsStock(t *testing.T) {
	l := New(map[string]int{"SKU-1": 5})

	id, err := l.Reserve([]Line{{SKU: "SKU-1", Qty: 3}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if id == "" {
		t.Error("Expected a reservation id")
	}
	if got := l.Stock("SKU-1"); got != 2 {
		t.Errorf("Expected stock 2, got %d", got)
	}
	if got := l.Reserved("SKU-1"); got != 3 {
		t.Errorf("Expected 3 reserved, got %d", got)
	}
}

func TestReserveInsufficientMutatesNothing(t *testing.T) {
	l := New(map[string]int{"SKU-1": 5, "SKU-2": 10})

	_, err := l.Reserve([]Line{
		{SKU: "SKU-2", Qty: 4},
		{SKU: "SKU-1", Qty: 10},
	})

	var insufficient *InsufficientError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientError, got: %v", err)
	}
	if insufficient.SKU != "SKU-1" || insufficient.Requested != 10 || insufficient.Available != 5 {
		t.Errorf("Unexpected error detail: %+v", insufficient)
	}
	// No partial decrement, not even for lines that were available.
	if got := l.Stock("SKU-1"); got != 5 {
		t.Errorf("Expected stock 5, got %d", got)
	}
	if got := l.Stock("SKU-2"); got != 10 {
		t.Errorf("Expected stock 10, got %d", got)
	}
}

func TestReserveUnknownSKU(t *testing.T) {
	l := New(map[string]int{"SKU-1": 5})

	_, err := l.Reserve([]Line{{SKU: "SKU-404", Qty: 1}})
	var insufficient *InsufficientError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientError, got: %v", err)
	}
	if insufficient.Available != 0 {
		t.Errorf("Expected 0 available for unknown sku, got %d", insufficient.Available)
	}
}

func TestReserveAccountsForRepeatedSKU(t *testing.T) {
	l := New(map[string]int{"SKU-1": 5})

	// 3+3 across two lines exceeds 5 even though each line alone fits.
	_, err := l.Reserve([]Line{
		{SKU: "SKU-1", Qty: 3},
		{SKU: "SKU-1", Qty: 3},
	})
	var insufficient *InsufficientError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientError, got: %v", err)
	}
	if got := l.Stock("SKU-1"); got != 5 {
		t.Errorf("Expected stock 5, got %d", got)
	}
}

func TestReleaseRestoresStock(t *testing.T) {
	l := New(map[string]int{"SKU-1": 5, "SKU-2": 2})

	id, err := l.Reserve([]Line{{SKU: "SKU-1", Qty: 3}, {SKU: "SKU-2", Qty: 2}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := l.Release(id); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := l.Stock("SKU-1"); got != 5 {
		t.Errorf("Expected stock 5, got %d", got)
	}
	if got := l.Stock("SKU-2"); got != 2 {
		t.Errorf("Expected stock 2, got %d", got)
	}
}

func TestCommitKeepsDecrement(t *testing.T) {
	l := New(map[string]int{"SKU-1": 5})

	id, _ := l.Reserve([]Line{{SKU: "SKU-1", Qty: 3}})
	if err := l.Commit(id); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := l.Stock("SKU-1"); got != 2 {
		t.Errorf("Expected stock 2 after commit, got %d", got)
	}
	if got := l.Reserved("SKU-1"); got != 0 {
		t.Errorf("Expected nothing reserved after commit, got %d", got)
	}
}

func TestExactlyOnceConsumption(t *testing.T) {
	l := New(map[string]int{"SKU-1": 5})

	id, _ := l.Reserve([]Line{{SKU: "SKU-1", Qty: 2}})
	if err := l.Release(id); err != nil {
		t.Fatalf("First release should succeed, got: %v", err)
	}
	if err := l.Release(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Second release should be NotFound, got: %v", err)
	}
	if err := l.Commit(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Commit after release should be NotFound, got: %v", err)
	}
	// Double release must not restore stock twice.
	if got := l.Stock("SKU-1"); got != 5 {
		t.Errorf("Expected stock 5, got %d", got)
	}
}

func TestCommitUnknownID(t *testing.T) {
	l := New(map[string]int{"SKU-1": 5})
	if err := l.Commit("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFound, got: %v", err)
	}
}

func TestStockUnknownSKUIsZero(t *testing.T) {
	l := New(nil)
	if got := l.Stock("SKU-1"); got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}
}

// Conservation: quantityOnHand + open reserved quantities stays constant
// through an arbitrary mix of reserves and releases.
func TestConservation(t *testing.T) {
	const initial = 50
	l := New(map[string]int{"SKU-1": initial})

	var ids []string
	for i := 0; i < 10; i++ {
		id, err := l.Reserve([]Line{{SKU: "SKU-1", Qty: 3}})
		if err != nil {
			t.Fatalf("Reserve %d failed: %v", i, err)
		}
		ids = append(ids, id)
		if got := l.Stock("SKU-1") + l.Reserved("SKU-1"); got != initial {
			t.Fatalf("Conservation violated after reserve %d: %d", i, got)
		}
	}
	for i, id := range ids {
		if i%2 == 0 {
			if err := l.Release(id); err != nil {
				t.Fatalf("Release failed: %v", err)
			}
			if got := l.Stock("SKU-1") + l.Reserved("SKU-1"); got != initial {
				t.Fatalf("Conservation violated after release %d: %d", i, got)
			}
		}
	}
}

// No oversell: N concurrent reservations competing for limited stock
// produce exactly as many successes as the stock permits.
func TestConcurrentReserveNoOversell(t *testing.T) {
	const (
		initial    = 10
		qtyEach    = 3
		goroutines = 20
	)
	l := New(map[string]int{"SKU-1": initial})

	var wg sync.WaitGroup
	results := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Reserve([]Line{{SKU: "SKU-1", Qty: qtyEach}})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch {
		case err == nil:
			ok++
		default:
			var ie *InsufficientError
			if !errors.As(err, &ie) {
				t.Fatalf("Unexpected error: %v", err)
			}
			insufficient++
		}
	}

	if want := initial / qtyEach; ok != want {
		t.Errorf("Expected %d successful reservations, got %d", want, ok)
	}
	if got := l.Stock("SKU-1"); got < 0 {
		t.Errorf("Stock went negative: %d", got)
	}
	if got := l.Stock("SKU-1") + l.Reserved("SKU-1"); got != initial {
		t.Errorf("Conservation violated: %d", got)
	}
}

// Concurrent double-consume: exactly one of commit/release wins.
func TestConcurrentConsumeExactlyOnce(t *testing.T) {
	l := New(map[string]int{"SKU-1": 100})

	for i := 0; i < 50; i++ {
		id, err := l.Reserve([]Line{{SKU: "SKU-1", Qty: 1}})
		if err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}

		errs := make(chan error, 2)
		go func() { errs <- l.Commit(id) }()
		go func() { errs <- l.Release(id) }()

		first, second := <-errs, <-errs
		if (first == nil) == (second == nil) {
			t.Fatalf("Expected exactly one winner, got %v and %v", first, second)
		}
	}
}
