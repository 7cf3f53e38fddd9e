// Package ledger owns stock quantities and open reservations. A
// reservation is a provisional hold: Reserve decrements stock atomically,
// and the hold is consumed exactly once by either Commit (decrement
// becomes permanent) or Release (stock restored).
package ledger

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Line is one (sku, quantity) pair of a reservation request. Quantities
// are expected to be positive; callers validate before reaching the ledger.
type Line struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// Reservation is a named hold on stock, addressed purely by its id. The
// ledger knows nothing about orders.
type Reservation struct {
	ID    string
	Lines []Line
}

// InsufficientError reports the first line that could not be covered.
// Reserve mutates nothing when returning it.
type InsufficientError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

// ErrNotFound is returned by Commit and Release for an unknown or
// already-consumed reservation id. Double consumption is a safe no-op to
// report, never a crash.
var ErrNotFound = fmt.Errorf("reservation not found")

// Ledger is the single authoritative stock table. All mutation happens
// under one mutex so two concurrent Reserve calls can never both pass the
// availability check for the same scarce unit.
type Ledger struct {
	mu           sync.Mutex
	stock        map[string]int
	reservations map[string]Reservation
}

// New builds a ledger seeded with the given quantities on hand.
func New(initial map[string]int) *Ledger {
	stock := make(map[string]int, len(initial))
	for sku, qty := range initial {
		stock[sku] = qty
	}
	return &Ledger{
		stock:        stock,
		reservations: make(map[string]Reservation),
	}
}

// Reserve checks every line against quantity on hand and, only if all are
// covered, decrements stock and stores the hold. The check accounts for
// repeated SKUs within a single request.
func (l *Ledger) Reserve(lines []Line) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	need := make(map[string]int, len(lines))
	for _, ln := range lines {
		need[ln.SKU] += ln.Qty
	}
	for _, ln := range lines {
		if avail := l.stock[ln.SKU]; avail < need[ln.SKU] {
			return "", &InsufficientError{SKU: ln.SKU, Requested: need[ln.SKU], Available: avail}
		}
	}

	for sku, qty := range need {
		l.stock[sku] -= qty
	}

	id := uuid.NewString()
	held := make([]Line, len(lines))
	copy(held, lines)
	l.reservations[id] = Reservation{ID: id, Lines: held}
	return id, nil
}

// Commit removes the reservation without restoring stock; the decrement
// becomes permanent. ErrNotFound for unknown or already-consumed ids.
func (l *Ledger) Commit(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.reservations[id]; !ok {
		return ErrNotFound
	}
	delete(l.reservations, id)
	return nil
}

// Release restores quantity on hand for every line of the reservation,
// then removes it. ErrNotFound under the same conditions as Commit.
func (l *Ledger) Release(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[id]
	if !ok {
		return ErrNotFound
	}
	for _, ln := range res.Lines {
		l.stock[ln.SKU] += ln.Qty
	}
	delete(l.reservations, id)
	return nil
}

// Stock returns the quantity on hand, 0 for an unknown SKU.
func (l *Ledger) Stock(sku string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[sku]
}

// Reserved sums the open reservation quantities for a SKU. At every
// observable instant Stock(sku)+Reserved(sku) equals the initial quantity
// minus committed consumption.
func (l *Ledger) Reserved(sku string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int
	for _, res := range l.reservations {
		for _, ln := range res.Lines {
			if ln.SKU == sku {
				total += ln.Qty
			}
		}
	}
	return total
}
