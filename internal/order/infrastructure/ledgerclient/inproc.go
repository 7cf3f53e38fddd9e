// Package ledgerclient adapts the reservation ledger to the
// orchestrator's StockLedger port, either in process or over HTTP for
// cross-process deployments.
package ledgerclient

import (
	"context"

	"github.com/ordersaga/orderflow/internal/ledger"
)

// InProc serves ledger calls from the same process. Context is honored
// for symmetry with the HTTP client so the orchestrator cannot tell the
// deployments apart.
type InProc struct {
	ledger *ledger.Ledger
}

func NewInProc(l *ledger.Ledger) *InProc {
	return &InProc{ledger: l}
}

func (c *InProc) Reserve(ctx context.Context, lines []ledger.Line) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.ledger.Reserve(lines)
}

func (c *InProc) Release(ctx context.Context, reservationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.ledger.Release(reservationID)
}

func (c *InProc) Commit(ctx context.Context, reservationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.ledger.Commit(reservationID)
}

func (c *InProc) Stock(ctx context.Context, sku string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.ledger.Stock(sku), nil
}
