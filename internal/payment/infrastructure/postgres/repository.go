package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordersaga/orderflow/internal/payment/application"
	"github.com/ordersaga/orderflow/internal/payment/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// EnsureSchema creates the payments table when it is missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS payments (
		payment_id     TEXT PRIMARY KEY,
		order_id       TEXT NOT NULL UNIQUE,
		amount_cents   BIGINT NOT NULL,
		captured_cents BIGINT NOT NULL DEFAULT 0,
		refunded_cents BIGINT NOT NULL DEFAULT 0,
		status         TEXT NOT NULL,
		reason         TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`)
	return err
}

func (r *Repository) Save(ctx context.Context, p domain.Payment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payments
		(payment_id, order_id, amount_cents, captured_cents, refunded_cents, status, reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (payment_id) DO UPDATE SET
			amount_cents=$3, captured_cents=$4, refunded_cents=$5, status=$6, reason=$7, updated_at=$9`,
		p.ID, p.OrderID, p.AmountCents, p.CapturedCents, p.RefundedCents, p.Status, p.Reason, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *Repository) Get(ctx context.Context, paymentID string) (domain.Payment, error) {
	return r.scanOne(ctx, `SELECT payment_id, order_id, amount_cents, captured_cents, refunded_cents, status, reason, created_at, updated_at
		FROM payments WHERE payment_id=$1`, paymentID)
}

func (r *Repository) GetByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	return r.scanOne(ctx, `SELECT payment_id, order_id, amount_cents, captured_cents, refunded_cents, status, reason, created_at, updated_at
		FROM payments WHERE order_id=$1`, orderID)
}

func (r *Repository) scanOne(ctx context.Context, query, arg string) (domain.Payment, error) {
	var p domain.Payment
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.OrderID, &p.AmountCents, &p.CapturedCents, &p.RefundedCents, &p.Status, &p.Reason, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, application.ErrPaymentNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}
