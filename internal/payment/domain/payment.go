package domain

import "time"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAuthorized Status = "AUTHORIZED"
	StatusCaptured   Status = "CAPTURED"
	StatusRefunded   Status = "REFUNDED"
	StatusFailed     Status = "FAILED"
)

// Payment is the durable record of one authorization attempt. Capture and
// refund move it through AUTHORIZED → CAPTURED → REFUNDED; a decline is
// recorded as FAILED.
type Payment struct {
	ID            string
	OrderID       string
	AmountCents   int64
	CapturedCents int64
	RefundedCents int64
	Status        Status
	Reason        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
