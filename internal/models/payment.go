package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is the only currency of the marketplace
const Currency = "INR"

// refund status
const (
	RefundStatusInitiated = "initiated"
	RefundStatusPending   = "pending"
	RefundStatusProcessed = "processed"
	RefundStatusFailed    = "failed"
)

// Refund is a refund attempt claimed by an idempotency key
type Refund struct {
	ID              uint64
	IdempotencyKey  string
	Gateway         string
	PaymentID       string
	Amount          decimal.Decimal
	Reason          string
	Status          string
	GatewayRefundID string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Settled reports whether refund reached a final status
func (r *Refund) Settled() bool {
	return r.Status == RefundStatusProcessed || r.Status == RefundStatusFailed
}
