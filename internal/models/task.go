package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// task steps
const (
	StepAwaitingOrder     = 0
	StepOrderPlaced       = 1
	StepDeliveryConfirmed = 2
	StepReviewSubmitted   = 3
	StepRefundRequested   = 4
)

// task status
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusRejected  = "rejected"
)

// Task is task entity
type Task struct {
	ID                 uint64
	UserID             uint64
	SellerID           uint64
	ProductName        string
	OrderAmount        decimal.Decimal
	CommissionAmount   decimal.Decimal
	CurrentStep        int
	Status             string
	RefundRequested    bool
	OrderPlacedAt      *time.Time
	DeliveryReceivedAt *time.Time
	ReviewSubmittedAt  *time.Time
	RefundRequestedAt  *time.Time
	CreatedAt          time.Time
}

// Closed reports whether task reached a terminal status
func (t *Task) Closed() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusRejected
}

// TaskProof is proof artifact of one task step
type TaskProof struct {
	ID         uint64
	TaskID     uint64
	StepNumber int
	ProofURL   string
	ProofText  *string
	CreatedAt  time.Time
}

// TaskDetails is task with its submitted proofs
type TaskDetails struct {
	Task   Task
	Proofs []TaskProof
}
