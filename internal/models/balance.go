package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds user balance
type Wallet struct {
	UserID    uint64
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

// Balance contains wallet balance, amount reserved by unsettled withdrawals and the rest
type Balance struct {
	Balance           decimal.Decimal
	PendingWithdrawal decimal.Decimal
	AvailableBalance  decimal.Decimal
}

// withdrawal status
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusRejected   = "rejected"
)

// withdrawal payment methods
const (
	PaymentMethodUPI          = "upi"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodPaytm        = "paytm"
)

// WithdrawalRequest is entity withdrawal request
type WithdrawalRequest struct {
	ID                   uint64
	UserID               uint64
	Amount               decimal.Decimal
	PaymentMethod        string
	PaymentDetails       string
	Status               string
	AdminNote            string
	TransactionReference *string
	RequestedAt          time.Time
	ProcessedAt          *time.Time
}

// Reserved reports whether request still holds funds of the wallet
func (w *WithdrawalRequest) Reserved() bool {
	return w.Status == WithdrawalStatusPending || w.Status == WithdrawalStatusProcessing
}

// transaction types
const (
	TxTypeCredit = "credit"
	TxTypeDebit  = "debit"
)

// transaction sources
const (
	TxSourceTaskCommission = "task_commission"
	TxSourceReferralBonus  = "referral_bonus"
	TxSourceWithdrawal     = "withdrawal"
	TxSourceAdjustment     = "adjustment"
)

// WalletTransaction is completed wallet ledger entry
type WalletTransaction struct {
	ID          uint64
	UserID      uint64
	Type        string
	Source      string
	Amount      decimal.Decimal
	Reference   string
	Description string
	CreatedAt   time.Time
}

// Page is requested page of a listing
type Page struct {
	Number  int
	PerPage int
}

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Normalize applies default and limits
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset returns number of rows to skip
func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}
