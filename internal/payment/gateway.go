// Package payment talks to remote payment gateways. Every gateway reports
// remote failures as unsuccessful results instead of errors, so callers
// branch on Success.
package payment

import (
	"context"
	"github.com/shopspring/decimal"
)

// gateway names
const (
	GatewayRazorpay = "razorpay"
	GatewayPayU     = "payumoney"
)

// normalized payment statuses
const (
	StatusPending    = "pending"
	StatusAuthorized = "authorized"
	StatusCaptured   = "captured"
	StatusFailed     = "failed"
	StatusRefunded   = "refunded"
)

// Gateway is a remote payment API
type Gateway interface {
	// Name returns gateway name
	Name() string
	// CreateOrder registers order of amount rupees and returns parameters
	// the client needs to complete payment
	CreateOrder(ctx context.Context, req OrderRequest) OrderResult
	// VerifyPayment reports whether callback signature is valid
	VerifyPayment(callback map[string]string) bool
	// GetPaymentStatus returns current status of payment
	GetPaymentStatus(ctx context.Context, paymentID string) StatusResult
	// RefundPayment starts refund. Repeated calls are not deduplicated.
	RefundPayment(ctx context.Context, req RefundRequest) RefundResult
	// GetRefundStatus returns current status of refund
	GetRefundStatus(ctx context.Context, lookup RefundLookup) RefundResult
}

// CustomerInfo describes payer
type CustomerInfo struct {
	Name  string
	Email string
	Phone string
}

// OrderRequest is request to create payment order
type OrderRequest struct {
	// Amount in rupees
	Amount decimal.Decimal
	// OrderID is merchant side correlation id (receipt)
	OrderID     string
	Description string
	Customer    CustomerInfo
	Metadata    map[string]string
}

// OrderResult is result of order creation
type OrderResult struct {
	Success bool
	// OrderID is gateway order or transaction id
	OrderID  string
	Amount   decimal.Decimal
	Currency string
	// ActionURL is set when client must post Params to the gateway
	ActionURL string
	Params    map[string]string
	Error     string
}

// StatusResult is payment status reported by gateway
type StatusResult struct {
	Success   bool
	PaymentID string
	Status    string
	Amount    decimal.Decimal
	Method    string
	Error     string
}

// RefundRequest is request to refund payment
type RefundRequest struct {
	PaymentID string
	// Amount in rupees
	Amount decimal.Decimal
	Reason string
	// Reference is merchant refund id, it finds the refund again
	// when the answer to RefundPayment is lost
	Reference string
}

// RefundLookup identifies refund of payment by gateway refund id
// or, when it is unknown, by merchant reference
type RefundLookup struct {
	PaymentID string
	RefundID  string
	Reference string
}

// RefundResult is result of refund request or lookup
type RefundResult struct {
	Success  bool
	RefundID string
	// Status is models refund status. RefundPayment reports pending or
	// processed, GetRefundStatus may also report failed.
	Status string
	Amount decimal.Decimal
	Error  string
	// Ambiguous is set when the call failed after the request may have
	// reached the gateway, so the refund may still have been executed
	Ambiguous bool
	// NotFound is set when the gateway has no such refund
	NotFound bool
}

func orderFailure(msg string) OrderResult {
	return OrderResult{Error: msg}
}

func statusFailure(msg string) StatusResult {
	return StatusResult{Error: msg}
}

func refundFailure(msg string) RefundResult {
	return RefundResult{Error: msg}
}

func refundCallFailure(msg string, err error) RefundResult {
	return RefundResult{Error: msg, Ambiguous: ambiguous(err), NotFound: notFound(err)}
}
