package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindInvalidState  Kind = "invalid_state"
	KindConfiguration Kind = "configuration"
	KindRateLimited   Kind = "rate_limited"
	KindGateway       Kind = "gateway"
	KindInternal      Kind = "internal"
)

// HTTPStatus returns response status for error kind
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindInvalidState:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Public reports whether the message may be shown to the end user.
// Configuration, gateway and internal failures carry operator details only.
func (k Kind) Public() bool {
	switch k {
	case KindValidation, KindNotFound, KindInvalidState, KindRateLimited:
		return true
	}
	return false
}

// Error is a classified application error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates new classified error
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// ValidationError reports malformed or missing input
func ValidationError(format string, args ...any) *Error {
	return NewError(KindValidation, fmt.Sprintf(format, args...))
}

// ConfigurationError reports a misconfigured component
func ConfigurationError(format string, args ...any) *Error {
	return NewError(KindConfiguration, fmt.Sprintf(format, args...))
}

// GatewayError reports a remote payment API failure
func GatewayError(message string, err error) *Error {
	return &Error{Kind: KindGateway, Message: message, Err: err}
}

// KindOf returns kind of err, KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// GenericMessage is shown instead of messages that are not public
const GenericMessage = "Something went wrong, please try again"

// repository errors
var (
	ErrConflictData = errors.New("data conflicts with existing data")
	ErrDataNotFound = errors.New("data not found")
)

// auth errors
var (
	ErrInvalidToken = errors.New("invalid token")
)

// task errors
var (
	ErrTaskNotFound          = NewError(KindNotFound, "Task not found")
	ErrOrderAlreadySubmitted = NewError(KindInvalidState, "Order already submitted")
	ErrInvalidStep           = NewError(KindInvalidState, "Invalid step: complete the previous step first")
	ErrTaskClosed            = NewError(KindInvalidState, "Task is already closed")
)

// wallet errors
var (
	ErrBelowMinimum                 = NewError(KindInvalidState, "Amount is below the minimum withdrawal")
	ErrInsufficientBalance          = NewError(KindInvalidState, "Insufficient balance")
	ErrInsufficientAvailableBalance = NewError(KindInvalidState, "Insufficient available balance")
	ErrWithdrawalNotFound           = NewError(KindNotFound, "Withdrawal request not found")
	ErrWithdrawalTransition         = NewError(KindInvalidState, "Withdrawal request cannot change to this status")
	ErrDuplicateCredit              = NewError(KindInvalidState, "Credit with this reference already exists")
)

// payment errors
var (
	ErrUnsupportedGateway   = NewError(KindValidation, "Unsupported payment gateway")
	ErrGatewayDisabled      = NewError(KindConfiguration, "Payment gateway is disabled")
	ErrPaymentNotVerified   = NewError(KindValidation, "Payment verification failed")
	ErrRefundInProgress     = NewError(KindInvalidState, "Refund with this key is already in progress")
	ErrRefundKeyReused      = NewError(KindValidation, "Idempotency key is already used for another refund")
	ErrRefundFailed         = NewError(KindInvalidState, "Refund with this key failed, retry with a new key")
	ErrRefundOutcomeUnknown = NewError(KindInvalidState, "Refund outcome is not known yet, check again later")
	ErrRateLimited          = NewError(KindRateLimited, "Too many requests, please try again later")
)

// InternalError hides err behind the generic message
func InternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: GenericMessage, Err: err}
}
