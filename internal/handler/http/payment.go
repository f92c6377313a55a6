package handler

import (
	"context"
	"github.com/go-chi/chi/v5"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/rookgm/reviewmart/internal/payment"
	"github.com/rookgm/reviewmart/internal/service"
	"github.com/shopspring/decimal"
	"mime"
	"net/http"
	"time"
)

// PaymentService is interface for payment operations
type PaymentService interface {
	ListGateways(ctx context.Context) ([]payment.GatewayInfo, error)
	CreateOrder(ctx context.Context, in service.OrderInput) (*payment.OrderResult, error)
	VerifyPayment(ctx context.Context, gateway string, callback map[string]string) error
	PaymentStatus(ctx context.Context, gateway, paymentID string) (*payment.StatusResult, error)
	Refund(ctx context.Context, in service.RefundInput) (*models.Refund, error)
}

// PaymentHandler represents HTTP handler for payment-related requests
type PaymentHandler struct {
	svc PaymentService
}

// NewPaymentHandler creates new PaymentHandler instance
func NewPaymentHandler(svc PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// ListGateways returns enabled gateways
func (ph *PaymentHandler) ListGateways() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gateways, err := ph.svc.ListGateways(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, gateways)
	}
}

type createOrderRequest struct {
	Gateway       string            `json:"gateway"`
	Amount        decimal.Decimal   `json:"amount"`
	Description   string            `json:"description"`
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	CustomerPhone string            `json:"customer_phone"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type orderResponse struct {
	Gateway   string            `json:"gateway"`
	OrderID   string            `json:"order_id"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency"`
	ActionURL string            `json:"action_url,omitempty"`
	Params    map[string]string `json:"params"`
}

// CreateOrder creates payment order on requested gateway
func (ph *PaymentHandler) CreateOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}

		res, err := ph.svc.CreateOrder(r.Context(), service.OrderInput{
			Gateway:     req.Gateway,
			Amount:      req.Amount,
			Description: req.Description,
			Customer: payment.CustomerInfo{
				Name:  req.CustomerName,
				Email: req.CustomerEmail,
				Phone: req.CustomerPhone,
			},
			Metadata: req.Metadata,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeData(w, http.StatusCreated, orderResponse{
			Gateway:   req.Gateway,
			OrderID:   res.OrderID,
			Amount:    res.Amount,
			Currency:  res.Currency,
			ActionURL: res.ActionURL,
			Params:    res.Params,
		})
	}
}

// callbackFields reads gateway callback from form post or JSON object
func callbackFields(r *http.Request) (map[string]string, error) {
	fields := make(map[string]string)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decodeJSON(r, &fields); err != nil {
			return nil, err
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, models.ValidationError("Invalid callback")
	}
	for k := range r.PostForm {
		fields[k] = r.PostForm.Get(k)
	}
	return fields, nil
}

// VerifyPayment checks callback of gateway {gateway}
func (ph *PaymentHandler) VerifyPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callback, err := callbackFields(r)
		if err != nil {
			writeError(w, err)
			return
		}

		if err := ph.svc.VerifyPayment(r.Context(), chi.URLParam(r, "gateway"), callback); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, response{Success: true, Message: "Payment verified"})
	}
}

type statusResponse struct {
	PaymentID string          `json:"payment_id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
}

// GetPaymentStatus returns status of payment {paymentID} on gateway {gateway}
func (ph *PaymentHandler) GetPaymentStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := ph.svc.PaymentStatus(r.Context(), chi.URLParam(r, "gateway"), chi.URLParam(r, "paymentID"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeData(w, http.StatusOK, statusResponse{
			PaymentID: res.PaymentID,
			Status:    res.Status,
			Amount:    res.Amount,
			Method:    res.Method,
		})
	}
}

type refundRequest struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Gateway        string          `json:"gateway"`
	PaymentID      string          `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
}

type refundResponse struct {
	ID              uint64          `json:"id"`
	IdempotencyKey  string          `json:"idempotency_key"`
	Gateway         string          `json:"gateway"`
	PaymentID       string          `json:"payment_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	GatewayRefundID string          `json:"gateway_refund_id,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Refund refunds payment once per idempotency key. Idempotency-Key header
// overrides the body field.
func (ph *PaymentHandler) Refund() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refundRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			req.IdempotencyKey = key
		}

		refund, err := ph.svc.Refund(r.Context(), service.RefundInput{
			IdempotencyKey: req.IdempotencyKey,
			Gateway:        req.Gateway,
			PaymentID:      req.PaymentID,
			Amount:         req.Amount,
			Reason:         req.Reason,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeData(w, http.StatusOK, refundResponse{
			ID:              refund.ID,
			IdempotencyKey:  refund.IdempotencyKey,
			Gateway:         refund.Gateway,
			PaymentID:       refund.PaymentID,
			Amount:          refund.Amount,
			Status:          refund.Status,
			GatewayRefundID: refund.GatewayRefundID,
			ErrorMessage:    refund.ErrorMessage,
			CreatedAt:       refund.CreatedAt,
		})
	}
}
