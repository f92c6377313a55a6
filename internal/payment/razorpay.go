package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"github.com/rookgm/reviewmart/internal/logger"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultRazorpayURL = "https://api.razorpay.com"

	// refund note holding merchant reference
	razorpayNoteReference = "reference"
	// largest page of payment refunds
	razorpayMaxCount = 100
)

// razorpayID matches payment and refund ids, they become path segments
var razorpayID = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// RazorpayConfig contains Razorpay credentials
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	TestMode  bool
	// BaseURL defaults to the public Razorpay API
	BaseURL string
}

// Razorpay implements Gateway for Razorpay orders API
type Razorpay struct {
	cfg    RazorpayConfig
	client *client
}

// NewRazorpay creates new Razorpay gateway
func NewRazorpay(cfg RazorpayConfig, opts ...Option) (*Razorpay, error) {
	if strings.TrimSpace(cfg.KeyID) == "" {
		return nil, models.ConfigurationError("razorpay: key_id is required")
	}
	if strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, models.ConfigurationError("razorpay: key_secret is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultRazorpayURL
	}
	return &Razorpay{cfg: cfg, client: newClient(opts...)}, nil
}

// Name returns gateway name
func (r *Razorpay) Name() string {
	return GatewayRazorpay
}

// toPaise converts rupees to paise, dropping fractions of paisa
func toPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func fromPaise(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayPayment struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	Method         string `json:"method"`
	OrderID        string `json:"order_id"`
	AmountRefunded int64  `json:"amount_refunded"`
}

type razorpayRefundRequest struct {
	Amount int64             `json:"amount,omitempty"`
	Notes  map[string]string `json:"notes,omitempty"`
}

type razorpayRefund struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	// empty notes come as [] instead of object
	Notes json.RawMessage `json:"notes,omitempty"`
}

func (rf razorpayRefund) note(key string) string {
	notes := map[string]string{}
	if json.Unmarshal(rf.Notes, &notes) != nil {
		return ""
	}
	return notes[key]
}

type razorpayRefundList struct {
	Count int              `json:"count"`
	Items []razorpayRefund `json:"items"`
}

type razorpayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// call sends JSON request to Razorpay API
func (r *Razorpay) call(ctx context.Context, method string, path []string, query url.Values, in, out any) error {
	u, err := url.Parse(r.cfg.BaseURL)
	if err != nil {
		return requestError(err)
	}
	u = u.JoinPath(path...)
	u.RawQuery = query.Encode()

	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return requestError(err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return requestError(err)
	}
	req.SetBasicAuth(r.cfg.KeyID, r.cfg.KeySecret)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return r.client.do(req, out)
}

// failure logs err and returns message for result
func (r *Razorpay) failure(op string, err error) string {
	logger.Log.Warn("razorpay request failed", zap.String("op", op), zap.Error(err))

	var se *statusError
	if errors.As(err, &se) {
		eb := razorpayErrorBody{}
		if json.Unmarshal(se.Body, &eb) == nil && eb.Error.Description != "" {
			return eb.Error.Description
		}
		return "razorpay returned status " + strconv.Itoa(se.Code)
	}
	return "razorpay request failed: " + err.Error()
}

// CreateOrder creates Razorpay order. Amount is sent in paise.
func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) OrderResult {
	if !req.Amount.IsPositive() {
		return orderFailure("amount must be positive")
	}
	paise := toPaise(req.Amount)
	if paise == 0 {
		return orderFailure("amount is below one paisa")
	}

	// POST /v1/orders
	order := razorpayOrder{}
	err := r.call(ctx, http.MethodPost, []string{"v1", "orders"}, nil, razorpayOrderRequest{
		Amount:   paise,
		Currency: models.Currency,
		Receipt:  req.OrderID,
		Notes:    req.Metadata,
	}, &order)
	if err != nil {
		return orderFailure(r.failure("create_order", err))
	}
	if order.ID == "" {
		return orderFailure("razorpay returned order without id")
	}

	return OrderResult{
		Success:  true,
		OrderID:  order.ID,
		Amount:   fromPaise(order.Amount),
		Currency: models.Currency,
		Params: map[string]string{
			"key":             r.cfg.KeyID,
			"amount":          strconv.FormatInt(order.Amount, 10),
			"currency":        models.Currency,
			"order_id":        order.ID,
			"name":            req.Description,
			"description":     req.Description,
			"prefill_name":    req.Customer.Name,
			"prefill_email":   req.Customer.Email,
			"prefill_contact": req.Customer.Phone,
		},
	}
}

// Signature returns hex HMAC-SHA256 of "orderID|paymentID"
func (r *Razorpay) Signature(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(r.cfg.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayment checks razorpay_signature of checkout callback
func (r *Razorpay) VerifyPayment(callback map[string]string) bool {
	orderID := callback["razorpay_order_id"]
	paymentID := callback["razorpay_payment_id"]
	signature := callback["razorpay_signature"]
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(r.Signature(orderID, paymentID))

	return hmac.Equal(got, want)
}

func normalizeRazorpayStatus(status string) string {
	switch status {
	case "authorized":
		return StatusAuthorized
	case "captured":
		return StatusCaptured
	case "refunded":
		return StatusRefunded
	case "failed":
		return StatusFailed
	default:
		// created
		return StatusPending
	}
}

// GetPaymentStatus fetches Razorpay payment
func (r *Razorpay) GetPaymentStatus(ctx context.Context, paymentID string) StatusResult {
	if !razorpayID.MatchString(paymentID) {
		return statusFailure("invalid payment id")
	}

	// GET /v1/payments/{id}
	p := razorpayPayment{}
	if err := r.call(ctx, http.MethodGet, []string{"v1", "payments", paymentID}, nil, nil, &p); err != nil {
		return statusFailure(r.failure("payment_status", err))
	}

	return StatusResult{
		Success:   true,
		PaymentID: p.ID,
		Status:    normalizeRazorpayStatus(p.Status),
		Amount:    fromPaise(p.Amount),
		Method:    p.Method,
	}
}

// RefundPayment refunds amount of payment, zero amount refunds it in full.
// Reference is stored in refund notes.
func (r *Razorpay) RefundPayment(ctx context.Context, req RefundRequest) RefundResult {
	if !razorpayID.MatchString(req.PaymentID) {
		return refundFailure("invalid payment id")
	}
	if req.Amount.IsNegative() {
		return refundFailure("amount must not be negative")
	}

	in := razorpayRefundRequest{Amount: toPaise(req.Amount)}
	notes := map[string]string{}
	if req.Reason != "" {
		notes["reason"] = req.Reason
	}
	if req.Reference != "" {
		notes[razorpayNoteReference] = req.Reference
	}
	if len(notes) > 0 {
		in.Notes = notes
	}

	// POST /v1/payments/{id}/refund
	refund := razorpayRefund{}
	err := r.call(ctx, http.MethodPost, []string{"v1", "payments", req.PaymentID, "refund"}, nil, in, &refund)
	if err != nil {
		return refundCallFailure(r.failure("refund", err), err)
	}
	if refund.Status == "failed" {
		return refundFailure("razorpay refund failed")
	}

	return razorpayRefundResult(refund)
}

func razorpayRefundResult(refund razorpayRefund) RefundResult {
	status := models.RefundStatusPending
	switch refund.Status {
	case "processed":
		status = models.RefundStatusProcessed
	case "failed":
		status = models.RefundStatusFailed
	}

	return RefundResult{
		Success:  true,
		RefundID: refund.ID,
		Status:   status,
		Amount:   fromPaise(refund.Amount),
	}
}

// GetRefundStatus fetches refund by id, or finds refund of payment
// carrying lookup reference in its notes
func (r *Razorpay) GetRefundStatus(ctx context.Context, lookup RefundLookup) RefundResult {
	if !razorpayID.MatchString(lookup.PaymentID) {
		return refundFailure("invalid payment id")
	}

	if lookup.RefundID != "" {
		if !razorpayID.MatchString(lookup.RefundID) {
			return refundFailure("invalid refund id")
		}

		// GET /v1/payments/{id}/refunds/{refund_id}
		refund := razorpayRefund{}
		path := []string{"v1", "payments", lookup.PaymentID, "refunds", lookup.RefundID}
		if err := r.call(ctx, http.MethodGet, path, nil, nil, &refund); err != nil {
			return refundCallFailure(r.failure("refund_status", err), err)
		}
		return razorpayRefundResult(refund)
	}

	if lookup.Reference == "" {
		return refundFailure("refund id or reference is required")
	}

	// GET /v1/payments/{id}/refunds
	list := razorpayRefundList{}
	query := url.Values{"count": {strconv.Itoa(razorpayMaxCount)}}
	if err := r.call(ctx, http.MethodGet, []string{"v1", "payments", lookup.PaymentID, "refunds"}, query, nil, &list); err != nil {
		return refundCallFailure(r.failure("refund_list", err), err)
	}

	for _, refund := range list.Items {
		if refund.note(razorpayNoteReference) == lookup.Reference {
			return razorpayRefundResult(refund)
		}
	}

	return RefundResult{Error: "razorpay refund not found", NotFound: true}
}
