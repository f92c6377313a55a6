package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"github.com/google/uuid"
	"github.com/rookgm/reviewmart/internal/logger"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	payuTestPaymentURL = "https://test.payu.in/_payment"
	payuLivePaymentURL = "https://secure.payu.in/_payment"
	payuTestInfoURL    = "https://test.payu.in"
	payuLiveInfoURL    = "https://info.payu.in"

	payuCommandVerify       = "verify_payment"
	payuCommandRefund       = "cancel_refund_transaction"
	payuCommandActionStatus = "check_action_status"

	// PayU rejects longer transaction ids
	payuMaxTxnID = 25
)

// PayUConfig contains PayU merchant credentials
type PayUConfig struct {
	MerchantKey  string
	MerchantSalt string
	TestMode     bool
	// PaymentURL and InfoURL default to test or live endpoints by TestMode
	PaymentURL string
	InfoURL    string
}

// PayU implements Gateway for PayU hosted checkout
type PayU struct {
	cfg    PayUConfig
	client *client
}

// NewPayU creates new PayU gateway
func NewPayU(cfg PayUConfig, opts ...Option) (*PayU, error) {
	if strings.TrimSpace(cfg.MerchantKey) == "" {
		return nil, models.ConfigurationError("payu: merchant_key is required")
	}
	if strings.TrimSpace(cfg.MerchantSalt) == "" {
		return nil, models.ConfigurationError("payu: merchant_salt is required")
	}
	if cfg.PaymentURL == "" {
		cfg.PaymentURL = payuLivePaymentURL
		if cfg.TestMode {
			cfg.PaymentURL = payuTestPaymentURL
		}
	}
	if cfg.InfoURL == "" {
		cfg.InfoURL = payuLiveInfoURL
		if cfg.TestMode {
			cfg.InfoURL = payuTestInfoURL
		}
	}
	return &PayU{cfg: cfg, client: newClient(opts...)}, nil
}

// Name returns gateway name
func (p *PayU) Name() string {
	return GatewayPayU
}

func sha512Hex(fields ...string) string {
	sum := sha512.Sum512([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

// RequestHash returns hash of payment form,
// sha512(key|txnid|amount|productinfo|firstname|email|||||||||||salt)
func (p *PayU) RequestHash(txnID, amount, productInfo, firstName, email string) string {
	fields := []string{p.cfg.MerchantKey, txnID, amount, productInfo, firstName, email}
	// udf1-udf5 and five reserved fields
	fields = append(fields, make([]string, 10)...)
	return sha512Hex(append(fields, p.cfg.MerchantSalt)...)
}

// ResponseHash returns hash of payment callback,
// sha512(salt|status|||||||||||email|firstname|productinfo|amount|txnid|key)
func (p *PayU) ResponseHash(status, txnID, amount, productInfo, firstName, email string) string {
	fields := []string{p.cfg.MerchantSalt, status}
	fields = append(fields, make([]string, 10)...)
	return sha512Hex(append(fields, email, firstName, productInfo, amount, txnID, p.cfg.MerchantKey)...)
}

func newTxnID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// CreateOrder signs PayU payment form. No remote call is made,
// the client posts Params to ActionURL.
func (p *PayU) CreateOrder(ctx context.Context, req OrderRequest) OrderResult {
	if !req.Amount.IsPositive() {
		return orderFailure("amount must be positive")
	}
	if req.Customer.Name == "" || req.Customer.Email == "" {
		return orderFailure("customer name and email are required")
	}

	txnID := req.OrderID
	if txnID == "" {
		txnID = newTxnID()
	}
	if len(txnID) > payuMaxTxnID {
		return orderFailure("order id is too long")
	}

	productInfo := req.Description
	if productInfo == "" {
		productInfo = "Payment"
	}
	amount := req.Amount.StringFixed(2)

	params := map[string]string{
		"key":         p.cfg.MerchantKey,
		"txnid":       txnID,
		"amount":      amount,
		"productinfo": productInfo,
		"firstname":   req.Customer.Name,
		"email":       req.Customer.Email,
		"phone":       req.Customer.Phone,
		"hash":        p.RequestHash(txnID, amount, productInfo, req.Customer.Name, req.Customer.Email),
	}
	if v, ok := req.Metadata["success_url"]; ok {
		params["surl"] = v
	}
	if v, ok := req.Metadata["failure_url"]; ok {
		params["furl"] = v
	}

	return OrderResult{
		Success:   true,
		OrderID:   txnID,
		Amount:    req.Amount.Round(2),
		Currency:  models.Currency,
		ActionURL: p.cfg.PaymentURL,
		Params:    params,
	}
}

// VerifyPayment checks reverse hash of PayU callback
func (p *PayU) VerifyPayment(callback map[string]string) bool {
	required := []string{"status", "txnid", "amount", "productinfo", "firstname", "email", "hash"}
	for _, field := range required {
		if callback[field] == "" {
			return false
		}
	}
	if key, ok := callback["key"]; ok && key != p.cfg.MerchantKey {
		return false
	}

	got, err := hex.DecodeString(callback["hash"])
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(p.ResponseHash(callback["status"], callback["txnid"], callback["amount"],
		callback["productinfo"], callback["firstname"], callback["email"]))

	return hmac.Equal(got, want)
}

type payuTransaction struct {
	MihpayID string `json:"mihpayid"`
	Status   string `json:"status"`
	Amount   string `json:"amt"`
	Mode     string `json:"mode"`
	Error    string `json:"error_Message"`
}

type payuVerifyResponse struct {
	Status       int                        `json:"status"`
	Msg          string                     `json:"msg"`
	Transactions map[string]payuTransaction `json:"transaction_details"`
}

type payuRefundResponse struct {
	Status    int    `json:"status"`
	Msg       string `json:"msg"`
	RequestID string `json:"request_id"`
}

// payuRefundAction is one action of check_action_status answer
type payuRefundAction struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
}

type payuActionStatusResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	// actions by request id, grouped by token or request id
	Details map[string]map[string]payuRefundAction `json:"transaction_details"`
}

// command posts merchant API command, hash is sha512(key|command|var1|salt)
func (p *PayU) command(ctx context.Context, command string, vars []string, out any) error {
	u, err := url.Parse(p.cfg.InfoURL)
	if err != nil {
		return requestError(err)
	}
	u = u.JoinPath("merchant", "postservice.php")
	u.RawQuery = url.Values{"form": {"2"}}.Encode()

	form := url.Values{
		"key":     {p.cfg.MerchantKey},
		"command": {command},
		"hash":    {sha512Hex(p.cfg.MerchantKey, command, vars[0], p.cfg.MerchantSalt)},
	}
	for i, v := range vars {
		form.Set("var"+strconv.Itoa(i+1), v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return requestError(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return p.client.do(req, out)
}

func (p *PayU) failure(op string, err error) string {
	logger.Log.Warn("payu request failed", zap.String("op", op), zap.Error(err))

	var se *statusError
	if errors.As(err, &se) {
		return "payu returned status " + strconv.Itoa(se.Code)
	}
	return "payu request failed: " + err.Error()
}

func normalizePayUStatus(status string) string {
	switch strings.ToLower(status) {
	case "success", "captured":
		return StatusCaptured
	case "auth", "authorized":
		return StatusAuthorized
	case "failure", "failed", "dropped", "bounced", "usercancelled":
		return StatusFailed
	case "refunded":
		return StatusRefunded
	default:
		return StatusPending
	}
}

// GetPaymentStatus runs verify_payment for transaction id
func (p *PayU) GetPaymentStatus(ctx context.Context, paymentID string) StatusResult {
	if paymentID == "" {
		return statusFailure("payment id is required")
	}

	resp := payuVerifyResponse{}
	if err := p.command(ctx, payuCommandVerify, []string{paymentID}, &resp); err != nil {
		return statusFailure(p.failure(payuCommandVerify, err))
	}
	if resp.Status != 1 {
		return statusFailure("payu: " + resp.Msg)
	}

	txn, ok := resp.Transactions[paymentID]
	if !ok {
		return statusFailure("payu: transaction not found")
	}
	if strings.EqualFold(txn.Status, "Not Found") {
		return statusFailure("payu: transaction not found")
	}

	amount, err := decimal.NewFromString(txn.Amount)
	if err != nil {
		return statusFailure(p.failure(payuCommandVerify, err))
	}

	return StatusResult{
		Success:   true,
		PaymentID: paymentID,
		Status:    normalizePayUStatus(txn.Status),
		Amount:    amount,
		Method:    txn.Mode,
	}
}

// refundToken returns merchant refund token. Tokens derived from reference
// are stable, so refund can be found by its reference later.
func refundToken(reference string) string {
	if reference == "" {
		return newTxnID()
	}
	return sha512Hex(reference)[:payuMaxTxnID-5]
}

// RefundPayment runs cancel_refund_transaction for PayU payment id (mihpayid)
func (p *PayU) RefundPayment(ctx context.Context, req RefundRequest) RefundResult {
	if req.PaymentID == "" {
		return refundFailure("payment id is required")
	}
	if !req.Amount.IsPositive() {
		return refundFailure("amount must be positive")
	}

	// var2 is merchant refund token
	token := refundToken(req.Reference)
	resp := payuRefundResponse{}
	err := p.command(ctx, payuCommandRefund, []string{req.PaymentID, token, req.Amount.StringFixed(2)}, &resp)
	if err != nil {
		return refundCallFailure(p.failure(payuCommandRefund, err), err)
	}
	if resp.Status != 1 {
		return refundFailure("payu: " + resp.Msg)
	}

	refundID := resp.RequestID
	if refundID == "" {
		refundID = token
	}

	return RefundResult{
		Success:  true,
		RefundID: refundID,
		Status:   models.RefundStatusPending,
		Amount:   req.Amount.Round(2),
	}
}

func normalizePayURefundStatus(status string) string {
	switch strings.ToLower(status) {
	case "success":
		return models.RefundStatusProcessed
	case "failure", "failed", "cancelled":
		return models.RefundStatusFailed
	default:
		// queued, requested, pending
		return models.RefundStatusPending
	}
}

// GetRefundStatus runs check_action_status for refund request id, or for
// token derived from reference when request id is unknown
func (p *PayU) GetRefundStatus(ctx context.Context, lookup RefundLookup) RefundResult {
	id := lookup.RefundID
	if id == "" && lookup.Reference != "" {
		id = refundToken(lookup.Reference)
	}
	if id == "" {
		return refundFailure("refund id or reference is required")
	}

	resp := payuActionStatusResponse{}
	if err := p.command(ctx, payuCommandActionStatus, []string{id}, &resp); err != nil {
		return refundCallFailure(p.failure(payuCommandActionStatus, err), err)
	}
	if resp.Status != 1 {
		if strings.HasPrefix(strings.ToLower(resp.Msg), "no action") {
			return RefundResult{Error: "payu: " + resp.Msg, NotFound: true}
		}
		return refundFailure("payu: " + resp.Msg)
	}

	for _, actions := range resp.Details {
		for requestID, action := range actions {
			amount, err := decimal.NewFromString(action.Amount)
			if err != nil {
				amount = decimal.Zero
			}
			if action.RequestID != "" {
				requestID = action.RequestID
			}
			return RefundResult{
				Success:  true,
				RefundID: requestID,
				Status:   normalizePayURefundStatus(action.Status),
				Amount:   amount,
			}
		}
	}

	return RefundResult{Error: "payu: refund not found", NotFound: true}
}
