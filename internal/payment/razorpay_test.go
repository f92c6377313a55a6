package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const (
	testKeyID     = "rzp_test_key"
	testKeySecret = "rzp_test_secret"
)

func newTestRazorpay(t *testing.T, baseURL string) *Razorpay {
	t.Helper()
	gw, err := NewRazorpay(RazorpayConfig{KeyID: testKeyID, KeySecret: testKeySecret, BaseURL: baseURL})
	require.NoError(t, err)
	return gw
}

func TestNewRazorpay(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RazorpayConfig
		wantErr bool
	}{
		{name: "valid", cfg: RazorpayConfig{KeyID: "id", KeySecret: "secret"}},
		{name: "missing_key_id", cfg: RazorpayConfig{KeySecret: "secret"}, wantErr: true},
		{name: "blank_secret", cfg: RazorpayConfig{KeyID: "id", KeySecret: "   "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, err := NewRazorpay(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, models.KindConfiguration, models.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, GatewayRazorpay, gw.Name())
		})
	}
}

func TestRazorpay_CreateOrder(t *testing.T) {
	var got razorpayOrderRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, testKeyID, user)
		assert.Equal(t, testKeySecret, pass)

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(razorpayOrder{
			ID:       "order_abc",
			Amount:   got.Amount,
			Currency: got.Currency,
			Receipt:  got.Receipt,
			Status:   "created",
		})
	}))
	defer srv.Close()

	gw := newTestRazorpay(t, srv.URL)

	res := gw.CreateOrder(context.Background(), OrderRequest{
		Amount:   decimal.RequireFromString("250.00"),
		OrderID:  "abc",
		Customer: CustomerInfo{Name: "Asha", Email: "asha@example.com", Phone: "9999999999"},
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, int64(25000), got.Amount)
	assert.Equal(t, "INR", got.Currency)
	assert.Equal(t, "abc", got.Receipt)

	assert.Equal(t, "order_abc", res.OrderID)
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("250.00")), res.Amount.String())
	assert.Equal(t, "25000", res.Params["amount"])
	assert.Equal(t, testKeyID, res.Params["key"])
	assert.Equal(t, "asha@example.com", res.Params["prefill_email"])
}

func TestRazorpay_CreateOrder_TruncatesPaise(t *testing.T) {
	var got razorpayOrderRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(razorpayOrder{ID: "order_1", Amount: got.Amount})
	}))
	defer srv.Close()

	res := newTestRazorpay(t, srv.URL).CreateOrder(context.Background(), OrderRequest{
		Amount: decimal.RequireFromString("10.999"),
	})

	require.True(t, res.Success)
	assert.Equal(t, int64(1099), got.Amount)
}

func TestRazorpay_CreateOrder_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "api_error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`))
			},
			wantErr: "The amount must be atleast INR 1.00",
		},
		{
			name: "server_error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: "razorpay returned status 500",
		},
		{
			name: "malformed_json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"id":`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			res := newTestRazorpay(t, srv.URL).CreateOrder(context.Background(), OrderRequest{
				Amount:  decimal.NewFromInt(100),
				OrderID: "r1",
			})

			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Error)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, res.Error)
			}
		})
	}
}

func TestRazorpay_CreateOrder_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := newTestRazorpay(t, url).CreateOrder(context.Background(), OrderRequest{Amount: decimal.NewFromInt(1)})

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestRazorpay_CreateOrder_InvalidAmount(t *testing.T) {
	gw := newTestRazorpay(t, "http://127.0.0.1:0")

	for _, amount := range []string{"0", "-5", "0.001"} {
		res := gw.CreateOrder(context.Background(), OrderRequest{Amount: decimal.RequireFromString(amount)})
		assert.False(t, res.Success, amount)
	}
}

func TestRazorpay_VerifyPayment(t *testing.T) {
	gw := newTestRazorpay(t, "")

	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte("order_1|pay_1"))
	signature := hex.EncodeToString(mac.Sum(nil))

	valid := map[string]string{
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  signature,
	}
	assert.Equal(t, signature, gw.Signature("order_1", "pay_1"))
	assert.True(t, gw.VerifyPayment(valid))

	tamper := func(field, value string) map[string]string {
		cb := make(map[string]string, len(valid))
		for k, v := range valid {
			cb[k] = v
		}
		cb[field] = value
		return cb
	}

	tests := []struct {
		name     string
		callback map[string]string
	}{
		{name: "order_id", callback: tamper("razorpay_order_id", "order_2")},
		{name: "payment_id", callback: tamper("razorpay_payment_id", "pay_2")},
		{name: "signature", callback: tamper("razorpay_signature", gw.Signature("order_1", "pay_2"))},
		{name: "not_hex", callback: tamper("razorpay_signature", "zz")},
		{name: "missing_signature", callback: tamper("razorpay_signature", "")},
		{name: "empty", callback: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, gw.VerifyPayment(tt.callback))
		})
	}
}

func TestRazorpay_GetPaymentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/pay_1", r.URL.Path)
		json.NewEncoder(w).Encode(razorpayPayment{ID: "pay_1", Amount: 49950, Status: "captured", Method: "upi"})
	}))
	defer srv.Close()

	res := newTestRazorpay(t, srv.URL).GetPaymentStatus(context.Background(), "pay_1")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, StatusCaptured, res.Status)
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("499.50")))
	assert.Equal(t, "upi", res.Method)
}

func TestRazorpay_RefundPayment(t *testing.T) {
	var got razorpayRefundRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_1/refund", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(razorpayRefund{ID: "rfnd_1", Amount: got.Amount, PaymentID: "pay_1", Status: "processed"})
	}))
	defer srv.Close()

	res := newTestRazorpay(t, srv.URL).RefundPayment(context.Background(), RefundRequest{
		PaymentID: "pay_1",
		Amount:    decimal.NewFromInt(100),
		Reason:    "damaged",
		Reference: "task:42",
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, int64(10000), got.Amount)
	assert.Equal(t, "damaged", got.Notes["reason"])
	assert.Equal(t, "task:42", got.Notes["reference"])
	assert.Equal(t, "rfnd_1", res.RefundID)
	assert.Equal(t, models.RefundStatusProcessed, res.Status)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(100)))
}

func TestRazorpay_RefundPayment_Failures(t *testing.T) {
	tests := []struct {
		name          string
		code          int
		body          string
		stall         time.Duration
		wantAmbiguous bool
	}{
		{name: "bad_request", code: http.StatusBadRequest, body: `{"error":{"code":"BAD_REQUEST_ERROR","description":"The refund amount provided is greater than amount captured"}}`},
		{name: "refund_failed", code: http.StatusOK, body: `{"id":"rfnd_1","status":"failed"}`},
		{name: "server_error", code: http.StatusServiceUnavailable, body: `oops`, wantAmbiguous: true},
		{name: "malformed_answer", code: http.StatusOK, body: `<html>`, wantAmbiguous: true},
		{name: "timeout", code: http.StatusOK, body: `{"id":"rfnd_1","status":"processed"}`, stall: 300 * time.Millisecond, wantAmbiguous: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(tt.stall):
				case <-r.Context().Done():
				}
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			gw, err := NewRazorpay(RazorpayConfig{KeyID: testKeyID, KeySecret: testKeySecret, BaseURL: srv.URL},
				WithTimeout(50*time.Millisecond))
			require.NoError(t, err)

			res := gw.RefundPayment(context.Background(), RefundRequest{PaymentID: "pay_1", Amount: decimal.NewFromInt(100)})
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Error)
			assert.Equal(t, tt.wantAmbiguous, res.Ambiguous)
		})
	}
}

func TestRazorpay_RejectsUnsafeIDs(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	gw := newTestRazorpay(t, srv.URL)
	ctx := context.Background()

	for _, id := range []string{"../orders", "pay_1/refund", "pay 1", "pay_1?x=1", ""} {
		assert.False(t, gw.GetPaymentStatus(ctx, id).Success, id)

		res := gw.RefundPayment(ctx, RefundRequest{PaymentID: id, Amount: decimal.NewFromInt(1)})
		assert.False(t, res.Success, id)
		assert.False(t, res.Ambiguous, id)

		assert.False(t, gw.GetRefundStatus(ctx, RefundLookup{PaymentID: "pay_1", RefundID: id + "x/.."}).Success, id)
	}

	assert.Equal(t, int32(0), calls.Load())
}

func TestRazorpay_GetRefundStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/v1/payments/pay_1/refunds/rfnd_1":
			w.Write([]byte(`{"id":"rfnd_1","amount":5000,"payment_id":"pay_1","status":"processed","notes":[]}`))
		case "/v1/payments/pay_1/refunds":
			assert.Equal(t, "100", r.URL.Query().Get("count"))
			w.Write([]byte(`{"entity":"collection","count":2,"items":[
				{"id":"rfnd_0","amount":1000,"payment_id":"pay_1","status":"processed","notes":[]},
				{"id":"rfnd_2","amount":2500,"payment_id":"pay_1","status":"pending","notes":{"reference":"task:42"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`))
		}
	}))
	defer srv.Close()

	gw := newTestRazorpay(t, srv.URL)
	ctx := context.Background()

	t.Run("by_refund_id", func(t *testing.T) {
		res := gw.GetRefundStatus(ctx, RefundLookup{PaymentID: "pay_1", RefundID: "rfnd_1"})
		require.True(t, res.Success, res.Error)
		assert.Equal(t, models.RefundStatusProcessed, res.Status)
		assert.True(t, res.Amount.Equal(decimal.NewFromInt(50)))
	})

	t.Run("by_reference", func(t *testing.T) {
		res := gw.GetRefundStatus(ctx, RefundLookup{PaymentID: "pay_1", Reference: "task:42"})
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "rfnd_2", res.RefundID)
		assert.Equal(t, models.RefundStatusPending, res.Status)
	})

	t.Run("unknown_reference", func(t *testing.T) {
		res := gw.GetRefundStatus(ctx, RefundLookup{PaymentID: "pay_1", Reference: "task:43"})
		assert.False(t, res.Success)
		assert.True(t, res.NotFound)
	})

	t.Run("unknown_refund_id", func(t *testing.T) {
		res := gw.GetRefundStatus(ctx, RefundLookup{PaymentID: "pay_1", RefundID: "rfnd_9"})
		assert.False(t, res.Success)
		assert.True(t, res.NotFound)
		assert.Equal(t, "The id provided does not exist", res.Error)
	})
}
