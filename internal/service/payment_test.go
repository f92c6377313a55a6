package service

import (
	"context"
	"fmt"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/rookgm/reviewmart/internal/payment"
	"github.com/rookgm/reviewmart/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeGateway struct {
	mu          sync.Mutex
	order       payment.OrderResult
	lastOrder   payment.OrderRequest
	verified    bool
	status      payment.StatusResult
	refund      payment.RefundResult
	lastRefund  payment.RefundRequest
	refundCalls int
	// refund statuses by payment id
	refundStatus map[string]payment.RefundResult
	lookups      []payment.RefundLookup
}

func (g *fakeGateway) Name() string {
	return payment.GatewayRazorpay
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) payment.OrderResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastOrder = req
	return g.order
}

func (g *fakeGateway) VerifyPayment(callback map[string]string) bool {
	return g.verified
}

func (g *fakeGateway) GetPaymentStatus(ctx context.Context, paymentID string) payment.StatusResult {
	return g.status
}

func (g *fakeGateway) RefundPayment(ctx context.Context, req payment.RefundRequest) payment.RefundResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	g.lastRefund = req
	return g.refund
}

func (g *fakeGateway) GetRefundStatus(ctx context.Context, lookup payment.RefundLookup) payment.RefundResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups = append(g.lookups, lookup)
	res, ok := g.refundStatus[lookup.PaymentID]
	if !ok {
		return payment.RefundResult{Error: "refund not found", NotFound: true}
	}
	return res
}

type fakeProvider struct {
	gw  payment.Gateway
	err error
}

func (p *fakeProvider) GetGateway(ctx context.Context, name string) (payment.Gateway, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.gw, nil
}

func (p *fakeProvider) ListAvailableGateways(ctx context.Context) ([]payment.GatewayInfo, error) {
	return []payment.GatewayInfo{{Code: payment.GatewayRazorpay, DisplayName: "Razorpay"}}, nil
}

func newPaymentService(gw payment.Gateway) (*PaymentService, *memory.Store) {
	store := memory.New()
	return NewPaymentService(&fakeProvider{gw: gw}, store, "rcpt"), store
}

// testClock is time source shared by store and service, every reading moves it forward
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedPaymentService(gw payment.Gateway) (*PaymentService, *memory.Store, *testClock) {
	clock := &testClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := memory.New(memory.WithClock(clock.Now))
	svc := NewPaymentService(&fakeProvider{gw: gw}, store, "rcpt")
	svc.now = clock.Now
	return svc, store, clock
}

func refundInput(key string) RefundInput {
	return RefundInput{
		IdempotencyKey: key,
		Gateway:        payment.GatewayRazorpay,
		PaymentID:      "pay_1",
		Amount:         dec("250"),
		Reason:         "task refund",
	}
}

func TestPaymentService_CreateOrder(t *testing.T) {
	gw := &fakeGateway{order: payment.OrderResult{Success: true, OrderID: "order_1", Amount: dec("250")}}
	svc, _ := newPaymentService(gw)

	res, err := svc.CreateOrder(context.Background(), OrderInput{Gateway: payment.GatewayRazorpay, Amount: dec("250")})
	require.NoError(t, err)
	assert.Equal(t, "order_1", res.OrderID)
	assert.True(t, strings.HasPrefix(gw.lastOrder.OrderID, "rcpt_"))
	assert.Len(t, gw.lastOrder.OrderID, 21)
}

func TestPaymentService_CreateOrder_GatewayFailure(t *testing.T) {
	gw := &fakeGateway{order: payment.OrderResult{Error: "razorpay returned status 500"}}
	svc, _ := newPaymentService(gw)

	_, err := svc.CreateOrder(context.Background(), OrderInput{Gateway: payment.GatewayRazorpay, Amount: dec("250")})
	require.Error(t, err)
	assert.Equal(t, models.KindGateway, models.KindOf(err))
	assert.False(t, models.KindOf(err).Public())
}

func TestPaymentService_CreateOrder_Invalid(t *testing.T) {
	svc, _ := newPaymentService(&fakeGateway{})

	_, err := svc.CreateOrder(context.Background(), OrderInput{Gateway: payment.GatewayRazorpay, Amount: dec("0")})
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestPaymentService_GatewayUnavailable(t *testing.T) {
	svc := NewPaymentService(&fakeProvider{err: models.ErrGatewayDisabled}, memory.New(), "")

	_, err := svc.CreateOrder(context.Background(), OrderInput{Gateway: payment.GatewayPayU, Amount: dec("10")})
	assert.ErrorIs(t, err, models.ErrGatewayDisabled)
	assert.Equal(t, models.KindConfiguration, models.KindOf(err))
}

func TestPaymentService_VerifyPayment(t *testing.T) {
	svc, _ := newPaymentService(&fakeGateway{verified: true})
	assert.NoError(t, svc.VerifyPayment(context.Background(), payment.GatewayRazorpay, map[string]string{}))

	svc, _ = newPaymentService(&fakeGateway{verified: false})
	assert.ErrorIs(t, svc.VerifyPayment(context.Background(), payment.GatewayRazorpay, map[string]string{}), models.ErrPaymentNotVerified)
}

func TestPaymentService_Refund_Idempotent(t *testing.T) {
	gw := &fakeGateway{refund: payment.RefundResult{Success: true, RefundID: "rfnd_1", Status: models.RefundStatusProcessed}}
	svc, _ := newPaymentService(gw)
	ctx := context.Background()

	first, err := svc.Refund(ctx, refundInput("task:42"))
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusProcessed, first.Status)
	assert.Equal(t, "rfnd_1", first.GatewayRefundID)

	second, err := svc.Refund(ctx, refundInput("task:42"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, gw.refundCalls)

	reused := refundInput("task:42")
	reused.Amount = dec("100")
	_, err = svc.Refund(ctx, reused)
	assert.ErrorIs(t, err, models.ErrRefundKeyReused)
	assert.Equal(t, 1, gw.refundCalls)
}

func TestPaymentService_Refund_Concurrent(t *testing.T) {
	gw := &fakeGateway{refund: payment.RefundResult{Success: true, RefundID: "rfnd_1", Status: models.RefundStatusPending}}
	svc, _ := newPaymentService(gw)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refund(context.Background(), refundInput("task:7"))
			if err != nil {
				assert.ErrorIs(t, err, models.ErrRefundInProgress)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, gw.refundCalls)
}

func TestPaymentService_Refund_GatewayFailure(t *testing.T) {
	gw := &fakeGateway{refund: payment.RefundResult{Error: "The refund amount exceeds the payment amount"}}
	svc, store := newPaymentService(gw)
	ctx := context.Background()

	_, err := svc.Refund(ctx, refundInput("task:9"))
	assert.Equal(t, models.KindGateway, models.KindOf(err))
	assert.Equal(t, "task:9", gw.lastRefund.Reference)

	stored, err := store.GetRefundByKey(ctx, "task:9")
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusFailed, stored.Status)
	assert.Equal(t, "The refund amount exceeds the payment amount", stored.ErrorMessage)

	// retry with the same key does not reach the gateway
	_, err = svc.Refund(ctx, refundInput("task:9"))
	assert.ErrorIs(t, err, models.ErrRefundFailed)
	assert.Equal(t, 1, gw.refundCalls)
}

func TestPaymentService_Refund_UnknownOutcome(t *testing.T) {
	gw := &fakeGateway{refund: payment.RefundResult{Error: "context deadline exceeded", Ambiguous: true}}
	svc, store, clock := newClockedPaymentService(gw)
	ctx := context.Background()

	_, err := svc.Refund(ctx, refundInput("task:10"))
	assert.ErrorIs(t, err, models.ErrRefundOutcomeUnknown)

	stored, err := store.GetRefundByKey(ctx, "task:10")
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusInitiated, stored.Status)
	assert.Equal(t, "context deadline exceeded", stored.ErrorMessage)

	_, err = svc.Refund(ctx, refundInput("task:10"))
	assert.ErrorIs(t, err, models.ErrRefundInProgress)
	assert.Equal(t, 1, gw.refundCalls)

	// fresh claim is left alone
	settled, err := svc.ReconcileRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
	assert.Empty(t, gw.lookups)

	gw.refundStatus = map[string]payment.RefundResult{
		"pay_1": {Success: true, RefundID: "rfnd_9", Status: models.RefundStatusProcessed},
	}
	clock.Advance(refundClaimTimeout)

	settled, err = svc.ReconcileRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
	require.Len(t, gw.lookups, 1)
	assert.Equal(t, payment.RefundLookup{PaymentID: "pay_1", Reference: "task:10"}, gw.lookups[0])

	stored, err = store.GetRefundByKey(ctx, "task:10")
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusProcessed, stored.Status)
	assert.Equal(t, "rfnd_9", stored.GatewayRefundID)

	again, err := svc.Refund(ctx, refundInput("task:10"))
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusProcessed, again.Status)
	assert.Equal(t, 1, gw.refundCalls)
}

func TestPaymentService_Refund_GatewayTimeout(t *testing.T) {
	var executed atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		executed.Add(1)
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.Write([]byte(`{"id":"rfnd_1","amount":25000,"payment_id":"pay_1","status":"processed"}`))
	}))
	defer srv.Close()

	gw, err := payment.NewRazorpay(payment.RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret", BaseURL: srv.URL},
		payment.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	svc, store := newPaymentService(gw)
	ctx := context.Background()

	_, err = svc.Refund(ctx, refundInput("task:13"))
	assert.ErrorIs(t, err, models.ErrRefundOutcomeUnknown)

	stored, err := store.GetRefundByKey(ctx, "task:13")
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusInitiated, stored.Status)

	_, err = svc.Refund(ctx, refundInput("task:13"))
	assert.ErrorIs(t, err, models.ErrRefundInProgress)
	assert.Equal(t, int32(1), executed.Load())
}

func TestPaymentService_Refund_InProgress(t *testing.T) {
	gw := &fakeGateway{}
	svc, store := newPaymentService(gw)
	ctx := context.Background()

	require.NoError(t, store.CreateRefund(ctx, &models.Refund{
		IdempotencyKey: "task:3",
		Gateway:        payment.GatewayRazorpay,
		PaymentID:      "pay_1",
		Amount:         dec("250"),
		Status:         models.RefundStatusInitiated,
	}))

	_, err := svc.Refund(ctx, refundInput("task:3"))
	assert.ErrorIs(t, err, models.ErrRefundInProgress)
	assert.Equal(t, 0, gw.refundCalls)
}

func TestPaymentService_Refund_Validation(t *testing.T) {
	svc, _ := newPaymentService(&fakeGateway{})

	tests := []struct {
		name  string
		input func() RefundInput
	}{
		{name: "no_key", input: func() RefundInput { return refundInput("") }},
		{name: "long_key", input: func() RefundInput { return refundInput(strings.Repeat("k", 101)) }},
		{name: "no_payment", input: func() RefundInput { in := refundInput("k"); in.PaymentID = ""; return in }},
		{name: "zero_amount", input: func() RefundInput { in := refundInput("k"); in.Amount = decimal.Zero; return in }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Refund(context.Background(), tt.input())
			assert.Equal(t, models.KindValidation, models.KindOf(err))
		})
	}
}

func TestPaymentService_ReconcileRefunds(t *testing.T) {
	gw := &fakeGateway{refund: payment.RefundResult{Success: true, RefundID: "rfnd_1", Status: models.RefundStatusPending}}
	svc, store, _ := newClockedPaymentService(gw)
	ctx := context.Background()

	_, err := svc.Refund(ctx, refundInput("task:11"))
	require.NoError(t, err)

	// gateway still processing
	gw.refundStatus = map[string]payment.RefundResult{
		"pay_1": {Success: true, RefundID: "rfnd_1", Status: models.RefundStatusPending},
	}
	settled, err := svc.ReconcileRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
	require.Len(t, gw.lookups, 1)
	assert.Equal(t, "rfnd_1", gw.lookups[0].RefundID)

	gw.refundStatus["pay_1"] = payment.RefundResult{Success: true, RefundID: "rfnd_1", Status: models.RefundStatusProcessed}
	settled, err = svc.ReconcileRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	stored, err := store.GetRefundByKey(ctx, "task:11")
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusProcessed, stored.Status)

	settled, err = svc.ReconcileRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
}

func TestPaymentService_ReconcileRefunds_PartialAndFull(t *testing.T) {
	gw := &fakeGateway{refundStatus: map[string]payment.RefundResult{
		// payment stays captured after partial refund, refund itself is processed
		"pay_partial": {Success: true, RefundID: "rfnd_p", Status: models.RefundStatusProcessed},
		"pay_full":    {Success: true, RefundID: "rfnd_f", Status: models.RefundStatusProcessed},
		"pay_failed":  {Success: true, RefundID: "rfnd_x", Status: models.RefundStatusFailed},
		"pay_slow":    {Success: true, RefundID: "rfnd_s", Status: models.RefundStatusPending},
	}}
	svc, store, _ := newClockedPaymentService(gw)
	ctx := context.Background()

	for _, id := range []string{"pay_partial", "pay_full", "pay_failed", "pay_slow"} {
		require.NoError(t, store.CreateRefund(ctx, &models.Refund{
			IdempotencyKey:  "refund:" + id,
			Gateway:         payment.GatewayRazorpay,
			PaymentID:       id,
			Amount:          dec("100"),
			Status:          models.RefundStatusPending,
			GatewayRefundID: "rfnd_" + id,
		}))
	}

	settled, err := svc.ReconcileRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, settled)

	want := map[string]string{
		"pay_partial": models.RefundStatusProcessed,
		"pay_full":    models.RefundStatusProcessed,
		"pay_failed":  models.RefundStatusFailed,
		"pay_slow":    models.RefundStatusPending,
	}
	for id, status := range want {
		stored, err := store.GetRefundByKey(ctx, "refund:"+id)
		require.NoError(t, err)
		assert.Equal(t, status, stored.Status, id)
	}
}

func TestPaymentService_ReconcileRefunds_BatchRotates(t *testing.T) {
	gw := &fakeGateway{refundStatus: map[string]payment.RefundResult{}}
	svc, store, _ := newClockedPaymentService(gw)
	ctx := context.Background()

	total := reconcileBatch + 1
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("pay_%d", i)
		gw.refundStatus[id] = payment.RefundResult{Success: true, Status: models.RefundStatusPending}
		require.NoError(t, store.CreateRefund(ctx, &models.Refund{
			IdempotencyKey: "refund:" + id,
			Gateway:        payment.GatewayRazorpay,
			PaymentID:      id,
			Amount:         dec("100"),
			Status:         models.RefundStatusPending,
		}))
	}
	last := fmt.Sprintf("pay_%d", total-1)
	gw.refundStatus[last] = payment.RefundResult{Success: true, Status: models.RefundStatusProcessed}

	settled, err := svc.ReconcileRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)

	settled, err = svc.ReconcileRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	stored, err := store.GetRefundByKey(ctx, "refund:"+last)
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusProcessed, stored.Status)
}

func TestPaymentService_ReconcileRefunds_UnknownToGateway(t *testing.T) {
	gw := &fakeGateway{refund: payment.RefundResult{Error: "connection reset by peer", Ambiguous: true}}
	svc, store, clock := newClockedPaymentService(gw)
	ctx := context.Background()

	_, err := svc.Refund(ctx, refundInput("task:14"))
	assert.ErrorIs(t, err, models.ErrRefundOutcomeUnknown)

	clock.Advance(refundClaimTimeout)
	settled, err := svc.ReconcileRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)

	stored, err := store.GetRefundByKey(ctx, "task:14")
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusInitiated, stored.Status)

	clock.Advance(refundLookupGrace)
	settled, err = svc.ReconcileRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	stored, err = store.GetRefundByKey(ctx, "task:14")
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusFailed, stored.Status)
	assert.Equal(t, "refund not found", stored.ErrorMessage)
}

func TestPaymentService_PaymentStatus(t *testing.T) {
	gw := &fakeGateway{status: payment.StatusResult{Success: true, PaymentID: "pay_1", Status: payment.StatusCaptured, Amount: dec("250")}}
	svc, _ := newPaymentService(gw)

	res, err := svc.PaymentStatus(context.Background(), payment.GatewayRazorpay, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCaptured, res.Status)

	gw.status = payment.StatusResult{Error: "boom"}
	_, err = svc.PaymentStatus(context.Background(), payment.GatewayRazorpay, "pay_1")
	assert.Equal(t, models.KindGateway, models.KindOf(err))
}
