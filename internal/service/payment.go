package service

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/rookgm/reviewmart/internal/logger"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/rookgm/reviewmart/internal/payment"
	"github.com/rookgm/reviewmart/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strings"
	"time"
)

const (
	maxIdempotencyKeyLen = 100
	// unsettled refunds checked per reconciliation run
	reconcileBatch = 50
	// initiated refund younger than this may still wait for gateway answer
	refundClaimTimeout = 2 * time.Minute
	// refund the gateway does not know after this long is failed
	refundLookupGrace = 30 * time.Minute
)

// GatewayProvider returns configured payment gateways
type GatewayProvider interface {
	GetGateway(ctx context.Context, name string) (payment.Gateway, error)
	ListAvailableGateways(ctx context.Context) ([]payment.GatewayInfo, error)
}

// OrderInput is request to create payment order
type OrderInput struct {
	Gateway     string
	Amount      decimal.Decimal
	Description string
	Customer    payment.CustomerInfo
	Metadata    map[string]string
}

// RefundInput is refund request, IdempotencyKey identifies refund attempt
// (e.g. "task:42") across retries
type RefundInput struct {
	IdempotencyKey string
	Gateway        string
	PaymentID      string
	Amount         decimal.Decimal
	Reason         string
}

// PaymentService implements payment operations over gateways
type PaymentService struct {
	gateways      GatewayProvider
	refunds       repository.RefundRepository
	receiptPrefix string
	now           func() time.Time
}

// NewPaymentService creates new PaymentService instance
func NewPaymentService(gateways GatewayProvider, refunds repository.RefundRepository, receiptPrefix string) *PaymentService {
	return &PaymentService{
		gateways:      gateways,
		refunds:       refunds,
		receiptPrefix: receiptPrefix,
		now:           time.Now,
	}
}

func (ps *PaymentService) newReceipt() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	if ps.receiptPrefix == "" {
		return id
	}
	return ps.receiptPrefix + "_" + id
}

func (ps *PaymentService) gateway(ctx context.Context, name string) (payment.Gateway, error) {
	gw, err := ps.gateways.GetGateway(ctx, name)
	if err != nil {
		return nil, classify(err, "get payment gateway", zap.String("gateway", name))
	}
	return gw, nil
}

// ListGateways returns enabled gateways
func (ps *PaymentService) ListGateways(ctx context.Context) ([]payment.GatewayInfo, error) {
	gateways, err := ps.gateways.ListAvailableGateways(ctx)
	if err != nil {
		return nil, classify(err, "list payment gateways")
	}
	return gateways, nil
}

// CreateOrder creates payment order on gateway
func (ps *PaymentService) CreateOrder(ctx context.Context, in OrderInput) (*payment.OrderResult, error) {
	if !validAmount(in.Amount) {
		return nil, models.ValidationError("Invalid amount")
	}

	gw, err := ps.gateway(ctx, in.Gateway)
	if err != nil {
		return nil, err
	}

	receipt := ps.newReceipt()
	res := gw.CreateOrder(ctx, payment.OrderRequest{
		Amount:      in.Amount,
		OrderID:     receipt,
		Description: in.Description,
		Customer:    in.Customer,
		Metadata:    in.Metadata,
	})
	if !res.Success {
		return nil, classify(models.GatewayError("create order", errors.New(res.Error)), "create payment order",
			zap.String("gateway", in.Gateway), zap.String("receipt", receipt))
	}

	return &res, nil
}

// VerifyPayment checks gateway callback signature
func (ps *PaymentService) VerifyPayment(ctx context.Context, gatewayName string, callback map[string]string) error {
	gw, err := ps.gateway(ctx, gatewayName)
	if err != nil {
		return err
	}

	if !gw.VerifyPayment(callback) {
		logger.Log.Warn("payment signature mismatch", zap.String("gateway", gatewayName))
		return models.ErrPaymentNotVerified
	}
	return nil
}

// PaymentStatus returns payment status reported by gateway
func (ps *PaymentService) PaymentStatus(ctx context.Context, gatewayName, paymentID string) (*payment.StatusResult, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, models.ValidationError("Payment id is required")
	}

	gw, err := ps.gateway(ctx, gatewayName)
	if err != nil {
		return nil, err
	}

	res := gw.GetPaymentStatus(ctx, paymentID)
	if !res.Success {
		return nil, classify(models.GatewayError("payment status", errors.New(res.Error)), "get payment status",
			zap.String("gateway", gatewayName), zap.String("payment_id", paymentID))
	}

	return &res, nil
}

func validateRefund(in RefundInput) error {
	if in.IdempotencyKey == "" || len(in.IdempotencyKey) > maxIdempotencyKeyLen {
		return models.ValidationError("Idempotency key is required and must be at most %d characters", maxIdempotencyKeyLen)
	}
	if in.PaymentID == "" {
		return models.ValidationError("Payment id is required")
	}
	if !validAmount(in.Amount) {
		return models.ValidationError("Invalid amount")
	}
	return nil
}

// Refund refunds payment once per idempotency key. The key is claimed before
// the gateway is called; repeated calls return the stored attempt.
func (ps *PaymentService) Refund(ctx context.Context, in RefundInput) (*models.Refund, error) {
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if err := validateRefund(in); err != nil {
		return nil, err
	}

	gw, err := ps.gateway(ctx, in.Gateway)
	if err != nil {
		return nil, err
	}

	refund := &models.Refund{
		IdempotencyKey: in.IdempotencyKey,
		Gateway:        gw.Name(),
		PaymentID:      in.PaymentID,
		Amount:         in.Amount,
		Reason:         in.Reason,
		Status:         models.RefundStatusInitiated,
	}

	if err := ps.refunds.CreateRefund(ctx, refund); err != nil {
		if errors.Is(err, models.ErrConflictData) {
			return ps.existingRefund(ctx, in)
		}
		return nil, classify(err, "claim refund key", zap.String("key", in.IdempotencyKey))
	}

	res := gw.RefundPayment(ctx, payment.RefundRequest{
		PaymentID: in.PaymentID,
		Amount:    in.Amount,
		Reason:    in.Reason,
		Reference: in.IdempotencyKey,
	})

	// outcome is stored even if the caller went away
	storeCtx := context.WithoutCancel(ctx)

	if !res.Success && res.Ambiguous {
		// gateway may have refunded, the row stays initiated until reconciled
		refund.ErrorMessage = res.Error
		if err := ps.refunds.UpdateRefund(storeCtx, refund); err != nil {
			logger.Log.Error("store unknown refund outcome", zap.String("key", refund.IdempotencyKey), zap.Error(err))
		}
		logger.Log.Warn("refund outcome unknown",
			zap.String("key", refund.IdempotencyKey), zap.String("gateway", refund.Gateway),
			zap.String("payment_id", refund.PaymentID), zap.String("error", res.Error))
		return nil, models.ErrRefundOutcomeUnknown
	}

	if !res.Success {
		refund.Status = models.RefundStatusFailed
		refund.ErrorMessage = res.Error
		if err := ps.refunds.UpdateRefund(storeCtx, refund); err != nil {
			logger.Log.Error("store failed refund", zap.String("key", refund.IdempotencyKey), zap.Error(err))
		}
		return nil, classify(models.GatewayError("refund", errors.New(res.Error)), "refund payment",
			zap.String("gateway", refund.Gateway), zap.String("payment_id", refund.PaymentID))
	}

	refund.Status = res.Status
	refund.GatewayRefundID = res.RefundID
	if err := ps.refunds.UpdateRefund(storeCtx, refund); err != nil {
		return nil, classify(err, "store refund", zap.String("key", refund.IdempotencyKey),
			zap.String("gateway_refund_id", res.RefundID))
	}

	logger.Log.Info("refund initiated",
		zap.String("key", refund.IdempotencyKey), zap.String("gateway", refund.Gateway),
		zap.String("payment_id", refund.PaymentID), zap.String("status", refund.Status))

	return refund, nil
}

func (ps *PaymentService) existingRefund(ctx context.Context, in RefundInput) (*models.Refund, error) {
	existing, err := ps.refunds.GetRefundByKey(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, classify(err, "get refund", zap.String("key", in.IdempotencyKey))
	}
	if existing.PaymentID != in.PaymentID || !existing.Amount.Equal(in.Amount) {
		return nil, models.ErrRefundKeyReused
	}
	switch existing.Status {
	case models.RefundStatusInitiated:
		return nil, models.ErrRefundInProgress
	case models.RefundStatusFailed:
		return nil, models.ErrRefundFailed
	}
	return existing, nil
}

// ReconcileRefunds polls gateways for unsettled refunds and stores their
// status. Every checked refund moves to the end of the queue. It returns
// number of refunds settled in this run.
func (ps *PaymentService) ReconcileRefunds(ctx context.Context) (int, error) {
	refunds, err := ps.refunds.GetUnsettledRefunds(ctx, reconcileBatch)
	if err != nil {
		return 0, err
	}

	settled := 0
	for i := range refunds {
		ok, err := ps.reconcileRefund(ctx, &refunds[i])
		if err != nil {
			return settled, err
		}
		if ok {
			settled++
		}
	}

	return settled, nil
}

func (ps *PaymentService) reconcileRefund(ctx context.Context, refund *models.Refund) (bool, error) {
	age := ps.now().Sub(refund.CreatedAt)
	if refund.Status == models.RefundStatusInitiated && age < refundClaimTimeout {
		return false, ps.refunds.TouchRefund(ctx, refund)
	}

	gw, err := ps.gateways.GetGateway(ctx, refund.Gateway)
	if err != nil {
		logger.Log.Warn("refund gateway unavailable", zap.String("key", refund.IdempotencyKey), zap.Error(err))
		return false, ps.refunds.TouchRefund(ctx, refund)
	}

	res := gw.GetRefundStatus(ctx, payment.RefundLookup{
		PaymentID: refund.PaymentID,
		RefundID:  refund.GatewayRefundID,
		Reference: refund.IdempotencyKey,
	})

	switch {
	case res.Success:
		refund.Status = res.Status
		if res.RefundID != "" {
			refund.GatewayRefundID = res.RefundID
		}
	case res.NotFound && age >= refundLookupGrace:
		refund.Status = models.RefundStatusFailed
		refund.ErrorMessage = res.Error
	default:
		logger.Log.Debug("refund status unknown", zap.String("key", refund.IdempotencyKey), zap.String("error", res.Error))
		return false, ps.refunds.TouchRefund(ctx, refund)
	}

	if err := ps.refunds.UpdateRefund(ctx, refund); err != nil {
		return false, err
	}
	if !refund.Settled() {
		return false, nil
	}

	logger.Log.Info("refund settled", zap.String("key", refund.IdempotencyKey),
		zap.String("payment_id", refund.PaymentID), zap.String("status", refund.Status))

	return true, nil
}
