package worker

import (
	"context"
	"github.com/rookgm/reviewmart/internal/logger"
	"go.uber.org/zap"
	"time"
)

type RefundService interface {
	ReconcileRefunds(ctx context.Context) (int, error)
}

// RefundReconciler is worker that settles refunds left unfinished by gateways
type RefundReconciler struct {
	svc      RefundService
	interval time.Duration
}

// NewRefundReconciler creates new refund reconciler
func NewRefundReconciler(svc RefundService, interval time.Duration) *RefundReconciler {
	return &RefundReconciler{svc: svc, interval: interval}
}

// Run polls unsettled refunds every interval until ctx is done
func (rr *RefundReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(rr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Debug("refund reconciler is done")
			return
		case <-ticker.C:
			settled, err := rr.svc.ReconcileRefunds(ctx)
			if err != nil {
				logger.Log.Error("error reconciling refunds", zap.Error(err))
				continue
			}
			if settled > 0 {
				logger.Log.Info("refunds settled", zap.Int("count", settled))
			}
		}
	}
}
