package main

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	handler "github.com/rookgm/reviewmart/internal/handler/http"
	"github.com/rookgm/reviewmart/internal/middleware"
	"github.com/rookgm/reviewmart/internal/ratelimit"
	"go.uber.org/zap"
	"net/http"
)

type handlers struct {
	task    *handler.TaskHandler
	balance *handler.BalanceHandler
	payment *handler.PaymentHandler
	admin   *handler.AdminHandler
}

func newRouter(h handlers, tv handler.TokenVerifier, limiter ratelimit.Limiter, logger *zap.Logger) chi.Router {
	limit := func(action string) func(http.Handler) http.Handler {
		return handler.RateLimit(limiter, action)
	}

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Recover(logger))

	// gateway callbacks are signed, the payer may have no session
	router.With(limit(ratelimit.ActionPaymentVerify)).Post("/api/payments/{gateway}/verify", h.payment.VerifyPayment())

	// routes that require authentication
	router.Group(func(group chi.Router) {
		group.Use(handler.AuthMiddleware(tv))

		group.With(limit(ratelimit.ActionTaskProof)).Post("/api/user/tasks/{id}/order", h.task.SubmitOrder())
		group.With(limit(ratelimit.ActionTaskProof)).Post("/api/user/tasks/{id}/delivery", h.task.SubmitDelivery())
		group.With(limit(ratelimit.ActionTaskProof)).Post("/api/user/tasks/{id}/review", h.task.SubmitReview())
		group.With(limit(ratelimit.ActionTaskProof)).Post("/api/user/tasks/{id}/refund", h.task.SubmitRefundProof())
		group.With(limit(ratelimit.ActionSync)).Get("/api/user/tasks", h.task.ListTasks())
		group.With(limit(ratelimit.ActionSync)).Get("/api/user/tasks/{id}", h.task.GetTask())

		group.With(limit(ratelimit.ActionSync)).Get("/api/user/balance", h.balance.GetUserBalance())
		group.With(limit(ratelimit.ActionWithdrawal)).Post("/api/user/balance/withdraw", h.balance.UserBalanceWithdrawal())
		group.With(limit(ratelimit.ActionSync)).Get("/api/user/withdrawals", h.balance.GetUserWithdrawals())
		group.With(limit(ratelimit.ActionSync)).Get("/api/user/transactions", h.balance.GetUserTransactions())

		group.With(limit(ratelimit.ActionSync)).Get("/api/payments/gateways", h.payment.ListGateways())
		group.With(limit(ratelimit.ActionPaymentCreate)).Post("/api/payments/orders", h.payment.CreateOrder())
		group.With(limit(ratelimit.ActionSync)).Get("/api/payments/{gateway}/status/{paymentID}", h.payment.GetPaymentStatus())

		group.Group(func(admin chi.Router) {
			admin.Use(handler.AdminOnly)

			admin.With(limit(ratelimit.ActionRefund)).Post("/api/admin/refunds", h.payment.Refund())
			admin.With(limit(ratelimit.ActionAuth)).Post("/api/admin/wallets/{userID}/credit", h.admin.CreditWallet())
			admin.With(limit(ratelimit.ActionAuth)).Post("/api/admin/withdrawals/{id}/process", h.admin.ProcessWithdrawal())
			admin.With(limit(ratelimit.ActionAuth)).Post("/api/admin/withdrawals/{id}/complete", h.admin.CompleteWithdrawal())
			admin.With(limit(ratelimit.ActionAuth)).Post("/api/admin/withdrawals/{id}/reject", h.admin.RejectWithdrawal())
		})
	})

	return router
}
