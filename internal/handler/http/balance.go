package handler

import (
	"context"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/shopspring/decimal"
	"net/http"
	"time"
)

// BalanceService is interface for wallet operations of user
type BalanceService interface {
	// GetBalance returns current user balance
	GetBalance(ctx context.Context, userID uint64) (models.Balance, error)
	// RequestWithdrawal reserves amount for payout
	RequestWithdrawal(ctx context.Context, userID uint64, amount decimal.Decimal, method, details string) (*models.WithdrawalRequest, error)
	// GetWithdrawalHistory returns page of user withdrawals
	GetWithdrawalHistory(ctx context.Context, userID uint64, page models.Page) ([]models.WithdrawalRequest, int, error)
	// GetTransactions returns page of user ledger entries
	GetTransactions(ctx context.Context, userID uint64, page models.Page) ([]models.WalletTransaction, int, error)
}

// BalanceHandler represents HTTP handler for balance-related requests
type BalanceHandler struct {
	svc BalanceService
}

// NewBalanceHandler creates new BalanceHandler instance
func NewBalanceHandler(svc BalanceService) *BalanceHandler {
	return &BalanceHandler{svc: svc}
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
	// sum of pending and processing withdrawals, balance is debited on complete
	PendingWithdrawal decimal.Decimal `json:"pending_withdrawal"`
	AvailableBalance  decimal.Decimal `json:"available_balance"`
}

// GetUserBalance returns current user balance. pending_withdrawal counts
// withdrawals in pending and processing status, both still reserve funds
// because the wallet is debited only when a withdrawal completes.
// 200: balance of caller
// 401: caller is not authenticated
// 500: storage failure
func (bh *BalanceHandler) GetUserBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			writeStatus(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		balance, err := bh.svc.GetBalance(r.Context(), payload.UserID)
		if err != nil {
			writeError(w, err)
			return
		}

		writeData(w, http.StatusOK, balanceResponse{
			Balance:           balance.Balance,
			PendingWithdrawal: balance.PendingWithdrawal,
			AvailableBalance:  balance.AvailableBalance,
		})
	}
}

type withdrawRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentDetails string          `json:"payment_details"`
}

type withdrawalResponse struct {
	ID                   uint64          `json:"id"`
	Amount               decimal.Decimal `json:"amount"`
	PaymentMethod        string          `json:"payment_method"`
	Status               string          `json:"status"`
	AdminNote            string          `json:"admin_note,omitempty"`
	TransactionReference *string         `json:"transaction_reference,omitempty"`
	RequestedAt          time.Time       `json:"requested_at"`
	ProcessedAt          *time.Time      `json:"processed_at,omitempty"`
}

func newWithdrawalResponse(w *models.WithdrawalRequest) withdrawalResponse {
	return withdrawalResponse{
		ID:                   w.ID,
		Amount:               w.Amount,
		PaymentMethod:        w.PaymentMethod,
		Status:               w.Status,
		AdminNote:            w.AdminNote,
		TransactionReference: w.TransactionReference,
		RequestedAt:          w.RequestedAt,
		ProcessedAt:          w.ProcessedAt,
	}
}

// UserBalanceWithdrawal performs user request for withdrawal
// 201: withdrawal request is created
// 400: bad request, amount below minimum or above available balance
// 401: caller is not authenticated
// 500: storage failure
func (bh *BalanceHandler) UserBalanceWithdrawal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			writeStatus(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req withdrawRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}

		withdrawal, err := bh.svc.RequestWithdrawal(r.Context(), payload.UserID, req.Amount, req.PaymentMethod, req.PaymentDetails)
		if err != nil {
			writeError(w, err)
			return
		}

		writeData(w, http.StatusCreated, newWithdrawalResponse(withdrawal))
	}
}

// GetUserWithdrawals returns page of user withdrawals
func (bh *BalanceHandler) GetUserWithdrawals() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			writeStatus(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		page := parsePage(r)

		withdrawals, total, err := bh.svc.GetWithdrawalHistory(r.Context(), payload.UserID, page)
		if err != nil {
			writeError(w, err)
			return
		}

		items := make([]withdrawalResponse, 0, len(withdrawals))
		for i := range withdrawals {
			items = append(items, newWithdrawalResponse(&withdrawals[i]))
		}

		writeData(w, http.StatusOK, pageResponse{Items: items, Total: total, Page: page.Number, PerPage: page.PerPage})
	}
}

type transactionResponse struct {
	ID          uint64          `json:"id"`
	Type        string          `json:"type"`
	Source      string          `json:"source"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newTransactionResponse(t *models.WalletTransaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Type:        t.Type,
		Source:      t.Source,
		Amount:      t.Amount,
		Reference:   t.Reference,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	}
}

// GetUserTransactions returns page of user ledger entries
func (bh *BalanceHandler) GetUserTransactions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			writeStatus(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		page := parsePage(r)

		transactions, total, err := bh.svc.GetTransactions(r.Context(), payload.UserID, page)
		if err != nil {
			writeError(w, err)
			return
		}

		items := make([]transactionResponse, 0, len(transactions))
		for i := range transactions {
			items = append(items, newTransactionResponse(&transactions[i]))
		}

		writeData(w, http.StatusOK, pageResponse{Items: items, Total: total, Page: page.Number, PerPage: page.PerPage})
	}
}
