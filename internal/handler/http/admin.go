package handler

import (
	"context"
	"github.com/go-chi/chi/v5"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/shopspring/decimal"
	"net/http"
)

// WalletAdminService is interface for operator side of wallets
type WalletAdminService interface {
	Credit(ctx context.Context, userID uint64, amount decimal.Decimal, source, reference, description string) (*models.WalletTransaction, error)
	ProcessWithdrawal(ctx context.Context, id uint64) (*models.WithdrawalRequest, error)
	CompleteWithdrawal(ctx context.Context, id uint64, transactionRef string) (*models.WithdrawalRequest, error)
	RejectWithdrawal(ctx context.Context, id uint64, note string) (*models.WithdrawalRequest, error)
}

// AdminHandler represents HTTP handler for operator requests
type AdminHandler struct {
	svc WalletAdminService
}

// NewAdminHandler creates new AdminHandler instance
func NewAdminHandler(svc WalletAdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type creditRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Source      string          `json:"source"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
}

// CreditWallet credits wallet of user {userID}
func (ah *AdminHandler) CreditWallet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseID(chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, err)
			return
		}

		var req creditRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}

		tx, err := ah.svc.Credit(r.Context(), userID, req.Amount, req.Source, req.Reference, req.Description)
		if err != nil {
			writeError(w, err)
			return
		}

		writeData(w, http.StatusCreated, newTransactionResponse(tx))
	}
}

type withdrawalActionRequest struct {
	TransactionReference string `json:"transaction_reference"`
	Note                 string `json:"note"`
}

type withdrawalAction func(ctx context.Context, id uint64, req withdrawalActionRequest) (*models.WithdrawalRequest, error)

func (ah *AdminHandler) changeWithdrawal(action withdrawalAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		var req withdrawalActionRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, err)
				return
			}
		}

		withdrawal, err := action(r.Context(), id, req)
		if err != nil {
			writeError(w, err)
			return
		}

		writeData(w, http.StatusOK, newWithdrawalResponse(withdrawal))
	}
}

// ProcessWithdrawal marks withdrawal {id} processing
func (ah *AdminHandler) ProcessWithdrawal() http.HandlerFunc {
	return ah.changeWithdrawal(func(ctx context.Context, id uint64, req withdrawalActionRequest) (*models.WithdrawalRequest, error) {
		return ah.svc.ProcessWithdrawal(ctx, id)
	})
}

// CompleteWithdrawal marks withdrawal {id} paid out
func (ah *AdminHandler) CompleteWithdrawal() http.HandlerFunc {
	return ah.changeWithdrawal(func(ctx context.Context, id uint64, req withdrawalActionRequest) (*models.WithdrawalRequest, error) {
		return ah.svc.CompleteWithdrawal(ctx, id, req.TransactionReference)
	})
}

// RejectWithdrawal rejects withdrawal {id}
func (ah *AdminHandler) RejectWithdrawal() http.HandlerFunc {
	return ah.changeWithdrawal(func(ctx context.Context, id uint64, req withdrawalActionRequest) (*models.WithdrawalRequest, error) {
		return ah.svc.RejectWithdrawal(ctx, id, req.Note)
	})
}
