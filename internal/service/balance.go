package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/rookgm/reviewmart/internal/logger"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/rookgm/reviewmart/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strings"
	"time"
)

const (
	maxPaymentDetailsLen = 500
	maxReferenceLen      = 100
)

var paymentMethods = map[string]bool{
	models.PaymentMethodUPI:          true,
	models.PaymentMethodBankTransfer: true,
	models.PaymentMethodPaytm:        true,
}

var creditSources = map[string]bool{
	models.TxSourceTaskCommission: true,
	models.TxSourceReferralBonus:  true,
	models.TxSourceAdjustment:     true,
}

// BalanceService implements wallet and withdrawal operations
type BalanceService struct {
	repo          repository.WalletRepository
	minWithdrawal decimal.Decimal
	now           func() time.Time
}

// NewBalanceService creates new BalanceService instance
func NewBalanceService(repo repository.WalletRepository, minWithdrawal decimal.Decimal) *BalanceService {
	return &BalanceService{
		repo:          repo,
		minWithdrawal: minWithdrawal,
		now:           time.Now,
	}
}

// validAmount reports whether amount is positive with at most two decimals
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(2))
}

// GetBalance returns current user balance
func (bs *BalanceService) GetBalance(ctx context.Context, userID uint64) (models.Balance, error) {
	var balance models.Balance

	err := bs.repo.WithinWalletTx(ctx, func(ctx context.Context, tx repository.WalletTx) error {
		wallet, err := tx.GetWalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		reserved, err := tx.SumReservedWithdrawals(ctx, userID)
		if err != nil {
			return err
		}

		balance = models.Balance{
			Balance:           wallet.Balance,
			PendingWithdrawal: reserved,
			AvailableBalance:  wallet.Balance.Sub(reserved),
		}
		return nil
	})
	if err != nil {
		return models.Balance{}, classify(err, "get balance", zap.Uint64("user_id", userID))
	}

	return balance, nil
}

// RequestWithdrawal reserves amount of available balance for payout
func (bs *BalanceService) RequestWithdrawal(ctx context.Context, userID uint64, amount decimal.Decimal, method, details string) (*models.WithdrawalRequest, error) {
	if !validAmount(amount) {
		return nil, models.ValidationError("Invalid amount")
	}
	if amount.LessThan(bs.minWithdrawal) {
		return nil, models.ErrBelowMinimum
	}
	if !paymentMethods[method] {
		return nil, models.ValidationError("Invalid payment method")
	}
	details = strings.TrimSpace(details)
	if details == "" {
		return nil, models.ValidationError("Payment details are required")
	}
	if len(details) > maxPaymentDetailsLen {
		return nil, models.ValidationError("Payment details are too long")
	}

	withdrawal := &models.WithdrawalRequest{
		UserID:         userID,
		Amount:         amount,
		PaymentMethod:  method,
		PaymentDetails: details,
		Status:         models.WithdrawalStatusPending,
	}

	err := bs.repo.WithinWalletTx(ctx, func(ctx context.Context, tx repository.WalletTx) error {
		wallet, err := tx.GetWalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(wallet.Balance) {
			return models.ErrInsufficientBalance
		}

		reserved, err := tx.SumReservedWithdrawals(ctx, userID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(wallet.Balance.Sub(reserved)) {
			return models.ErrInsufficientAvailableBalance
		}

		return tx.CreateWithdrawal(ctx, withdrawal)
	})
	if err != nil {
		return nil, classify(err, "request withdrawal", zap.Uint64("user_id", userID), zap.String("amount", amount.String()))
	}

	logger.Log.Info("withdrawal requested",
		zap.Uint64("user_id", userID), zap.Uint64("withdrawal_id", withdrawal.ID), zap.String("amount", amount.String()))

	return withdrawal, nil
}

// GetWithdrawalHistory returns page of user withdrawals and total count
func (bs *BalanceService) GetWithdrawalHistory(ctx context.Context, userID uint64, page models.Page) ([]models.WithdrawalRequest, int, error) {
	withdrawals, total, err := bs.repo.GetWithdrawalsByUserID(ctx, userID, page.Normalize())
	if err != nil {
		return nil, 0, classify(err, "get withdrawals", zap.Uint64("user_id", userID))
	}
	return withdrawals, total, nil
}

// GetTransactions returns page of user ledger entries and total count
func (bs *BalanceService) GetTransactions(ctx context.Context, userID uint64, page models.Page) ([]models.WalletTransaction, int, error) {
	transactions, total, err := bs.repo.GetTransactionsByUserID(ctx, userID, page.Normalize())
	if err != nil {
		return nil, 0, classify(err, "get transactions", zap.Uint64("user_id", userID))
	}
	return transactions, total, nil
}

// Credit adds amount to user balance. A reference is credited only once.
func (bs *BalanceService) Credit(ctx context.Context, userID uint64, amount decimal.Decimal, source, reference, description string) (*models.WalletTransaction, error) {
	if userID == 0 {
		return nil, models.ValidationError("Invalid user id")
	}
	if !validAmount(amount) {
		return nil, models.ValidationError("Invalid amount")
	}
	if !creditSources[source] {
		return nil, models.ValidationError("Invalid credit source")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" || len(reference) > maxReferenceLen {
		return nil, models.ValidationError("Reference is required and must be at most %d characters", maxReferenceLen)
	}

	transaction := &models.WalletTransaction{
		UserID:      userID,
		Type:        models.TxTypeCredit,
		Source:      source,
		Amount:      amount,
		Reference:   reference,
		Description: description,
	}

	err := bs.repo.WithinWalletTx(ctx, func(ctx context.Context, tx repository.WalletTx) error {
		if _, err := tx.GetWalletForUpdate(ctx, userID); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, transaction); err != nil {
			if errors.Is(err, models.ErrConflictData) {
				return models.ErrDuplicateCredit
			}
			return err
		}
		_, err := tx.AddBalance(ctx, userID, amount)
		return err
	})
	if err != nil {
		return nil, classify(err, "credit wallet", zap.Uint64("user_id", userID), zap.String("reference", reference))
	}

	return transaction, nil
}

// changeWithdrawal locks withdrawal request and applies fn to it when its status is one of from
func (bs *BalanceService) changeWithdrawal(ctx context.Context, id uint64, from []string,
	fn func(ctx context.Context, tx repository.WalletTx, w *models.WithdrawalRequest) error) (*models.WithdrawalRequest, error) {
	var changed *models.WithdrawalRequest

	err := bs.repo.WithinWalletTx(ctx, func(ctx context.Context, tx repository.WalletTx) error {
		w, err := tx.GetWithdrawalForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				return models.ErrWithdrawalNotFound
			}
			return err
		}

		allowed := false
		for _, status := range from {
			if w.Status == status {
				allowed = true
				break
			}
		}
		if !allowed {
			return models.ErrWithdrawalTransition
		}

		if err := fn(ctx, tx, w); err != nil {
			return err
		}
		if err := tx.UpdateWithdrawal(ctx, w); err != nil {
			return err
		}

		changed = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	return changed, nil
}

// ProcessWithdrawal moves pending withdrawal to processing
func (bs *BalanceService) ProcessWithdrawal(ctx context.Context, id uint64) (*models.WithdrawalRequest, error) {
	w, err := bs.changeWithdrawal(ctx, id, []string{models.WithdrawalStatusPending},
		func(ctx context.Context, tx repository.WalletTx, w *models.WithdrawalRequest) error {
			w.Status = models.WithdrawalStatusProcessing
			return nil
		})
	if err != nil {
		return nil, classify(err, "process withdrawal", zap.Uint64("withdrawal_id", id))
	}
	return w, nil
}

// CompleteWithdrawal pays out withdrawal: balance is debited and the debit recorded
func (bs *BalanceService) CompleteWithdrawal(ctx context.Context, id uint64, transactionRef string) (*models.WithdrawalRequest, error) {
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return nil, models.ValidationError("Transaction reference is required")
	}

	from := []string{models.WithdrawalStatusPending, models.WithdrawalStatusProcessing}

	w, err := bs.changeWithdrawal(ctx, id, from,
		func(ctx context.Context, tx repository.WalletTx, w *models.WithdrawalRequest) error {
			wallet, err := tx.GetWalletForUpdate(ctx, w.UserID)
			if err != nil {
				return err
			}
			if w.Amount.GreaterThan(wallet.Balance) {
				return models.ErrInsufficientBalance
			}

			if _, err := tx.AddBalance(ctx, w.UserID, w.Amount.Neg()); err != nil {
				return err
			}
			err = tx.CreateTransaction(ctx, &models.WalletTransaction{
				UserID:      w.UserID,
				Type:        models.TxTypeDebit,
				Source:      models.TxSourceWithdrawal,
				Amount:      w.Amount,
				Reference:   fmt.Sprintf("withdrawal:%d", w.ID),
				Description: "Withdrawal via " + w.PaymentMethod,
			})
			if err != nil {
				return err
			}

			now := bs.now()
			w.Status = models.WithdrawalStatusCompleted
			w.TransactionReference = &transactionRef
			w.ProcessedAt = &now
			return nil
		})
	if err != nil {
		return nil, classify(err, "complete withdrawal", zap.Uint64("withdrawal_id", id))
	}

	logger.Log.Info("withdrawal completed",
		zap.Uint64("withdrawal_id", id), zap.Uint64("user_id", w.UserID), zap.String("amount", w.Amount.String()))

	return w, nil
}

// RejectWithdrawal releases reserved amount of withdrawal
func (bs *BalanceService) RejectWithdrawal(ctx context.Context, id uint64, note string) (*models.WithdrawalRequest, error) {
	from := []string{models.WithdrawalStatusPending, models.WithdrawalStatusProcessing}

	w, err := bs.changeWithdrawal(ctx, id, from,
		func(ctx context.Context, tx repository.WalletTx, w *models.WithdrawalRequest) error {
			now := bs.now()
			w.Status = models.WithdrawalStatusRejected
			w.AdminNote = strings.TrimSpace(note)
			w.ProcessedAt = &now
			return nil
		})
	if err != nil {
		return nil, classify(err, "reject withdrawal", zap.Uint64("withdrawal_id", id))
	}
	return w, nil
}
