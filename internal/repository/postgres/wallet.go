package postgres

import (
	"context"
	"errors"
	"github.com/jackc/pgx/v5"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/rookgm/reviewmart/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	insertWalletQuery = `
					INSERT INTO wallets (user_id) VALUES ($1)
					ON CONFLICT (user_id) DO NOTHING
`
	selectWalletQuery = `
					SELECT user_id, balance, updated_at FROM wallets
					WHERE user_id = $1
`
	selectWalletForUpdateQuery = selectWalletQuery + ` FOR UPDATE`

	updateWalletBalanceQuery = `
					UPDATE wallets
					SET balance = balance + $1, updated_at = NOW()
					WHERE user_id = $2
					RETURNING balance
`
	sumReservedWithdrawalsQuery = `
					SELECT COALESCE(SUM(amount), 0) FROM withdrawal_requests
					WHERE user_id = $1 AND status IN ('pending', 'processing')
`
	withdrawalColumns = `id, user_id, amount, payment_method, payment_details, status, admin_note,
					transaction_reference, requested_at, processed_at`

	insertWithdrawalQuery = `
					INSERT INTO withdrawal_requests (user_id, amount, payment_method, payment_details, status)
					VALUES ($1, $2, $3, $4, $5)
					RETURNING id, requested_at
`
	selectWithdrawalForUpdateQuery = `
					SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
					WHERE id = $1
					FOR UPDATE
`
	updateWithdrawalQuery = `
					UPDATE withdrawal_requests
					SET status = $1, admin_note = $2, transaction_reference = $3, processed_at = $4
					WHERE id = $5
`
	selectWithdrawalsByUserIDQuery = `
					SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
					WHERE user_id = $1
					ORDER BY requested_at DESC, id DESC
					LIMIT $2 OFFSET $3
`
	countWithdrawalsByUserIDQuery = `SELECT COUNT(*) FROM withdrawal_requests WHERE user_id = $1`

	insertTransactionQuery = `
					INSERT INTO wallet_transactions (user_id, type, source, amount, reference, description)
					VALUES ($1, $2, $3, $4, $5, $6)
					RETURNING id, created_at
`
	selectTransactionsByUserIDQuery = `
					SELECT id, user_id, type, source, amount, reference, description, created_at
					FROM wallet_transactions
					WHERE user_id = $1
					ORDER BY created_at DESC, id DESC
					LIMIT $2 OFFSET $3
`
	countTransactionsByUserIDQuery = `SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`
)

func scanWithdrawal(row scanner) (*models.WithdrawalRequest, error) {
	w := models.WithdrawalRequest{}
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.PaymentMethod, &w.PaymentDetails, &w.Status,
		&w.AdminNote, &w.TransactionReference, &w.RequestedAt, &w.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return &w, nil
}

// WalletRepository implements repository.WalletRepository
type WalletRepository struct {
	db *DB
}

// NewWalletRepository creates new WalletRepository instance
func NewWalletRepository(db *DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// WithinWalletTx runs fn in one transaction
func (wr *WalletRepository) WithinWalletTx(ctx context.Context, fn func(ctx context.Context, tx repository.WalletTx) error) error {
	return wr.db.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &walletTx{db: wr.db, tx: tx})
	})
}

// GetWallet returns wallet, creating a zero one when missing
func (wr *WalletRepository) GetWallet(ctx context.Context, userID uint64) (*models.Wallet, error) {
	if _, err := wr.db.Exec(ctx, insertWalletQuery, userID); err != nil {
		return nil, err
	}

	wallet := models.Wallet{}
	err := wr.db.QueryRow(ctx, selectWalletQuery, userID).Scan(&wallet.UserID, &wallet.Balance, &wallet.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &wallet, nil
}

// SumReservedWithdrawals returns total of pending and processing withdrawals
func (wr *WalletRepository) SumReservedWithdrawals(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := wr.db.QueryRow(ctx, sumReservedWithdrawalsQuery, userID).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// GetWithdrawalsByUserID returns page of user withdrawals and total count
func (wr *WalletRepository) GetWithdrawalsByUserID(ctx context.Context, userID uint64, page models.Page) ([]models.WithdrawalRequest, int, error) {
	var total int
	if err := wr.db.QueryRow(ctx, countWithdrawalsByUserIDQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := wr.db.Query(ctx, selectWithdrawalsByUserIDQuery, userID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	withdrawals := []models.WithdrawalRequest{}

	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, err
		}
		withdrawals = append(withdrawals, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return withdrawals, total, nil
}

// GetTransactionsByUserID returns page of user ledger entries and total count
func (wr *WalletRepository) GetTransactionsByUserID(ctx context.Context, userID uint64, page models.Page) ([]models.WalletTransaction, int, error) {
	var total int
	if err := wr.db.QueryRow(ctx, countTransactionsByUserIDQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := wr.db.Query(ctx, selectTransactionsByUserIDQuery, userID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	transactions := []models.WalletTransaction{}

	for rows.Next() {
		t := models.WalletTransaction{}
		err = rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Source, &t.Amount, &t.Reference, &t.Description, &t.CreatedAt)
		if err != nil {
			return nil, 0, err
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}

type walletTx struct {
	db *DB
	tx pgx.Tx
}

func (w *walletTx) GetWalletForUpdate(ctx context.Context, userID uint64) (*models.Wallet, error) {
	if _, err := w.tx.Exec(ctx, insertWalletQuery, userID); err != nil {
		return nil, err
	}

	wallet := models.Wallet{}
	err := w.tx.QueryRow(ctx, selectWalletForUpdateQuery, userID).Scan(&wallet.UserID, &wallet.Balance, &wallet.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &wallet, nil
}

func (w *walletTx) SumReservedWithdrawals(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := w.tx.QueryRow(ctx, sumReservedWithdrawalsQuery, userID).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (w *walletTx) CreateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error {
	return w.tx.QueryRow(ctx, insertWithdrawalQuery, withdrawal.UserID, withdrawal.Amount,
		withdrawal.PaymentMethod, withdrawal.PaymentDetails, withdrawal.Status).
		Scan(&withdrawal.ID, &withdrawal.RequestedAt)
}

func (w *walletTx) GetWithdrawalForUpdate(ctx context.Context, id uint64) (*models.WithdrawalRequest, error) {
	return scanWithdrawal(w.tx.QueryRow(ctx, selectWithdrawalForUpdateQuery, id))
}

func (w *walletTx) UpdateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error {
	cmd, err := w.tx.Exec(ctx, updateWithdrawalQuery, withdrawal.Status, withdrawal.AdminNote,
		withdrawal.TransactionReference, withdrawal.ProcessedAt, withdrawal.ID)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

func (w *walletTx) AddBalance(ctx context.Context, userID uint64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := w.tx.QueryRow(ctx, updateWalletBalanceQuery, delta, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, models.ErrDataNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}

func (w *walletTx) CreateTransaction(ctx context.Context, transaction *models.WalletTransaction) error {
	err := w.tx.QueryRow(ctx, insertTransactionQuery, transaction.UserID, transaction.Type, transaction.Source,
		transaction.Amount, transaction.Reference, transaction.Description).
		Scan(&transaction.ID, &transaction.CreatedAt)
	if err != nil {
		if w.db.ErrorCode(err) == pgErrUniqueViolationCode {
			return models.ErrConflictData
		}
		return err
	}
	return nil
}
