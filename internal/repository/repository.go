package repository

import (
	"context"

	"github.com/rookgm/reviewmart/internal/models"
	"github.com/shopspring/decimal"
)

// TaskTx is task storage bound to one transaction
type TaskTx interface {
	// GetTaskForUpdate returns task and holds its row lock until the transaction ends
	GetTaskForUpdate(ctx context.Context, taskID uint64) (*models.Task, error)
	// CreateProof inserts task proof, ErrConflictData if the step already has one
	CreateProof(ctx context.Context, proof *models.TaskProof) error
	// UpdateTaskProgress stores step fields of task if its step is still fromStep
	UpdateTaskProgress(ctx context.Context, task *models.Task, fromStep int) error
}

// TaskRepository is interface for interacting with task-related data
type TaskRepository interface {
	// WithinTaskTx runs fn in one transaction, committed only when fn returns nil
	WithinTaskTx(ctx context.Context, fn func(ctx context.Context, tx TaskTx) error) error
	// CreateTask inserts new task
	CreateTask(ctx context.Context, task *models.Task) (*models.Task, error)
	// GetTask returns task by id
	GetTask(ctx context.Context, taskID uint64) (*models.Task, error)
	// GetProofs returns task proofs ordered by step
	GetProofs(ctx context.Context, taskID uint64) ([]models.TaskProof, error)
	// GetTasksByUserID returns page of user tasks and total count
	GetTasksByUserID(ctx context.Context, userID uint64, page models.Page) ([]models.Task, int, error)
}

// WalletTx is wallet storage bound to one transaction
type WalletTx interface {
	// GetWalletForUpdate returns wallet, creating it when missing, and locks it
	GetWalletForUpdate(ctx context.Context, userID uint64) (*models.Wallet, error)
	// SumReservedWithdrawals returns total of pending and processing withdrawals
	SumReservedWithdrawals(ctx context.Context, userID uint64) (decimal.Decimal, error)
	// CreateWithdrawal inserts new withdrawal request
	CreateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error
	// GetWithdrawalForUpdate returns withdrawal request and locks it
	GetWithdrawalForUpdate(ctx context.Context, id uint64) (*models.WithdrawalRequest, error)
	// UpdateWithdrawal stores status fields of withdrawal request
	UpdateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error
	// AddBalance adds delta to wallet balance and returns new balance
	AddBalance(ctx context.Context, userID uint64, delta decimal.Decimal) (decimal.Decimal, error)
	// CreateTransaction inserts ledger entry, ErrConflictData on duplicate reference
	CreateTransaction(ctx context.Context, transaction *models.WalletTransaction) error
}

// WalletRepository is interface for interacting with wallet-related data
type WalletRepository interface {
	// WithinWalletTx runs fn in one transaction, committed only when fn returns nil
	WithinWalletTx(ctx context.Context, fn func(ctx context.Context, tx WalletTx) error) error
	// GetWallet returns wallet, creating a zero one when missing
	GetWallet(ctx context.Context, userID uint64) (*models.Wallet, error)
	// SumReservedWithdrawals returns total of pending and processing withdrawals
	SumReservedWithdrawals(ctx context.Context, userID uint64) (decimal.Decimal, error)
	// GetWithdrawalsByUserID returns page of user withdrawals and total count
	GetWithdrawalsByUserID(ctx context.Context, userID uint64, page models.Page) ([]models.WithdrawalRequest, int, error)
	// GetTransactionsByUserID returns page of user ledger entries and total count
	GetTransactionsByUserID(ctx context.Context, userID uint64, page models.Page) ([]models.WalletTransaction, int, error)
}

// SettingsRepository reads opaque key/value settings
type SettingsRepository interface {
	// GetSettingsByPrefix returns all settings whose key starts with prefix
	GetSettingsByPrefix(ctx context.Context, prefix string) (map[string]string, error)
	// SetSetting inserts or replaces setting
	SetSetting(ctx context.Context, key, value string) error
}

// RefundRepository stores refund attempts
type RefundRepository interface {
	// CreateRefund inserts refund, ErrConflictData if its key is taken
	CreateRefund(ctx context.Context, refund *models.Refund) error
	// GetRefundByKey returns refund by idempotency key
	GetRefundByKey(ctx context.Context, key string) (*models.Refund, error)
	// UpdateRefund stores status fields of refund
	UpdateRefund(ctx context.Context, refund *models.Refund) error
	// TouchRefund marks refund as checked, only updated_at changes
	TouchRefund(ctx context.Context, refund *models.Refund) error
	// GetUnsettledRefunds returns refunds in initiated or pending status,
	// least recently updated first
	GetUnsettledRefunds(ctx context.Context, limit int) ([]models.Refund, error)
}
