// Package memory keeps marketplace data in process memory. It is used when no
// database is configured and by tests.
//
// Transactions hold the store lock until they finish, so all transactions are
// serialized. Writes made inside a transaction are staged and become visible
// only when the transaction function returns nil.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rookgm/reviewmart/internal/models"
	"github.com/rookgm/reviewmart/internal/repository"
	"github.com/shopspring/decimal"
)

// Store implements task, wallet, settings and refund repositories
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	seq          uint64
	tasks        map[uint64]models.Task
	proofs       map[uint64][]models.TaskProof
	wallets      map[uint64]models.Wallet
	withdrawals  map[uint64]models.WithdrawalRequest
	transactions []models.WalletTransaction
	settings     map[string]string
	refunds      map[string]models.Refund
}

// Option configures Store
type Option func(*Store)

// WithClock sets time source of the store
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates empty store
func New(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		tasks:       make(map[uint64]models.Task),
		proofs:      make(map[uint64][]models.TaskProof),
		wallets:     make(map[uint64]models.Wallet),
		withdrawals: make(map[uint64]models.WithdrawalRequest),
		settings:    make(map[string]string),
		refunds:     make(map[string]models.Refund),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ repository.TaskRepository     = (*Store)(nil)
	_ repository.WalletRepository   = (*Store)(nil)
	_ repository.SettingsRepository = (*Store)(nil)
	_ repository.RefundRepository   = (*Store)(nil)
)

// nextID must be called with mu held
func (s *Store) nextID() uint64 {
	s.seq++
	return s.seq
}

func paginate[T any](items []T, page models.Page) []T {
	from := page.Offset()
	if from >= len(items) {
		return []T{}
	}
	to := min(from+page.PerPage, len(items))
	out := make([]T, to-from)
	copy(out, items[from:to])
	return out
}

// WithinTaskTx runs fn in one serialized transaction
func (s *Store) WithinTaskTx(ctx context.Context, fn func(ctx context.Context, tx repository.TaskTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &taskTx{s: s, tasks: make(map[uint64]models.Task)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, task := range tx.tasks {
		s.tasks[id] = task
	}
	for _, proof := range tx.proofs {
		s.proofs[proof.TaskID] = append(s.proofs[proof.TaskID], proof)
	}
	return nil
}

// CreateTask inserts new task
func (s *Store) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := *task
	created.ID = s.nextID()
	created.CurrentStep = models.StepAwaitingOrder
	created.Status = models.TaskStatusPending
	created.CreatedAt = s.now()
	s.tasks[created.ID] = created

	out := created
	return &out, nil
}

// GetTask returns task by id
func (s *Store) GetTask(ctx context.Context, taskID uint64) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	return &task, nil
}

// GetProofs returns task proofs ordered by step
func (s *Store) GetProofs(ctx context.Context, taskID uint64) ([]models.TaskProof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proofs := make([]models.TaskProof, len(s.proofs[taskID]))
	copy(proofs, s.proofs[taskID])
	sort.Slice(proofs, func(i, j int) bool { return proofs[i].StepNumber < proofs[j].StepNumber })
	return proofs, nil
}

// GetTasksByUserID returns page of user tasks, newest first
func (s *Store) GetTasksByUserID(ctx context.Context, userID uint64, page models.Page) ([]models.Task, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []models.Task
	for _, task := range s.tasks {
		if task.UserID == userID {
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID > tasks[j].ID })
	return paginate(tasks, page), len(tasks), nil
}

type taskTx struct {
	s      *Store
	tasks  map[uint64]models.Task
	proofs []models.TaskProof
}

func (t *taskTx) task(id uint64) (models.Task, bool) {
	if task, ok := t.tasks[id]; ok {
		return task, true
	}
	task, ok := t.s.tasks[id]
	return task, ok
}

func (t *taskTx) GetTaskForUpdate(ctx context.Context, taskID uint64) (*models.Task, error) {
	task, ok := t.task(taskID)
	if !ok {
		return nil, models.ErrDataNotFound
	}
	return &task, nil
}

func (t *taskTx) CreateProof(ctx context.Context, proof *models.TaskProof) error {
	exists := func(proofs []models.TaskProof) bool {
		for _, p := range proofs {
			if p.TaskID == proof.TaskID && p.StepNumber == proof.StepNumber {
				return true
			}
		}
		return false
	}
	if exists(t.s.proofs[proof.TaskID]) || exists(t.proofs) {
		return models.ErrConflictData
	}

	proof.ID = t.s.nextID()
	proof.CreatedAt = t.s.now()
	t.proofs = append(t.proofs, *proof)
	return nil
}

func (t *taskTx) UpdateTaskProgress(ctx context.Context, task *models.Task, fromStep int) error {
	current, ok := t.task(task.ID)
	if !ok || current.CurrentStep != fromStep {
		return models.ErrConflictData
	}

	current.CurrentStep = task.CurrentStep
	current.RefundRequested = task.RefundRequested
	current.OrderPlacedAt = task.OrderPlacedAt
	current.DeliveryReceivedAt = task.DeliveryReceivedAt
	current.ReviewSubmittedAt = task.ReviewSubmittedAt
	current.RefundRequestedAt = task.RefundRequestedAt
	t.tasks[task.ID] = current
	return nil
}

// WithinWalletTx runs fn in one serialized transaction
func (s *Store) WithinWalletTx(ctx context.Context, fn func(ctx context.Context, tx repository.WalletTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &walletTx{
		s:           s,
		wallets:     make(map[uint64]models.Wallet),
		withdrawals: make(map[uint64]models.WithdrawalRequest),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, wallet := range tx.wallets {
		s.wallets[id] = wallet
	}
	for id, withdrawal := range tx.withdrawals {
		s.withdrawals[id] = withdrawal
	}
	s.transactions = append(s.transactions, tx.transactions...)
	return nil
}

// wallet must be called with mu held
func (s *Store) wallet(userID uint64) models.Wallet {
	wallet, ok := s.wallets[userID]
	if !ok {
		wallet = models.Wallet{UserID: userID, Balance: decimal.Zero, UpdatedAt: s.now()}
		s.wallets[userID] = wallet
	}
	return wallet
}

// GetWallet returns wallet, creating a zero one when missing
func (s *Store) GetWallet(ctx context.Context, userID uint64) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet := s.wallet(userID)
	return &wallet, nil
}

func sumReserved(withdrawals map[uint64]models.WithdrawalRequest, userID uint64) decimal.Decimal {
	sum := decimal.Zero
	for _, w := range withdrawals {
		if w.UserID == userID && w.Reserved() {
			sum = sum.Add(w.Amount)
		}
	}
	return sum
}

// SumReservedWithdrawals returns total of pending and processing withdrawals
func (s *Store) SumReservedWithdrawals(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sumReserved(s.withdrawals, userID), nil
}

// GetWithdrawalsByUserID returns page of user withdrawals, newest first
func (s *Store) GetWithdrawalsByUserID(ctx context.Context, userID uint64, page models.Page) ([]models.WithdrawalRequest, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var withdrawals []models.WithdrawalRequest
	for _, w := range s.withdrawals {
		if w.UserID == userID {
			withdrawals = append(withdrawals, w)
		}
	}
	sort.Slice(withdrawals, func(i, j int) bool { return withdrawals[i].ID > withdrawals[j].ID })
	return paginate(withdrawals, page), len(withdrawals), nil
}

// GetTransactionsByUserID returns page of user ledger entries, newest first
func (s *Store) GetTransactionsByUserID(ctx context.Context, userID uint64, page models.Page) ([]models.WalletTransaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var transactions []models.WalletTransaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID == userID {
			transactions = append(transactions, s.transactions[i])
		}
	}
	return paginate(transactions, page), len(transactions), nil
}

type walletTx struct {
	s            *Store
	wallets      map[uint64]models.Wallet
	withdrawals  map[uint64]models.WithdrawalRequest
	transactions []models.WalletTransaction
}

func (w *walletTx) wallet(userID uint64) (models.Wallet, bool) {
	if wallet, ok := w.wallets[userID]; ok {
		return wallet, true
	}
	wallet, ok := w.s.wallets[userID]
	return wallet, ok
}

func (w *walletTx) GetWalletForUpdate(ctx context.Context, userID uint64) (*models.Wallet, error) {
	wallet, ok := w.wallet(userID)
	if !ok {
		wallet = models.Wallet{UserID: userID, Balance: decimal.Zero, UpdatedAt: w.s.now()}
		w.wallets[userID] = wallet
	}
	return &wallet, nil
}

func (w *walletTx) SumReservedWithdrawals(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	merged := make(map[uint64]models.WithdrawalRequest, len(w.s.withdrawals)+len(w.withdrawals))
	for id, wr := range w.s.withdrawals {
		merged[id] = wr
	}
	for id, wr := range w.withdrawals {
		merged[id] = wr
	}
	return sumReserved(merged, userID), nil
}

func (w *walletTx) CreateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error {
	withdrawal.ID = w.s.nextID()
	withdrawal.RequestedAt = w.s.now()
	w.withdrawals[withdrawal.ID] = *withdrawal
	return nil
}

func (w *walletTx) GetWithdrawalForUpdate(ctx context.Context, id uint64) (*models.WithdrawalRequest, error) {
	if withdrawal, ok := w.withdrawals[id]; ok {
		return &withdrawal, nil
	}
	withdrawal, ok := w.s.withdrawals[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	return &withdrawal, nil
}

func (w *walletTx) UpdateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error {
	current, err := w.GetWithdrawalForUpdate(ctx, withdrawal.ID)
	if err != nil {
		return err
	}

	current.Status = withdrawal.Status
	current.AdminNote = withdrawal.AdminNote
	current.TransactionReference = withdrawal.TransactionReference
	current.ProcessedAt = withdrawal.ProcessedAt
	w.withdrawals[current.ID] = *current
	return nil
}

func (w *walletTx) AddBalance(ctx context.Context, userID uint64, delta decimal.Decimal) (decimal.Decimal, error) {
	wallet, ok := w.wallet(userID)
	if !ok {
		return decimal.Zero, models.ErrDataNotFound
	}

	wallet.Balance = wallet.Balance.Add(delta)
	wallet.UpdatedAt = w.s.now()
	w.wallets[userID] = wallet
	return wallet.Balance, nil
}

func (w *walletTx) CreateTransaction(ctx context.Context, transaction *models.WalletTransaction) error {
	taken := func(transactions []models.WalletTransaction) bool {
		for _, t := range transactions {
			if t.Reference == transaction.Reference {
				return true
			}
		}
		return false
	}
	if taken(w.s.transactions) || taken(w.transactions) {
		return models.ErrConflictData
	}

	transaction.ID = w.s.nextID()
	transaction.CreatedAt = w.s.now()
	w.transactions = append(w.transactions, *transaction)
	return nil
}

// GetSettingsByPrefix returns all settings whose key starts with prefix
func (s *Store) GetSettingsByPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := make(map[string]string)
	for key, value := range s.settings {
		if strings.HasPrefix(key, prefix) {
			settings[key] = value
		}
	}
	return settings, nil
}

// SetSetting inserts or replaces setting
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[key] = value
	return nil
}

// CreateRefund inserts refund, ErrConflictData if its key is taken
func (s *Store) CreateRefund(ctx context.Context, refund *models.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refunds[refund.IdempotencyKey]; ok {
		return models.ErrConflictData
	}

	refund.ID = s.nextID()
	refund.CreatedAt = s.now()
	refund.UpdatedAt = refund.CreatedAt
	s.refunds[refund.IdempotencyKey] = *refund
	return nil
}

// GetRefundByKey returns refund by idempotency key
func (s *Store) GetRefundByKey(ctx context.Context, key string) (*models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refund, ok := s.refunds[key]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	return &refund, nil
}

// UpdateRefund stores status fields of refund
func (s *Store) UpdateRefund(ctx context.Context, refund *models.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.refunds[refund.IdempotencyKey]
	if !ok || current.ID != refund.ID {
		return models.ErrDataNotFound
	}

	current.Status = refund.Status
	current.GatewayRefundID = refund.GatewayRefundID
	current.ErrorMessage = refund.ErrorMessage
	current.UpdatedAt = s.now()
	refund.UpdatedAt = current.UpdatedAt
	s.refunds[refund.IdempotencyKey] = current
	return nil
}

// TouchRefund marks refund as checked without changing its status
func (s *Store) TouchRefund(ctx context.Context, refund *models.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.refunds[refund.IdempotencyKey]
	if !ok || current.ID != refund.ID {
		return models.ErrDataNotFound
	}

	current.UpdatedAt = s.now()
	refund.UpdatedAt = current.UpdatedAt
	s.refunds[refund.IdempotencyKey] = current
	return nil
}

// GetUnsettledRefunds returns refunds in initiated or pending status,
// least recently checked first
func (s *Store) GetUnsettledRefunds(ctx context.Context, limit int) ([]models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var refunds []models.Refund
	for _, r := range s.refunds {
		if !r.Settled() {
			refunds = append(refunds, r)
		}
	}
	sort.Slice(refunds, func(i, j int) bool {
		if !refunds[i].UpdatedAt.Equal(refunds[j].UpdatedAt) {
			return refunds[i].UpdatedAt.Before(refunds[j].UpdatedAt)
		}
		return refunds[i].ID < refunds[j].ID
	})
	if len(refunds) > limit {
		refunds = refunds[:limit]
	}
	return refunds, nil
}
