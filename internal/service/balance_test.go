package service

import (
	"context"
	"github.com/google/go-cmp/cmp"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/rookgm/reviewmart/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"testing"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newBalanceService(t *testing.T, userID uint64, balance string) (*BalanceService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := NewBalanceService(store, dec("500"))
	if balance != "" {
		_, err := svc.Credit(context.Background(), userID, dec(balance), models.TxSourceTaskCommission, "seed", "")
		require.NoError(t, err)
	}
	return svc, store
}

func TestBalanceService_RequestWithdrawal(t *testing.T) {
	svc, _ := newBalanceService(t, ownerID, "1000")
	ctx := context.Background()

	w, err := svc.RequestWithdrawal(ctx, ownerID, dec("600"), models.PaymentMethodUPI, "asha@upi")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, w.Status)

	balance, err := svc.GetBalance(ctx, ownerID)
	require.NoError(t, err)
	want := models.Balance{Balance: dec("1000"), PendingWithdrawal: dec("600"), AvailableBalance: dec("400")}
	if diff := cmp.Diff(want, balance, decimalComparer); diff != "" {
		t.Errorf("balance mismatch (-want +got):\n%s", diff)
	}

	_, err = svc.RequestWithdrawal(ctx, ownerID, dec("500"), models.PaymentMethodUPI, "asha@upi")
	assert.ErrorIs(t, err, models.ErrInsufficientAvailableBalance)
	assert.Equal(t, "Insufficient available balance", err.(*models.Error).Message)
}

func TestBalanceService_RequestWithdrawal_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		method  string
		details string
		wantErr error
		kind    models.Kind
	}{
		{name: "below_minimum", amount: "499.99", method: models.PaymentMethodUPI, details: "x@upi", wantErr: models.ErrBelowMinimum, kind: models.KindInvalidState},
		{name: "above_balance", amount: "1500", method: models.PaymentMethodUPI, details: "x@upi", wantErr: models.ErrInsufficientBalance, kind: models.KindInvalidState},
		{name: "negative", amount: "-600", method: models.PaymentMethodUPI, details: "x@upi", kind: models.KindValidation},
		{name: "fractional_paisa", amount: "600.001", method: models.PaymentMethodUPI, details: "x@upi", kind: models.KindValidation},
		{name: "unknown_method", amount: "600", method: "cash", details: "x", kind: models.KindValidation},
		{name: "empty_details", amount: "600", method: models.PaymentMethodBankTransfer, details: "  ", kind: models.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newBalanceService(t, ownerID, "1000")

			_, err := svc.RequestWithdrawal(context.Background(), ownerID, dec(tt.amount), tt.method, tt.details)
			require.Error(t, err)
			assert.Equal(t, tt.kind, models.KindOf(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			balance, err := svc.GetBalance(context.Background(), ownerID)
			require.NoError(t, err)
			assert.True(t, balance.PendingWithdrawal.IsZero())
		})
	}
}

func TestBalanceService_ConcurrentWithdrawals(t *testing.T) {
	svc, _ := newBalanceService(t, ownerID, "2000")

	const n = 10
	errs := make([]error, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, errs[i] = svc.RequestWithdrawal(context.Background(), ownerID, dec("600"), models.PaymentMethodPaytm, "9999999999")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, models.ErrInsufficientAvailableBalance)
	}
	// 3 x 600 fits into 2000, a fourth does not
	assert.Equal(t, 3, accepted)

	balance, err := svc.GetBalance(context.Background(), ownerID)
	require.NoError(t, err)
	assert.True(t, balance.PendingWithdrawal.Equal(dec("1800")))
	assert.False(t, balance.AvailableBalance.IsNegative())
}

func TestBalanceService_GetBalance_Idempotent(t *testing.T) {
	svc, _ := newBalanceService(t, ownerID, "750.25")

	first, err := svc.GetBalance(context.Background(), ownerID)
	require.NoError(t, err)
	second, err := svc.GetBalance(context.Background(), ownerID)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, decimalComparer); diff != "" {
		t.Errorf("balance changed (-first +second):\n%s", diff)
	}
}

func TestBalanceService_GetBalance_NewWallet(t *testing.T) {
	svc, _ := newBalanceService(t, ownerID, "")

	balance, err := svc.GetBalance(context.Background(), strangerID)
	require.NoError(t, err)
	assert.True(t, balance.Balance.IsZero())
	assert.True(t, balance.AvailableBalance.IsZero())
}

func TestBalanceService_Credit(t *testing.T) {
	svc, _ := newBalanceService(t, ownerID, "")
	ctx := context.Background()

	tx, err := svc.Credit(ctx, ownerID, dec("150"), models.TxSourceTaskCommission, "task:7", "Commission for task 7")
	require.NoError(t, err)
	assert.Equal(t, models.TxTypeCredit, tx.Type)

	_, err = svc.Credit(ctx, ownerID, dec("150"), models.TxSourceTaskCommission, "task:7", "Commission for task 7")
	assert.ErrorIs(t, err, models.ErrDuplicateCredit)

	_, err = svc.Credit(ctx, ownerID, dec("150"), models.TxSourceWithdrawal, "task:8", "")
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	balance, err := svc.GetBalance(ctx, ownerID)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(dec("150")))
}

func TestBalanceService_WithdrawalLifecycle(t *testing.T) {
	svc, _ := newBalanceService(t, ownerID, "1000")
	ctx := context.Background()

	w, err := svc.RequestWithdrawal(ctx, ownerID, dec("600"), models.PaymentMethodUPI, "asha@upi")
	require.NoError(t, err)

	w, err = svc.ProcessWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusProcessing, w.Status)

	balance, err := svc.GetBalance(ctx, ownerID)
	require.NoError(t, err)
	assert.True(t, balance.PendingWithdrawal.Equal(dec("600")))

	_, err = svc.ProcessWithdrawal(ctx, w.ID)
	assert.ErrorIs(t, err, models.ErrWithdrawalTransition)

	w, err = svc.CompleteWithdrawal(ctx, w.ID, "UTR123456")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusCompleted, w.Status)
	require.NotNil(t, w.TransactionReference)
	assert.Equal(t, "UTR123456", *w.TransactionReference)
	assert.NotNil(t, w.ProcessedAt)

	balance, err = svc.GetBalance(ctx, ownerID)
	require.NoError(t, err)
	want := models.Balance{Balance: dec("400"), PendingWithdrawal: decimal.Zero, AvailableBalance: dec("400")}
	if diff := cmp.Diff(want, balance, decimalComparer); diff != "" {
		t.Errorf("balance mismatch (-want +got):\n%s", diff)
	}

	transactions, total, err := svc.GetTransactions(ctx, ownerID, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, models.TxTypeDebit, transactions[0].Type)
	assert.Equal(t, models.TxSourceWithdrawal, transactions[0].Source)

	_, err = svc.CompleteWithdrawal(ctx, w.ID, "UTR123456")
	assert.ErrorIs(t, err, models.ErrWithdrawalTransition)
}

func TestBalanceService_RejectWithdrawal(t *testing.T) {
	svc, _ := newBalanceService(t, ownerID, "1000")
	ctx := context.Background()

	w, err := svc.RequestWithdrawal(ctx, ownerID, dec("900"), models.PaymentMethodBankTransfer, "HDFC 0001")
	require.NoError(t, err)

	w, err = svc.RejectWithdrawal(ctx, w.ID, "account closed")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, w.Status)
	assert.Equal(t, "account closed", w.AdminNote)

	balance, err := svc.GetBalance(ctx, ownerID)
	require.NoError(t, err)
	assert.True(t, balance.AvailableBalance.Equal(dec("1000")))

	_, err = svc.RejectWithdrawal(ctx, w.ID, "")
	assert.ErrorIs(t, err, models.ErrWithdrawalTransition)

	_, err = svc.RejectWithdrawal(ctx, 404, "")
	assert.ErrorIs(t, err, models.ErrWithdrawalNotFound)
}

func TestBalanceService_GetWithdrawalHistory(t *testing.T) {
	svc, _ := newBalanceService(t, ownerID, "5000")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RequestWithdrawal(ctx, ownerID, dec("500"), models.PaymentMethodUPI, "asha@upi")
		require.NoError(t, err)
	}

	page, total, err := svc.GetWithdrawalHistory(ctx, ownerID, models.Page{Number: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 1)

	other, total, err := svc.GetWithdrawalHistory(ctx, strangerID, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, other)
}
