package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyalty-points/internal/domain"
	"loyalty-points/internal/errors"
	"loyalty-points/internal/notification"
	"loyalty-points/internal/repository"
	"loyalty-points/internal/validation"
)

type notifyCall struct {
	channel      notification.Channel
	accountID    int64
	pointsAmount decimal.Decimal
	balance      decimal.Decimal
}

type captureNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	fail  bool
}

func (n *captureNotifier) Notify(_ context.Context, channel notification.Channel, account *domain.Account, pointsAmount, balance decimal.Decimal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{channel, account.ID, pointsAmount, balance})
	if n.fail {
		return fmt.Errorf("smtp unreachable")
	}
	return nil
}

func (n *captureNotifier) snapshot() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.calls...)
}

func newTestService(t *testing.T) (*LoyaltyService, *repository.MemoryStore, *captureNotifier) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	notifier := &captureNotifier{}
	dispatcher := notification.NewDispatcher(notifier, logger, time.Second)
	svc := NewLoyaltyService(store, NewStaticRuleResolver(DefaultRules()), dispatcher, logger)
	return svc, store, notifier
}

func seedAccount(t *testing.T, store *repository.MemoryStore, account domain.Account) *domain.Account {
	t.Helper()
	require.NoError(t, store.Account().CreateAccount(&account))
	return &account
}

func seedTransaction(t *testing.T, store *repository.MemoryStore, accountID int64, amount string) *domain.LoyaltyPointsTransaction {
	t.Helper()
	tx := &domain.LoyaltyPointsTransaction{
		AccountID:    accountID,
		PointsAmount: decimal.RequireFromString(amount),
		Description:  "seed entry",
	}
	require.NoError(t, store.Transaction().CreateTransaction(tx))
	return tx
}

func depositInput() *validation.DepositInput {
	return &validation.DepositInput{
		AccountType:       domain.IdentifierEmail,
		AccountID:         7,
		LoyaltyPointsRule: "promo1",
		Description:       "Welcome bonus",
	}
}

func withdrawInput(amount string) *validation.WithdrawInput {
	return &validation.WithdrawInput{
		AccountType:  domain.IdentifierPhone,
		AccountID:    7,
		PointsAmount: decimal.RequireFromString(amount),
		Description:  "Redeem",
	}
}

func TestDepositAwardsPointsAndNotifies(t *testing.T) {
	svc, store, notifier := newTestService(t)
	account := seedAccount(t, store, domain.Account{Email: "7", Active: true, EmailNotification: true})

	tx, err := svc.Deposit(depositInput())
	require.NoError(t, err)

	assert.True(t, tx.PointsAmount.IsPositive())
	assert.True(t, tx.PointsAmount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, account.ID, tx.AccountID)
	assert.Nil(t, tx.Canceled)

	balance, err := store.Account().GetBalance(account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(tx.PointsAmount))

	svc.WaitForNotifications()
	calls := notifier.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, notification.ChannelEmail, calls[0].channel)
	assert.True(t, calls[0].pointsAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, calls[0].balance.Equal(decimal.NewFromInt(100)))
}

func TestDepositRateRuleUsesPaymentAmount(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedAccount(t, store, domain.Account{Email: "7", Active: true})

	payment := decimal.RequireFromString("250.00")
	in := depositInput()
	in.LoyaltyPointsRule = "standard"
	in.PaymentAmount = &payment

	tx, err := svc.Deposit(in)
	require.NoError(t, err)
	assert.True(t, tx.PointsAmount.Equal(decimal.RequireFromString("25.00")))
}

func TestDepositAccountNotFound(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, err := svc.Deposit(depositInput())
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)
	assert.Empty(t, store.TransactionsForAccount(1))
}

func TestDepositInactiveAccount(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Email: "7", Active: false})

	_, err := svc.Deposit(depositInput())
	assert.ErrorIs(t, err, errors.ErrAccountInactive)
	assert.Empty(t, store.TransactionsForAccount(account.ID))
}

func TestDepositUnknownRule(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Email: "7", Active: true})

	in := depositInput()
	in.LoyaltyPointsRule = "nonexistent"

	_, err := svc.Deposit(in)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.UnknownRule, appErr.Code)
	assert.Empty(t, store.TransactionsForAccount(account.ID))
}

func TestDepositSurvivesNotificationFailure(t *testing.T) {
	svc, store, notifier := newTestService(t)
	notifier.fail = true
	account := seedAccount(t, store, domain.Account{Email: "7", Active: true, EmailNotification: true})

	tx, err := svc.Deposit(depositInput())
	require.NoError(t, err)
	svc.WaitForNotifications()

	// The delivery failed but the recorded transaction stands.
	stored, err := store.Transaction().GetTransactionByID(tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.PointsAmount.Equal(tx.PointsAmount))

	balance, err := store.Account().GetBalance(account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(tx.PointsAmount))
}

func TestDepositNotificationGating(t *testing.T) {
	svc, store, notifier := newTestService(t)
	// Opted in for phone but the phone field is empty: no notification at all.
	seedAccount(t, store, domain.Account{Email: "7", Active: true, PhoneNotification: true})

	_, err := svc.Deposit(depositInput())
	require.NoError(t, err)
	svc.WaitForNotifications()
	assert.Empty(t, notifier.snapshot())
}

func TestWithdrawRecordsNegativeAmount(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Phone: "7", Active: true})
	seedTransaction(t, store, account.ID, "50")

	tx, err := svc.Withdraw(withdrawInput("25.00"))
	require.NoError(t, err)

	assert.True(t, tx.PointsAmount.Equal(decimal.RequireFromString("-25.00")))

	balance, err := store.Account().GetBalance(account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(25)))
}

func TestWithdrawInvalidAmountAborts(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Phone: "7", Active: true})
	seedTransaction(t, store, account.ID, "50")

	for _, amount := range []string{"0", "-10"} {
		_, err := svc.Withdraw(withdrawInput(amount))
		assert.ErrorIs(t, err, errors.ErrInvalidAmount, "amount=%s", amount)
	}

	// Only the seed entry exists; nothing was written for the rejected calls.
	assert.Len(t, store.TransactionsForAccount(account.ID), 1)
}

func TestWithdrawInsufficientFundsAborts(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Phone: "7", Active: true})
	seedTransaction(t, store, account.ID, "50")

	_, err := svc.Withdraw(withdrawInput("60"))
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)

	assert.Len(t, store.TransactionsForAccount(account.ID), 1)
	balance, err := store.Account().GetBalance(account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(50)))
}

func TestWithdrawInactiveAccount(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Phone: "7", Active: false})
	seedTransaction(t, store, account.ID, "50")

	_, err := svc.Withdraw(withdrawInput("10"))
	assert.ErrorIs(t, err, errors.ErrAccountInactive)
	assert.Len(t, store.TransactionsForAccount(account.ID), 1)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Phone: "7", Active: true})
	seedTransaction(t, store, account.ID, "100")

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(withdrawInput("60"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, insufficient int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case err == errors.ErrInsufficientFunds:
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)

	balance, err := store.Account().GetBalance(account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(40)), "final balance %s", balance)
}

func TestCancelRevertsBalance(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Phone: "7", Active: true})
	seedTransaction(t, store, account.ID, "50")

	withdrawal, err := svc.Withdraw(withdrawInput("25.00"))
	require.NoError(t, err)

	canceled, err := svc.Cancel(&validation.CancelInput{
		TransactionID:      withdrawal.ID,
		CancellationReason: "Customer dispute",
	})
	require.NoError(t, err)

	require.NotNil(t, canceled.Canceled)
	assert.Equal(t, "Customer dispute", canceled.CancellationReason)

	balance, err := store.Account().GetBalance(account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(50)))
}

func TestCancelIsAtMostOnce(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Phone: "7", Active: true})
	tx := seedTransaction(t, store, account.ID, "30")

	first, err := svc.Cancel(&validation.CancelInput{TransactionID: tx.ID, CancellationReason: "duplicate charge"})
	require.NoError(t, err)
	require.NotNil(t, first.Canceled)

	_, err = svc.Cancel(&validation.CancelInput{TransactionID: tx.ID, CancellationReason: "second attempt"})
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)

	// The first cancellation is untouched.
	stored, err := store.Transaction().GetTransactionByID(tx.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Canceled)
	assert.True(t, stored.Canceled.Equal(*first.Canceled))
	assert.Equal(t, "duplicate charge", stored.CancellationReason)
}

func TestCancelRequiresReason(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Phone: "7", Active: true})
	tx := seedTransaction(t, store, account.ID, "30")

	for _, reason := range []string{"", "   "} {
		_, err := svc.Cancel(&validation.CancelInput{TransactionID: tx.ID, CancellationReason: reason})
		assert.ErrorIs(t, err, errors.ErrMissingCancellationReason)
	}

	stored, err := store.Transaction().GetTransactionByID(tx.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Canceled)
}

func TestCancelUnknownTransaction(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Cancel(&validation.CancelInput{TransactionID: 999, CancellationReason: "whatever"})
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
}

func TestBalanceExcludesCanceledTransactions(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Phone: "7", Active: true})

	seedTransaction(t, store, account.ID, "100")
	toCancel := seedTransaction(t, store, account.ID, "40")
	seedTransaction(t, store, account.ID, "-30")

	_, err := svc.Cancel(&validation.CancelInput{TransactionID: toCancel.ID, CancellationReason: "posted in error"})
	require.NoError(t, err)

	balance, err := store.Account().GetBalance(account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(70)), "balance %s", balance)
}

func TestBalanceZeroForEmptyAccount(t *testing.T) {
	_, store, _ := newTestService(t)
	account := seedAccount(t, store, domain.Account{Card: "7", Active: true})

	balance, err := store.Account().GetBalance(account.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}
