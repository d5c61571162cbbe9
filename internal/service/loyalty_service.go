package service

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"loyalty-points/internal/domain"
	"loyalty-points/internal/errors"
	"loyalty-points/internal/notification"
	"loyalty-points/internal/validation"
)

// LoyaltyService is the transaction processor. All three operations share the
// same pipeline: resolve the account, run the business checks, append to the
// ledger, then (deposits only) hand off to the notification dispatcher.
// Business-rule failures abort before any ledger write; notification failures
// never propagate back.
type LoyaltyService struct {
	store      domain.Store
	rules      RuleResolver
	dispatcher *notification.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewLoyaltyService(
	store domain.Store,
	rules RuleResolver,
	dispatcher *notification.Dispatcher,
	logger *slog.Logger,
) *LoyaltyService {
	return &LoyaltyService{
		store:      store,
		rules:      rules,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Deposit awards points computed from the loyalty points rule and records the
// payment linkage. The transaction is durable before notifications run; a
// failed notification leaves it untouched.
func (s *LoyaltyService) Deposit(in *validation.DepositInput) (*domain.LoyaltyPointsTransaction, error) {
	s.logger.Info("Processing deposit",
		"account_type", in.AccountType,
		"account_id", in.AccountID,
		"loyalty_points_rule", in.LoyaltyPointsRule)

	account, err := s.resolveActiveAccount(s.store.Account(), in.AccountType, in.AccountID)
	if err != nil {
		return nil, err
	}

	points, err := s.rules.Resolve(in.LoyaltyPointsRule, in.PaymentAmount)
	if err != nil {
		// A rule the resolver does not know is a configuration problem,
		// not a client one; keep it loud in the logs.
		s.logger.Error("Unknown loyalty points rule",
			"code", errors.UnknownRule,
			"loyalty_points_rule", in.LoyaltyPointsRule,
			"error", err)
		return nil, errors.NewAppErrorf(errors.UnknownRule, "unknown loyalty points rule: %s", in.LoyaltyPointsRule)
	}

	tx := &domain.LoyaltyPointsTransaction{
		AccountID:         account.ID,
		PointsAmount:      points,
		Description:       in.Description,
		PaymentID:         in.PaymentID,
		PaymentAmount:     in.PaymentAmount,
		PaymentTime:       in.PaymentTime,
		LoyaltyPointsRule: in.LoyaltyPointsRule,
	}

	if err := s.store.Transaction().CreateTransaction(tx); err != nil {
		return nil, err
	}

	s.notifyDeposit(account, tx)
	return tx, nil
}

// notifyDeposit runs the post-processing hooks. The transaction is already
// persisted; anything that goes wrong here is logged and swallowed.
func (s *LoyaltyService) notifyDeposit(account *domain.Account, tx *domain.LoyaltyPointsTransaction) {
	balance, err := s.store.Account().GetBalance(account.ID)
	if err != nil {
		s.logger.Error("Skipping notification, balance unavailable",
			"code", errors.NotificationFailure,
			"account_id", account.ID,
			"error", err)
		return
	}
	s.dispatcher.Dispatch(account, tx.PointsAmount, balance)
}

// Withdraw redeems points. The amount and balance checks and the ledger
// insert run as one serialized unit per account: the row lock keeps two
// concurrent withdrawals from both reading the same balance and jointly
// overdrawing it. A failed check aborts with nothing written.
func (s *LoyaltyService) Withdraw(in *validation.WithdrawInput) (*domain.LoyaltyPointsTransaction, error) {
	s.logger.Info("Processing withdraw",
		"account_type", in.AccountType,
		"account_id", in.AccountID,
		"points_amount", in.PointsAmount)

	var tx *domain.LoyaltyPointsTransaction
	err := s.store.WithTransaction(func(store domain.Store) error {
		account, err := s.resolveActiveAccount(store.Account(), in.AccountType, in.AccountID)
		if err != nil {
			return err
		}

		if err := store.Account().LockAccount(account.ID); err != nil {
			return err
		}

		if !in.PointsAmount.IsPositive() {
			s.logger.Info("Wrong loyalty points amount", "points_amount", in.PointsAmount)
			return errors.ErrInvalidAmount
		}

		balance, err := store.Account().GetBalance(account.ID)
		if err != nil {
			return err
		}
		if balance.LessThan(in.PointsAmount) {
			s.logger.Info("Insufficient funds",
				"account_id", account.ID,
				"balance", balance,
				"points_amount", in.PointsAmount)
			return errors.ErrInsufficientFunds
		}

		tx = &domain.LoyaltyPointsTransaction{
			AccountID:    account.ID,
			PointsAmount: in.PointsAmount.Neg(),
			Description:  in.Description,
		}
		return store.Transaction().CreateTransaction(tx)
	})

	if err != nil {
		return nil, err
	}

	s.logger.Info("Withdraw completed", "transaction_id", tx.ID, "account_id", tx.AccountID)
	return tx, nil
}

// Cancel marks a transaction as reversed, at most once. The cancel itself is
// a single conditional update, so a concurrent second cancel for the same id
// loses and gets "Transaction is not found"; the first cancellation's
// timestamp and reason are never overwritten.
func (s *LoyaltyService) Cancel(in *validation.CancelInput) (*domain.LoyaltyPointsTransaction, error) {
	s.logger.Info("Processing cancel", "transaction_id", in.TransactionID)

	if strings.TrimSpace(in.CancellationReason) == "" {
		return nil, errors.ErrMissingCancellationReason
	}

	tx, err := s.store.Transaction().CancelTransaction(in.TransactionID, in.CancellationReason, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cancel completed", "transaction_id", tx.ID, "account_id", tx.AccountID)
	return tx, nil
}

// resolveActiveAccount looks up the account by the chosen identifier and
// rejects inactive ones. The validated account_id is the identifier value
// itself, matched against the phone/card/email column the account_type names.
func (s *LoyaltyService) resolveActiveAccount(repo domain.AccountRepository, idType domain.IdentifierType, accountID int64) (*domain.Account, error) {
	account, err := repo.FindByIdentifier(idType, strconv.FormatInt(accountID, 10))
	if err != nil {
		return nil, err
	}
	if !account.Active {
		s.logger.Info("Account is not active", "account_type", idType, "account_id", accountID)
		return nil, errors.ErrAccountInactive
	}
	return account, nil
}

// WaitForNotifications blocks until in-flight notifications settle. Tests use
// it to observe dispatch without sleeping.
func (s *LoyaltyService) WaitForNotifications() {
	s.dispatcher.Wait()
}
