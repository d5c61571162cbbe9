package repository

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"loyalty-points/internal/domain"
	"loyalty-points/internal/errors"
)

type accountRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewAccountRepository(db SQLExecutor, logger *slog.Logger) domain.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

const accountColumns = `id, phone, card, email, active, email_notification, phone_notification, created_at, updated_at`

func (r *accountRepository) CreateAccount(account *domain.Account) error {
	query := `
		INSERT INTO loyalty_accounts
		(phone, card, email, active, email_notification, phone_notification, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRow(
		query,
		account.Phone,
		account.Card,
		account.Email,
		account.Active,
		account.EmailNotification,
		account.PhoneNotification,
		now,
		now,
	).Scan(&account.ID)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				r.logger.Warn("Duplicate account creation attempt",
					"phone", account.Phone, "card", account.Card, "email", account.Email)
				return errors.ErrDuplicateAccount
			}
		}
		r.logger.Error("Failed to create account", "error", err)
		return errors.NewAppError(errors.InternalError, "failed to create account").WithDetails(err.Error())
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	r.logger.Info("Account created successfully", "account_id", account.ID)
	return nil
}

func (r *accountRepository) GetAccount(id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM loyalty_accounts WHERE id = $1`
	return r.scanAccount(query, id)
}

func (r *accountRepository) FindByIdentifier(idType domain.IdentifierType, value string) (*domain.Account, error) {
	var query string
	switch idType {
	case domain.IdentifierPhone:
		query = `SELECT ` + accountColumns + ` FROM loyalty_accounts WHERE phone = $1`
	case domain.IdentifierCard:
		query = `SELECT ` + accountColumns + ` FROM loyalty_accounts WHERE card = $1`
	case domain.IdentifierEmail:
		query = `SELECT ` + accountColumns + ` FROM loyalty_accounts WHERE email = $1`
	default:
		return nil, errors.ErrAccountNotFound
	}
	return r.scanAccount(query, value)
}

func (r *accountRepository) scanAccount(query string, arg interface{}) (*domain.Account, error) {
	var account domain.Account

	err := r.db.QueryRow(query, arg).Scan(
		&account.ID,
		&account.Phone,
		&account.Card,
		&account.Email,
		&account.Active,
		&account.EmailNotification,
		&account.PhoneNotification,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Account not found", "lookup", arg)
			return nil, errors.ErrAccountNotFound
		}
		r.logger.Error("Failed to get account", "lookup", arg, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get account").WithDetails(err.Error())
	}

	return &account, nil
}

// GetBalance sums the non-canceled ledger entries for the account. The balance
// is never stored; it only exists as this aggregate.
func (r *accountRepository) GetBalance(accountID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(points_amount), 0)
		FROM loyalty_points_transactions
		WHERE account_id = $1 AND canceled IS NULL
	`

	var balanceStr string
	if err := r.db.QueryRow(query, accountID).Scan(&balanceStr); err != nil {
		r.logger.Error("Failed to compute balance", "account_id", accountID, "error", err)
		return decimal.Decimal{}, errors.NewAppError(errors.InternalError, "failed to compute balance").WithDetails(err.Error())
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		r.logger.Error("Failed to parse balance", "account_id", accountID, "balance_str", balanceStr, "error", err)
		return decimal.Decimal{}, errors.NewAppError(errors.InternalError, "failed to parse balance").WithDetails(err.Error())
	}

	return balance, nil
}

// LockAccount takes a FOR UPDATE row lock on the account. Callers must be
// inside Store.WithTransaction; the lock is released on commit or rollback.
func (r *accountRepository) LockAccount(accountID int64) error {
	query := `SELECT id FROM loyalty_accounts WHERE id = $1 FOR UPDATE`

	var id int64
	if err := r.db.QueryRow(query, accountID).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return errors.ErrAccountNotFound
		}
		r.logger.Error("Failed to lock account", "account_id", accountID, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to lock account").WithDetails(err.Error())
	}
	return nil
}
