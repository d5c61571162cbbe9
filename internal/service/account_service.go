package service

import (
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"loyalty-points/internal/domain"
	"loyalty-points/internal/errors"
)

// AccountService covers the administrative surface around the ledger:
// creating accounts and reading balances. Account lifecycle beyond creation
// (activation changes, preference changes) belongs to the surrounding system.
type AccountService struct {
	store  domain.Store
	logger *slog.Logger
}

func NewAccountService(store domain.Store, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:  store,
		logger: logger,
	}
}

type CreateAccountRequest struct {
	Phone             string
	Card              string
	Email             string
	Active            bool
	EmailNotification bool
	PhoneNotification bool
}

func (s *AccountService) CreateAccount(req *CreateAccountRequest) (*domain.Account, error) {
	s.logger.Info("Creating account", "phone", req.Phone, "card", req.Card, "email", req.Email)

	// Exactly one identifier names the account; it is the external lookup key.
	identifiers := 0
	for _, v := range []string{req.Phone, req.Card, req.Email} {
		if v != "" {
			identifiers++
		}
	}
	if identifiers != 1 {
		return nil, errors.NewAppError(errors.InvalidInput, "exactly one of phone, card, email must be set")
	}

	account := &domain.Account{
		Phone:             req.Phone,
		Card:              req.Card,
		Email:             req.Email,
		Active:            req.Active,
		EmailNotification: req.EmailNotification,
		PhoneNotification: req.PhoneNotification,
	}

	if err := s.store.Account().CreateAccount(account); err != nil {
		return nil, err
	}

	s.logger.Info("Account created successfully", "account_id", account.ID)
	return account, nil
}

// GetBalance returns the account's current balance, computed fresh from the
// non-canceled ledger entries.
func (s *AccountService) GetBalance(accountID string) (decimal.Decimal, error) {
	id, err := strconv.ParseInt(accountID, 10, 64)
	if err != nil || id <= 0 {
		return decimal.Decimal{}, errors.NewAppError(errors.InvalidInput, "account ID must be a positive integer")
	}

	if _, err := s.store.Account().GetAccount(id); err != nil {
		return decimal.Decimal{}, err
	}

	return s.store.Account().GetBalance(id)
}
