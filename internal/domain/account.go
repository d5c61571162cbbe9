package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IdentifierType selects which external identifier an account is looked up by.
type IdentifierType string

const (
	IdentifierPhone IdentifierType = "phone"
	IdentifierCard  IdentifierType = "card"
	IdentifierEmail IdentifierType = "email"
)

// ValidIdentifierType reports whether t is one of the three lookup keys.
func ValidIdentifierType(t string) bool {
	switch IdentifierType(t) {
	case IdentifierPhone, IdentifierCard, IdentifierEmail:
		return true
	}
	return false
}

type Account struct {
	ID                int64     `json:"id"`
	Phone             string    `json:"phone"`
	Card              string    `json:"card"`
	Email             string    `json:"email"`
	Active            bool      `json:"active"`
	EmailNotification bool      `json:"email_notification"`
	PhoneNotification bool      `json:"phone_notification"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type AccountRepository interface {
	CreateAccount(account *Account) error
	GetAccount(id int64) (*Account, error)
	// FindByIdentifier resolves an account by exact match on one of the
	// phone/card/email columns.
	FindByIdentifier(idType IdentifierType, value string) (*Account, error)
	// GetBalance sums points_amount over the account's non-canceled
	// transactions. Always computed fresh, never cached.
	GetBalance(accountID int64) (decimal.Decimal, error)
	// LockAccount takes a row lock on the account so a concurrent
	// balance-check-then-insert cannot interleave. Only meaningful inside
	// a store transaction.
	LockAccount(accountID int64) error
}
