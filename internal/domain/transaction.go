package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoyaltyPointsTransaction is an immutable record of a point change against an
// account. The only permitted mutation after creation is the single cancel
// transition (Canceled + CancellationReason set together, at most once).
// PointsAmount is positive for deposits and negative for withdrawals; the sign
// is fixed at creation.
type LoyaltyPointsTransaction struct {
	ID                 int64            `json:"id"`
	AccountID          int64            `json:"account_id"`
	PointsAmount       decimal.Decimal  `json:"points_amount"`
	Description        string           `json:"description"`
	PaymentID          *string          `json:"payment_id"`
	PaymentAmount      *decimal.Decimal `json:"payment_amount"`
	PaymentTime        *time.Time       `json:"payment_time"`
	LoyaltyPointsRule  string           `json:"loyalty_points_rule,omitempty"`
	Canceled           *time.Time       `json:"canceled"`
	CancellationReason string           `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// IsCanceled reports whether the cancel transition has happened.
func (t *LoyaltyPointsTransaction) IsCanceled() bool {
	return t.Canceled != nil
}

type TransactionRepository interface {
	// CreateTransaction appends the transaction to the ledger and fills in
	// the store-assigned ID and CreatedAt. Transactions are never deleted.
	CreateTransaction(tx *LoyaltyPointsTransaction) error
	GetTransactionByID(id int64) (*LoyaltyPointsTransaction, error)
	// CancelTransaction flags the transaction as canceled if and only if it
	// is not canceled yet. Returns ErrTransactionNotFound both for a missing
	// id and an already-canceled transaction, so a second cancel can never
	// overwrite the first.
	CancelTransaction(id int64, reason string, at time.Time) (*LoyaltyPointsTransaction, error)
}
