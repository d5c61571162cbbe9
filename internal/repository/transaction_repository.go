package repository

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"loyalty-points/internal/domain"
	"loyalty-points/internal/errors"
)

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

const transactionColumns = `id, account_id, points_amount, description, payment_id, payment_amount, payment_time, loyalty_points_rule, canceled, cancellation_reason, created_at`

func (r *transactionRepository) CreateTransaction(tx *domain.LoyaltyPointsTransaction) error {
	query := `
		INSERT INTO loyalty_points_transactions
		(account_id, points_amount, description, payment_id, payment_amount, payment_time, loyalty_points_rule, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now()

	var paymentAmount interface{}
	if tx.PaymentAmount != nil {
		paymentAmount = tx.PaymentAmount.String()
	}

	err := r.db.QueryRow(
		query,
		tx.AccountID,
		tx.PointsAmount.String(),
		tx.Description,
		tx.PaymentID,
		paymentAmount,
		tx.PaymentTime,
		tx.LoyaltyPointsRule,
		now,
	).Scan(&tx.ID)

	if err != nil {
		r.logger.Error("Failed to create transaction",
			"account_id", tx.AccountID,
			"points_amount", tx.PointsAmount,
			"error", err)
		return errors.NewAppError(errors.InternalError, "failed to create transaction").WithDetails(err.Error())
	}

	tx.CreatedAt = now
	r.logger.Info("Transaction created successfully",
		"transaction_id", tx.ID,
		"account_id", tx.AccountID,
		"points_amount", tx.PointsAmount)
	return nil
}

func (r *transactionRepository) GetTransactionByID(id int64) (*domain.LoyaltyPointsTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM loyalty_points_transactions WHERE id = $1`

	tx, err := r.scanTransaction(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, errors.ErrTransactionNotFound
	}
	return tx, nil
}

// CancelTransaction performs the one-shot cancel transition. The canceled IS
// NULL predicate makes the update atomic: of two concurrent cancels for the
// same id, exactly one matches a row; the loser and any cancel of a missing
// id both get ErrTransactionNotFound.
func (r *transactionRepository) CancelTransaction(id int64, reason string, at time.Time) (*domain.LoyaltyPointsTransaction, error) {
	query := `
		UPDATE loyalty_points_transactions
		SET canceled = $2, cancellation_reason = $3
		WHERE id = $1 AND canceled IS NULL
		RETURNING ` + transactionColumns

	tx, err := r.scanTransaction(r.db.QueryRow(query, id, at, reason))
	if err != nil {
		return nil, err
	}
	if tx == nil {
		r.logger.Warn("Cancel matched no transaction", "transaction_id", id)
		return nil, errors.ErrTransactionNotFound
	}

	r.logger.Info("Transaction canceled", "transaction_id", id, "cancellation_reason", reason)
	return tx, nil
}

func (r *transactionRepository) scanTransaction(row *sql.Row) (*domain.LoyaltyPointsTransaction, error) {
	var (
		tx                 domain.LoyaltyPointsTransaction
		amountStr          string
		paymentID          sql.NullString
		paymentAmountStr   sql.NullString
		paymentTime        sql.NullTime
		rule               sql.NullString
		canceled           sql.NullTime
		cancellationReason sql.NullString
	)

	err := row.Scan(
		&tx.ID,
		&tx.AccountID,
		&amountStr,
		&tx.Description,
		&paymentID,
		&paymentAmountStr,
		&paymentTime,
		&rule,
		&canceled,
		&cancellationReason,
		&tx.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to scan transaction", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get transaction").WithDetails(err.Error())
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to parse points amount").WithDetails(err.Error())
	}
	tx.PointsAmount = amount

	if paymentID.Valid {
		tx.PaymentID = &paymentID.String
	}
	if paymentAmountStr.Valid {
		pa, err := decimal.NewFromString(paymentAmountStr.String)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse payment amount").WithDetails(err.Error())
		}
		tx.PaymentAmount = &pa
	}
	if paymentTime.Valid {
		tx.PaymentTime = &paymentTime.Time
	}
	if rule.Valid {
		tx.LoyaltyPointsRule = rule.String
	}
	if canceled.Valid {
		tx.Canceled = &canceled.Time
	}
	if cancellationReason.Valid {
		tx.CancellationReason = cancellationReason.String
	}

	return &tx, nil
}
