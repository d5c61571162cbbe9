package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ValidationError           ErrorCode = "validation_error"
	AccountNotFound           ErrorCode = "account_not_found"
	AccountInactive           ErrorCode = "account_inactive"
	InvalidAmount             ErrorCode = "invalid_amount"
	InsufficientFunds         ErrorCode = "insufficient_funds"
	TransactionNotFound       ErrorCode = "transaction_not_found"
	MissingCancellationReason ErrorCode = "missing_cancellation_reason"
	DuplicateAccount          ErrorCode = "duplicate_account"
	// UnknownRule is a configuration problem (no such loyalty points rule),
	// not a client input problem. It maps to the same 400 status as the
	// business rejections but keeps its own code for logs and monitoring.
	UnknownRule         ErrorCode = "unknown_rule"
	NotificationFailure ErrorCode = "notification_failure"
	InvalidInput        ErrorCode = "invalid_input"
	InternalError       ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// HTTPStatus maps the error code to a response status. Everything the caller
// can fix is a 400; only genuine server faults are 500.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Predefined errors for common cases. The messages match the wording the
// loyalty API has always returned to clients.
var (
	ErrAccountNotFound           = NewAppError(AccountNotFound, "Account is not found")
	ErrAccountInactive           = NewAppError(AccountInactive, "Account is not active")
	ErrInvalidAmount             = NewAppError(InvalidAmount, "Wrong loyalty points amount")
	ErrInsufficientFunds         = NewAppError(InsufficientFunds, "Insufficient funds")
	ErrTransactionNotFound       = NewAppError(TransactionNotFound, "Transaction is not found")
	ErrMissingCancellationReason = NewAppError(MissingCancellationReason, "Cancellation reason is not specified")
	ErrDuplicateAccount          = NewAppError(DuplicateAccount, "account already exists")
	ErrCannotBeginTransaction    = NewAppError(InternalError, "cannot begin transaction on a transactional store")
)
