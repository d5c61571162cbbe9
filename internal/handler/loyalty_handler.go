package handler

import (
	"net/http"
	"time"

	"loyalty-points/internal/domain"
	"loyalty-points/internal/service"
	"loyalty-points/internal/validation"
)

type LoyaltyHandler struct {
	loyaltyService *service.LoyaltyService
}

func NewLoyaltyHandler(loyaltyService *service.LoyaltyService) *LoyaltyHandler {
	return &LoyaltyHandler{
		loyaltyService: loyaltyService,
	}
}

// TransactionResponse is the wire form of a ledger entry.
type TransactionResponse struct {
	ID                 int64   `json:"id"`
	AccountID          int64   `json:"account_id"`
	PointsAmount       string  `json:"points_amount"`
	Description        string  `json:"description"`
	PaymentID          *string `json:"payment_id"`
	PaymentAmount      *string `json:"payment_amount"`
	PaymentTime        *string `json:"payment_time"`
	LoyaltyPointsRule  string  `json:"loyalty_points_rule,omitempty"`
	Canceled           *string `json:"canceled"`
	CancellationReason string  `json:"cancellation_reason,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

func toTransactionResponse(tx *domain.LoyaltyPointsTransaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                 tx.ID,
		AccountID:          tx.AccountID,
		PointsAmount:       tx.PointsAmount.String(),
		Description:        tx.Description,
		PaymentID:          tx.PaymentID,
		LoyaltyPointsRule:  tx.LoyaltyPointsRule,
		CancellationReason: tx.CancellationReason,
		CreatedAt:          tx.CreatedAt.UTC().Format(time.RFC3339),
	}
	if tx.PaymentAmount != nil {
		s := tx.PaymentAmount.String()
		resp.PaymentAmount = &s
	}
	if tx.PaymentTime != nil {
		s := tx.PaymentTime.UTC().Format(time.RFC3339)
		resp.PaymentTime = &s
	}
	if tx.Canceled != nil {
		s := tx.Canceled.UTC().Format(time.RFC3339)
		resp.Canceled = &s
	}
	return resp
}

func (h *LoyaltyHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	body, appErr := decodeBody(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	in, err := validation.Deposit(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	tx, err := h.loyaltyService.Deposit(in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (h *LoyaltyHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	body, appErr := decodeBody(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	in, err := validation.Withdraw(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	tx, err := h.loyaltyService.Withdraw(in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (h *LoyaltyHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	body, appErr := decodeBody(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	in, err := validation.Cancel(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	tx, err := h.loyaltyService.Cancel(in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}
