package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"loyalty-points/internal/domain"
	"loyalty-points/internal/errors"
	"loyalty-points/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
}

func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

type CreateAccountRequest struct {
	Phone             string `json:"phone"`
	Card              string `json:"card"`
	Email             string `json:"email"`
	Active            bool   `json:"active"`
	EmailNotification bool   `json:"email_notification"`
	PhoneNotification bool   `json:"phone_notification"`
}

type AccountResponse struct {
	AccountID         int64  `json:"account_id"`
	Phone             string `json:"phone,omitempty"`
	Card              string `json:"card,omitempty"`
	Email             string `json:"email,omitempty"`
	Active            bool   `json:"active"`
	EmailNotification bool   `json:"email_notification"`
	PhoneNotification bool   `json:"phone_notification"`
}

type BalanceResponse struct {
	AccountID int64  `json:"account_id"`
	Balance   string `json:"balance"`
}

func toAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:         account.ID,
		Phone:             account.Phone,
		Card:              account.Card,
		Email:             account.Email,
		Active:            account.Active,
		EmailNotification: account.EmailNotification,
		PhoneNotification: account.PhoneNotification,
	}
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body"))
		return
	}

	account, err := h.accountService.CreateAccount(&service.CreateAccountRequest{
		Phone:             req.Phone,
		Card:              req.Card,
		Email:             req.Email,
		Active:            req.Active,
		EmailNotification: req.EmailNotification,
		PhoneNotification: req.PhoneNotification,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID := vars["account_id"]

	balance, err := h.accountService.GetBalance(accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	id, _ := strconv.ParseInt(accountID, 10, 64)
	writeJSON(w, http.StatusOK, BalanceResponse{
		AccountID: id,
		Balance:   balance.String(),
	})
}
