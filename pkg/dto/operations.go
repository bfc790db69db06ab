// Package dto defines the loosely-typed operation requests accepted at the
// engine boundary. Each request is validated with go-playground/validator and
// converted into the exact typed arguments of the engine; malformed input
// never reaches the engine. Monetary amounts cross this boundary as
// fixed-point integer minor units plus a currency code, never floating-point.
package dto

import (
	"fmt"

	"github.com/amirasaad/ledger/pkg/money"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// DepositRequest asks to credit an account.
type DepositRequest struct {
	AccountID      string `json:"account_id" validate:"required,uuid"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	Currency       string `json:"currency" validate:"required,iso4217"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,min=1,max=128"`
}

// Validate checks the request's structural constraints.
func (r DepositRequest) Validate() error {
	return validate.Struct(r)
}

// Args converts the validated request into typed engine arguments.
func (r DepositRequest) Args() (uuid.UUID, money.Money, string, error) {
	return singleAccountArgs(r.AccountID, r.Amount, r.Currency, r.IdempotencyKey)
}

// WithdrawRequest asks to debit an account.
type WithdrawRequest struct {
	AccountID      string `json:"account_id" validate:"required,uuid"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	Currency       string `json:"currency" validate:"required,iso4217"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,min=1,max=128"`
}

// Validate checks the request's structural constraints.
func (r WithdrawRequest) Validate() error {
	return validate.Struct(r)
}

// Args converts the validated request into typed engine arguments.
func (r WithdrawRequest) Args() (uuid.UUID, money.Money, string, error) {
	return singleAccountArgs(r.AccountID, r.Amount, r.Currency, r.IdempotencyKey)
}

// TransferRequest asks to move funds between two distinct accounts.
type TransferRequest struct {
	FromID         string `json:"from_id" validate:"required,uuid"`
	ToID           string `json:"to_id" validate:"required,uuid,nefield=FromID"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	Currency       string `json:"currency" validate:"required,iso4217"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,min=1,max=128"`
}

// Validate checks the request's structural constraints, including that source
// and destination differ.
func (r TransferRequest) Validate() error {
	return validate.Struct(r)
}

// Args converts the validated request into typed engine arguments.
func (r TransferRequest) Args() (uuid.UUID, uuid.UUID, money.Money, string, error) {
	fromID, err := uuid.Parse(r.FromID)
	if err != nil {
		return uuid.Nil, uuid.Nil, money.Money{}, "", fmt.Errorf("invalid from_id: %w", err)
	}
	toID, err := uuid.Parse(r.ToID)
	if err != nil {
		return uuid.Nil, uuid.Nil, money.Money{}, "", fmt.Errorf("invalid to_id: %w", err)
	}
	amount, err := money.New(r.Amount, money.Code(r.Currency))
	if err != nil {
		return uuid.Nil, uuid.Nil, money.Money{}, "", err
	}
	return fromID, toID, amount, r.IdempotencyKey, nil
}

// HistoryRequest asks for a page of an account's transaction history.
type HistoryRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	PageToken string `json:"page_token" validate:"omitempty,max=64"`
	PageSize  int    `json:"page_size" validate:"gte=0,lte=1000"`
}

// Validate checks the request's structural constraints.
func (r HistoryRequest) Validate() error {
	return validate.Struct(r)
}

// Args converts the validated request into typed engine arguments.
func (r HistoryRequest) Args() (uuid.UUID, string, int, error) {
	accountID, err := uuid.Parse(r.AccountID)
	if err != nil {
		return uuid.Nil, "", 0, fmt.Errorf("invalid account_id: %w", err)
	}
	return accountID, r.PageToken, r.PageSize, nil
}

func singleAccountArgs(accountID string, amount int64, currency, key string) (uuid.UUID, money.Money, string, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return uuid.Nil, money.Money{}, "", fmt.Errorf("invalid account_id: %w", err)
	}
	m, err := money.New(amount, money.Code(currency))
	if err != nil {
		return uuid.Nil, money.Money{}, "", err
	}
	return id, m, key, nil
}
