// Package ledger defines the core domain model of the ledger: accounts,
// double-entry transactions and the invariants that bind them.
//
// Invariants:
//   - An account balance is the sum of all committed transaction deltas
//     applied to it since creation, and never negative.
//   - An account's version increases by exactly one on every successful
//     balance mutation; it is the basis of optimistic concurrency control.
//   - Frozen and closed accounts reject all balance-mutating operations.
package ledger

import (
	"time"

	"github.com/amirasaad/ledger/pkg/money"
	"github.com/google/uuid"
)

// Status describes whether an account accepts balance mutations.
type Status string

// Account statuses.
const (
	StatusActive Status = "active"
	StatusFrozen Status = "frozen"
	StatusClosed Status = "closed"
)

// IsValid reports whether s is a known account status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusFrozen, StatusClosed:
		return true
	}
	return false
}

// Account represents a ledger account with an optimistically versioned balance.
// The engine is the only writer of Balance and Version.
type Account struct {
	ID        uuid.UUID
	Balance   money.Money
	Status    Status
	Version   uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Builder provides a fluent API for constructing Account instances, ensuring
// only valid accounts are constructed.
type Builder struct {
	id        uuid.UUID
	balance   money.Money
	status    Status
	version   uint64
	createdAt time.Time
	updatedAt time.Time
}

// New creates a new Builder with sensible defaults: a fresh UUID, zero balance
// in the default currency, active status.
func New() *Builder {
	return &Builder{
		id:        uuid.New(),
		balance:   money.Zero(money.DefaultCurrency.Code),
		status:    StatusActive,
		createdAt: time.Now(),
	}
}

// WithID sets the ID for the account being built.
func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

// WithBalance sets the initial balance for the account.
func (b *Builder) WithBalance(balance money.Money) *Builder {
	b.balance = balance
	return b
}

// WithStatus sets the initial status for the account.
func (b *Builder) WithStatus(status Status) *Builder {
	b.status = status
	return b
}

// WithVersion sets the version. This is primarily for hydrating an existing
// account from a data store.
func (b *Builder) WithVersion(v uint64) *Builder {
	b.version = v
	return b
}

// WithCreatedAt sets the creation timestamp, for hydration from a data store.
func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.createdAt = t
	return b
}

// WithUpdatedAt sets the last-updated timestamp, for hydration from a data store.
func (b *Builder) WithUpdatedAt(t time.Time) *Builder {
	b.updatedAt = t
	return b
}

// Build finalizes the construction of the Account. It validates all invariants
// before returning the new Account instance.
func (b *Builder) Build() (*Account, error) {
	if !b.status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if !b.balance.Currency().IsValid() {
		return nil, money.ErrInvalidCurrency
	}
	if b.balance.IsNegative() {
		return nil, ErrInsufficientFunds
	}
	return &Account{
		ID:        b.id,
		Balance:   b.balance,
		Status:    b.status,
		Version:   b.version,
		CreatedAt: b.createdAt,
		UpdatedAt: b.updatedAt,
	}, nil
}

// Currency returns the account's currency code.
func (a *Account) Currency() money.Code {
	return a.Balance.CurrencyCode()
}

// CanMutate reports whether the account accepts balance mutations, returning
// the status-specific error when it does not.
func (a *Account) CanMutate() error {
	switch a.Status {
	case StatusActive:
		return nil
	case StatusFrozen:
		return ErrAccountFrozen
	case StatusClosed:
		return ErrAccountClosed
	default:
		return ErrInconsistent
	}
}

// validateAmount checks that an operation amount is strictly positive and in
// the account's currency.
func (a *Account) validateAmount(amount money.Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !a.Balance.IsSameCurrency(amount) {
		return ErrCurrencyMismatch
	}
	return nil
}

// ValidateDeposit checks all business invariants for a deposit operation.
func (a *Account) ValidateDeposit(amount money.Money) error {
	if err := a.CanMutate(); err != nil {
		return err
	}
	return a.validateAmount(amount)
}

// ValidateWithdraw checks all business invariants for a withdrawal:
//   - The account must be active.
//   - The amount must be positive and in the account currency.
//   - The balance read in this attempt must cover the amount; the balance
//     never goes negative.
func (a *Account) ValidateWithdraw(amount money.Money) error {
	if err := a.CanMutate(); err != nil {
		return err
	}
	if err := a.validateAmount(amount); err != nil {
		return err
	}
	remaining, err := a.Balance.Subtract(amount)
	if err != nil {
		return err
	}
	if remaining.IsNegative() {
		return ErrInsufficientFunds
	}
	return nil
}

// ValidateTransfer ensures that a funds transfer from this account to dest is valid.
func (a *Account) ValidateTransfer(dest *Account, amount money.Money) error {
	if a == nil || dest == nil {
		return ErrAccountNotFound
	}
	if a.ID == dest.ID {
		return ErrSelfTransfer
	}
	if err := a.ValidateWithdraw(amount); err != nil {
		return err
	}
	return dest.ValidateDeposit(amount)
}
