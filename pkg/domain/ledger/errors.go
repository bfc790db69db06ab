package ledger

import "errors"

var (
	// ErrAccountNotFound is returned when an account cannot be found.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound is returned when a transaction cannot be found.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrAccountFrozen is returned when a balance mutation targets a frozen account.
	ErrAccountFrozen = errors.New("account is frozen")

	// ErrAccountClosed is returned when a balance mutation targets a closed account.
	ErrAccountClosed = errors.New("account is closed")

	// ErrInvalidAmount is returned when a transaction amount is not strictly positive.
	ErrInvalidAmount = errors.New("transaction amount must be positive")

	// ErrCurrencyMismatch is returned when there is a currency mismatch between
	// an amount and the accounts involved.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInsufficientFunds is returned when an account has insufficient funds
	// for a withdrawal or transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSelfTransfer is returned when a transfer is attempted from an account to itself.
	ErrSelfTransfer = errors.New("cannot transfer to same account")

	// ErrMissingIdempotencyKey is returned when an operation arrives without an
	// idempotency key.
	ErrMissingIdempotencyKey = errors.New("idempotency key required")

	// ErrInvalidStatus is returned when an unknown account status is supplied.
	ErrInvalidStatus = errors.New("invalid account status")

	// ErrDuplicateKey is returned by the transaction log when an idempotency key
	// has already been reserved or committed.
	ErrDuplicateKey = errors.New("duplicate idempotency key")

	// ErrVersionConflict is returned by the account store when a compare-and-swap
	// observes a stale version.
	ErrVersionConflict = errors.New("version conflict")

	// ErrConcurrencyExhausted is returned when the bounded retry budget is spent
	// without a successful commit.
	ErrConcurrencyExhausted = errors.New("retry budget exhausted under contention")

	// ErrUnbalancedEntries is returned when a transfer's entries do not sum to zero.
	ErrUnbalancedEntries = errors.New("transfer entries do not balance")

	// ErrInconsistent signals a detected invariant violation. It is fatal for the
	// affected account: processing must halt pending manual reconciliation and is
	// never auto-corrected.
	ErrInconsistent = errors.New("ledger invariant violation detected")
)
