// Package repository defines the storage contracts the ledger engine depends
// on. Implementations live under infra/repository; the engine is agnostic as
// long as CompareAndSwap and Append honor their atomicity requirements.
package repository

import (
	"context"
	"time"

	"github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/google/uuid"
)

// AccountStore is an optimistic-concurrency-controlled key-value store of
// accounts. It holds no business logic about transaction validity.
type AccountStore interface {
	// Get returns a snapshot of the account, or ledger.ErrAccountNotFound.
	Get(ctx context.Context, id uuid.UUID) (*ledger.Account, error)

	// Create persists a new account. The account's ID must be unique.
	Create(ctx context.Context, account *ledger.Account) error

	// CompareAndSwap atomically sets the balance and increments the version,
	// but only if the stored version equals expectedVersion. It returns the
	// updated snapshot, ledger.ErrVersionConflict on a stale version (without
	// side effects), or ledger.ErrAccountNotFound.
	CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion uint64,
		newBalance money.Money) (*ledger.Account, error)

	// UpdateStatus transitions the account's status (freeze, close, reopen).
	UpdateStatus(ctx context.Context, id uuid.UUID, status ledger.Status) error
}

// TransactionLog is an append-only, ordered record of balance mutations keyed
// by idempotency token.
type TransactionLog interface {
	// Append persists the transaction and assigns its Seq. At most one append
	// with a given idempotency key ever succeeds; later appends fail with
	// ledger.ErrDuplicateKey, atomically with respect to concurrent appends.
	Append(ctx context.Context, tx *ledger.Transaction) error

	// LookupByKey returns the transaction reserved or committed under the
	// idempotency key, or ledger.ErrTransactionNotFound.
	LookupByKey(ctx context.Context, idempotencyKey string) (*ledger.Transaction, error)

	// MarkCommitted finalizes a pending transaction with its resulting entries
	// (including balance snapshots). Records are immutable once committed.
	MarkCommitted(ctx context.Context, id uuid.UUID, entries []ledger.Entry) error

	// MarkFailed finalizes a pending transaction as failed with a reason.
	// Records are immutable once failed.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// ListByAccount returns a chronological page of transactions touching the
	// account, plus the token for the next page ("" when exhausted). The page
	// token is opaque to callers; an empty token starts from the beginning.
	ListByAccount(ctx context.Context, accountID uuid.UUID, pageToken string,
		pageSize int) ([]*ledger.Transaction, string, error)

	// ListPending returns pending reservations created before the cutoff, for
	// the recovery pass.
	ListPending(ctx context.Context, olderThan time.Time) ([]*ledger.Transaction, error)
}

// UnitOfWork defines the transactional boundary and repository access.
//
// Do runs the given function atomically: every store mutation made through
// the UnitOfWork passed to fn commits as a unit or not at all. This is what
// lets the engine move two balances and the log record together.
type UnitOfWork interface {
	// Do executes fn within a transaction boundary. If fn returns an error,
	// nothing is applied.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	// AccountStore returns the account store bound to the current transaction.
	AccountStore() (AccountStore, error)

	// TransactionLog returns the transaction log bound to the current transaction.
	TransactionLog() (TransactionLog, error)
}
