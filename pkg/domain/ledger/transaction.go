package ledger

import (
	"time"

	"github.com/amirasaad/ledger/pkg/money"
	"github.com/google/uuid"
)

// Kind identifies the type of balance mutation a transaction records.
type Kind string

// Transaction kinds.
const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindTransfer   Kind = "transfer"
)

// TxStatus is the lifecycle state of a transaction. Transitions are
// Pending -> Committed or Pending -> Failed; both are terminal.
type TxStatus string

// Transaction statuses.
const (
	TxPending   TxStatus = "pending"
	TxCommitted TxStatus = "committed"
	TxFailed    TxStatus = "failed"
)

// Entry is a single signed balance delta against one account. BalanceAfter
// snapshots the account balance the commit produced, so replays of the same
// idempotency key report identical results.
type Entry struct {
	AccountID    uuid.UUID
	Delta        money.Money
	BalanceAfter money.Money
}

// Transaction is an immutable-once-committed record of a balance mutation.
// A deposit or withdrawal carries exactly one entry; a transfer carries a
// debit and a matching credit of equal magnitude and opposite sign.
type Transaction struct {
	ID             uuid.UUID
	IdempotencyKey string
	Kind           Kind
	Entries        []Entry
	Status         TxStatus
	// Seq is the log-assigned append sequence, strictly monotonic within the
	// transaction log. Zero until appended.
	Seq uint64
	// FailureReason records why a failed transaction was rejected. Empty for
	// pending and committed records.
	FailureReason string
	CreatedAt     time.Time
}

// NewDeposit builds a pending deposit transaction with a single credit entry.
func NewDeposit(accountID uuid.UUID, amount money.Money, idempotencyKey string) *Transaction {
	return &Transaction{
		ID:             uuid.New(),
		IdempotencyKey: idempotencyKey,
		Kind:           KindDeposit,
		Entries:        []Entry{{AccountID: accountID, Delta: amount}},
		Status:         TxPending,
		CreatedAt:      time.Now(),
	}
}

// NewWithdrawal builds a pending withdrawal transaction with a single debit entry.
func NewWithdrawal(accountID uuid.UUID, amount money.Money, idempotencyKey string) *Transaction {
	return &Transaction{
		ID:             uuid.New(),
		IdempotencyKey: idempotencyKey,
		Kind:           KindWithdrawal,
		Entries:        []Entry{{AccountID: accountID, Delta: amount.Negate()}},
		Status:         TxPending,
		CreatedAt:      time.Now(),
	}
}

// NewTransfer builds a pending transfer transaction with a balanced
// debit/credit entry pair. Entry order is debit first, credit second.
func NewTransfer(fromID, toID uuid.UUID, amount money.Money, idempotencyKey string) *Transaction {
	return &Transaction{
		ID:             uuid.New(),
		IdempotencyKey: idempotencyKey,
		Kind:           KindTransfer,
		Entries: []Entry{
			{AccountID: fromID, Delta: amount.Negate()},
			{AccountID: toID, Delta: amount},
		},
		Status:    TxPending,
		CreatedAt: time.Now(),
	}
}

// Validate checks the structural invariants of the transaction record:
// entry counts per kind and, for transfers, the double-entry zero sum.
func (t *Transaction) Validate() error {
	switch t.Kind {
	case KindDeposit, KindWithdrawal:
		if len(t.Entries) != 1 {
			return ErrUnbalancedEntries
		}
	case KindTransfer:
		if len(t.Entries) != 2 {
			return ErrUnbalancedEntries
		}
		if t.Entries[0].AccountID == t.Entries[1].AccountID {
			return ErrSelfTransfer
		}
		sum, err := t.Entries[0].Delta.Add(t.Entries[1].Delta)
		if err != nil {
			return err
		}
		if !sum.IsZero() {
			return ErrUnbalancedEntries
		}
	default:
		return ErrInconsistent
	}
	return nil
}

// EntryFor returns the entry touching the given account, if any.
func (t *Transaction) EntryFor(accountID uuid.UUID) (Entry, bool) {
	for _, e := range t.Entries {
		if e.AccountID == accountID {
			return e, true
		}
	}
	return Entry{}, false
}
