package ledger

import (
	"fmt"

	domain "github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/google/uuid"
)

// Receipt is the result record returned by every engine operation: the
// transaction identity, its terminal status, and the resulting balance of
// each touched account. Replays of the same idempotency key return an
// identical receipt.
type Receipt struct {
	TransactionID uuid.UUID
	Status        domain.TxStatus
	Balances      map[uuid.UUID]money.Money
}

// failureByReason maps recorded failure reasons back to their sentinel errors
// so a replayed failed operation reports the same typed result as the
// original attempt.
var failureByReason = map[string]error{
	domain.ErrAccountFrozen.Error():        domain.ErrAccountFrozen,
	domain.ErrAccountClosed.Error():        domain.ErrAccountClosed,
	domain.ErrInvalidAmount.Error():        domain.ErrInvalidAmount,
	domain.ErrCurrencyMismatch.Error():     domain.ErrCurrencyMismatch,
	domain.ErrInsufficientFunds.Error():    domain.ErrInsufficientFunds,
	domain.ErrSelfTransfer.Error():         domain.ErrSelfTransfer,
	domain.ErrConcurrencyExhausted.Error(): domain.ErrConcurrencyExhausted,
}

// staleReservationReason marks records failed by the recovery pass.
const staleReservationReason = "stale pending reservation resolved by recovery"

func failureError(reason string) error {
	if err, ok := failureByReason[reason]; ok {
		return err
	}
	return fmt.Errorf("recorded failure: %s", reason)
}

// fromRecord rebuilds the receipt (and, for failed records, the typed error)
// of a previously recorded transaction.
func fromRecord(tx *domain.Transaction) (*Receipt, error) {
	r := &Receipt{TransactionID: tx.ID, Status: tx.Status}
	switch tx.Status {
	case domain.TxCommitted:
		r.Balances = make(map[uuid.UUID]money.Money, len(tx.Entries))
		for _, e := range tx.Entries {
			r.Balances[e.AccountID] = e.BalanceAfter
		}
		return r, nil
	case domain.TxFailed:
		return r, failureError(tx.FailureReason)
	default:
		// A pending twin is still in flight; the caller sees its identity and
		// no balances.
		return r, nil
	}
}
