package ledger

import (
	"bytes"
	"context"
	"errors"

	domain "github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/google/uuid"
)

// Deposit credits amount onto the account. Replaying the same idempotency key
// returns the original result without re-executing.
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID,
	amount money.Money, idempotencyKey string) (*Receipt, error) {
	return s.applyOne(ctx, domain.KindDeposit, accountID, amount, idempotencyKey)
}

// Withdraw debits amount from the account. The sufficient-funds check runs
// against the balance read in the same attempt, never a stale value.
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID,
	amount money.Money, idempotencyKey string) (*Receipt, error) {
	return s.applyOne(ctx, domain.KindWithdrawal, accountID, amount, idempotencyKey)
}

// applyOne runs a single-account mutation (deposit or withdrawal) with
// write-ahead key reservation and bounded optimistic retries.
func (s *Service) applyOne(ctx context.Context, kind domain.Kind,
	accountID uuid.UUID, amount money.Money, idempotencyKey string) (*Receipt, error) {
	if idempotencyKey == "" {
		return nil, domain.ErrMissingIdempotencyKey
	}
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			receipt      *Receipt
			failure      error
			inconsistent uuid.UUID
		)
		err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			accounts, err := uow.AccountStore()
			if err != nil {
				return err
			}
			log, err := uow.TransactionLog()
			if err != nil {
				return err
			}
			if prior, err := log.LookupByKey(ctx, idempotencyKey); err == nil {
				receipt, failure = fromRecord(prior)
				return nil
			} else if !errors.Is(err, domain.ErrTransactionNotFound) {
				return err
			}
			acc, err := accounts.Get(ctx, accountID)
			if err != nil {
				return err
			}
			var (
				tx         *domain.Transaction
				delta      money.Money
				newBalance money.Money
			)
			if kind == domain.KindDeposit {
				tx = domain.NewDeposit(accountID, amount, idempotencyKey)
				delta = amount
				if verr := acc.ValidateDeposit(amount); verr != nil {
					receipt, failure, err = recordFailure(ctx, log, tx, verr)
					return err
				}
				newBalance, err = acc.Balance.Add(amount)
			} else {
				tx = domain.NewWithdrawal(accountID, amount, idempotencyKey)
				delta = amount.Negate()
				if verr := acc.ValidateWithdraw(amount); verr != nil {
					receipt, failure, err = recordFailure(ctx, log, tx, verr)
					return err
				}
				newBalance, err = acc.Balance.Subtract(amount)
			}
			if err != nil {
				return err
			}
			// Reserve the idempotency key before any balance moves.
			if err := log.Append(ctx, tx); err != nil {
				return err
			}
			updated, err := accounts.CompareAndSwap(ctx, acc.ID, acc.Version, newBalance)
			if err != nil {
				return err
			}
			if err := verifySwap(acc.Balance, delta, updated.Balance); err != nil {
				inconsistent = acc.ID
				return err
			}
			entries := []domain.Entry{
				{AccountID: accountID, Delta: delta, BalanceAfter: updated.Balance},
			}
			if err := log.MarkCommitted(ctx, tx.ID, entries); err != nil {
				return err
			}
			receipt = &Receipt{
				TransactionID: tx.ID,
				Status:        domain.TxCommitted,
				Balances:      map[uuid.UUID]money.Money{accountID: updated.Balance},
			}
			return nil
		})
		switch {
		case err == nil:
			return receipt, failure
		case errors.Is(err, domain.ErrInconsistent):
			if inconsistent != uuid.Nil {
				s.haltAccount(ctx, inconsistent)
			}
			return nil, err
		case errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrDuplicateKey):
			s.logger.Debug("contention, retrying",
				"kind", kind, "account_id", accountID, "attempt", attempt, "error", err)
			continue
		default:
			return nil, err
		}
	}
	s.recordExhaustion(ctx, kind, accountID, uuid.Nil, amount, idempotencyKey)
	return nil, domain.ErrConcurrencyExhausted
}

// Transfer moves amount from one account to another as a single atomic,
// double-entry transaction: either both balances move and the record commits,
// or neither does.
func (s *Service) Transfer(ctx context.Context, fromID, toID uuid.UUID,
	amount money.Money, idempotencyKey string) (*Receipt, error) {
	if idempotencyKey == "" {
		return nil, domain.ErrMissingIdempotencyKey
	}
	if fromID == toID {
		return nil, domain.ErrSelfTransfer
	}
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			receipt      *Receipt
			failure      error
			inconsistent uuid.UUID
		)
		err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			accounts, err := uow.AccountStore()
			if err != nil {
				return err
			}
			log, err := uow.TransactionLog()
			if err != nil {
				return err
			}
			if prior, err := log.LookupByKey(ctx, idempotencyKey); err == nil {
				receipt, failure = fromRecord(prior)
				return nil
			} else if !errors.Is(err, domain.ErrTransactionNotFound) {
				return err
			}
			// Read both accounts in ascending-ID order regardless of
			// debit/credit role, so lock-based stores never deadlock on
			// opposite-direction transfers.
			firstID, secondID := orderPair(fromID, toID)
			first, err := accounts.Get(ctx, firstID)
			if err != nil {
				return err
			}
			second, err := accounts.Get(ctx, secondID)
			if err != nil {
				return err
			}
			from, to := first, second
			if from.ID != fromID {
				from, to = second, first
			}
			tx := domain.NewTransfer(fromID, toID, amount, idempotencyKey)
			if verr := from.ValidateTransfer(to, amount); verr != nil {
				receipt, failure, err = recordFailure(ctx, log, tx, verr)
				return err
			}
			newFrom, err := from.Balance.Subtract(amount)
			if err != nil {
				return err
			}
			newTo, err := to.Balance.Add(amount)
			if err != nil {
				return err
			}
			if err := log.Append(ctx, tx); err != nil {
				return err
			}
			swaps := []struct {
				acc        *domain.Account
				newBalance money.Money
				delta      money.Money
			}{
				{from, newFrom, amount.Negate()},
				{to, newTo, amount},
			}
			if swaps[0].acc.ID != firstID {
				swaps[0], swaps[1] = swaps[1], swaps[0]
			}
			balances := make(map[uuid.UUID]money.Money, 2)
			for _, sw := range swaps {
				updated, err := accounts.CompareAndSwap(ctx, sw.acc.ID, sw.acc.Version, sw.newBalance)
				if err != nil {
					return err
				}
				if err := verifySwap(sw.acc.Balance, sw.delta, updated.Balance); err != nil {
					inconsistent = sw.acc.ID
					return err
				}
				balances[updated.ID] = updated.Balance
			}
			entries := []domain.Entry{
				{AccountID: fromID, Delta: amount.Negate(), BalanceAfter: balances[fromID]},
				{AccountID: toID, Delta: amount, BalanceAfter: balances[toID]},
			}
			if err := log.MarkCommitted(ctx, tx.ID, entries); err != nil {
				return err
			}
			receipt = &Receipt{
				TransactionID: tx.ID,
				Status:        domain.TxCommitted,
				Balances:      balances,
			}
			return nil
		})
		switch {
		case err == nil:
			return receipt, failure
		case errors.Is(err, domain.ErrInconsistent):
			if inconsistent != uuid.Nil {
				s.haltAccount(ctx, inconsistent)
			}
			return nil, err
		case errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrDuplicateKey):
			s.logger.Debug("transfer contention, retrying",
				"from", fromID, "to", toID, "attempt", attempt, "error", err)
			continue
		default:
			return nil, err
		}
	}
	s.recordExhaustion(ctx, domain.KindTransfer, fromID, toID, amount, idempotencyKey)
	return nil, domain.ErrConcurrencyExhausted
}

// recordFailure commits a failed audit record under the operation's key. The
// key is burned: replays report the same typed failure instead of retrying.
func recordFailure(ctx context.Context, log repository.TransactionLog,
	tx *domain.Transaction, cause error) (*Receipt, error, error) {
	tx.Status = domain.TxFailed
	tx.FailureReason = cause.Error()
	if err := log.Append(ctx, tx); err != nil {
		return nil, nil, err
	}
	return &Receipt{TransactionID: tx.ID, Status: domain.TxFailed}, cause, nil
}

// recordExhaustion writes a best-effort failed record after the retry budget
// is spent, so the exhausted attempt is auditable.
func (s *Service) recordExhaustion(ctx context.Context, kind domain.Kind,
	fromID, toID uuid.UUID, amount money.Money, idempotencyKey string) {
	var tx *domain.Transaction
	switch kind {
	case domain.KindDeposit:
		tx = domain.NewDeposit(fromID, amount, idempotencyKey)
	case domain.KindWithdrawal:
		tx = domain.NewWithdrawal(fromID, amount, idempotencyKey)
	default:
		tx = domain.NewTransfer(fromID, toID, amount, idempotencyKey)
	}
	tx.Status = domain.TxFailed
	tx.FailureReason = domain.ErrConcurrencyExhausted.Error()
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		log, err := uow.TransactionLog()
		if err != nil {
			return err
		}
		return log.Append(ctx, tx)
	})
	if err != nil && !errors.Is(err, domain.ErrDuplicateKey) {
		s.logger.Warn("could not record exhausted attempt",
			"idempotency_key", idempotencyKey, "error", err)
	}
}

func orderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}
