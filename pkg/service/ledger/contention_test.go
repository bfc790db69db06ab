package ledger_test

import (
	"context"
	"testing"

	"github.com/amirasaad/ledger/infra/repository/memory"
	"github.com/amirasaad/ledger/pkg/config"
	domain "github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/amirasaad/ledger/pkg/repository"
	ledgersvc "github.com/amirasaad/ledger/pkg/service/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decoratedUoW wraps a UnitOfWork so tests can substitute misbehaving stores
// inside every Do boundary while the real memory state stays authoritative.
type decoratedUoW struct {
	inner    repository.UnitOfWork
	accounts func(repository.AccountStore) repository.AccountStore
	log      func(repository.TransactionLog) repository.TransactionLog
}

func (u *decoratedUoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return u.inner.Do(ctx, func(inner repository.UnitOfWork) error {
		return fn(&decoratedUoW{inner: inner, accounts: u.accounts, log: u.log})
	})
}

func (u *decoratedUoW) AccountStore() (repository.AccountStore, error) {
	s, err := u.inner.AccountStore()
	if err != nil || u.accounts == nil {
		return s, err
	}
	return u.accounts(s), nil
}

func (u *decoratedUoW) TransactionLog() (repository.TransactionLog, error) {
	l, err := u.inner.TransactionLog()
	if err != nil || u.log == nil {
		return l, err
	}
	return u.log(l), nil
}

// tamperedAccounts violates the compare-and-swap contract by reporting one
// minor unit more than was written.
type tamperedAccounts struct {
	repository.AccountStore
}

func (s tamperedAccounts) CompareAndSwap(ctx context.Context, id uuid.UUID,
	expectedVersion uint64, newBalance money.Money) (*domain.Account, error) {
	updated, err := s.AccountStore.CompareAndSwap(ctx, id, expectedVersion, newBalance)
	if err != nil {
		return nil, err
	}
	tampered, err := updated.Balance.Add(money.Must(1, money.USD))
	if err != nil {
		return nil, err
	}
	updated.Balance = tampered
	return updated, nil
}

func TestInconsistentSwapFreezesAccount(t *testing.T) {
	t.Parallel()
	mem := memory.NewUoW()
	svc := ledgersvc.NewService(config.Deps{Uow: &decoratedUoW{
		inner: mem,
		accounts: func(s repository.AccountStore) repository.AccountStore {
			return tamperedAccounts{AccountStore: s}
		},
	}})
	ctx := context.Background()

	acc, err := svc.CreateAccount(ctx, money.Must(1000, money.USD), domain.StatusActive)
	require.NoError(t, err)

	receipt, err := svc.Deposit(ctx, acc.ID, money.Must(100, money.USD), "inc1")
	assert.ErrorIs(t, err, domain.ErrInconsistent)
	assert.Nil(t, receipt)

	// The attempt rolled back and processing halted: balance and version are
	// untouched, the account is frozen, and no log record survives.
	got, err := svc.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Balance.Amount())
	assert.Equal(t, uint64(0), got.Version)
	assert.Equal(t, domain.StatusFrozen, got.Status)

	log, err := mem.TransactionLog()
	require.NoError(t, err)
	_, err = log.LookupByKey(ctx, "inc1")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

// flakyAccounts reports a version conflict a fixed number of times before
// behaving normally.
type flakyAccounts struct {
	repository.AccountStore
	conflictsLeft *int
	casCalls      *int
}

func (s flakyAccounts) CompareAndSwap(ctx context.Context, id uuid.UUID,
	expectedVersion uint64, newBalance money.Money) (*domain.Account, error) {
	*s.casCalls++
	if *s.conflictsLeft > 0 {
		*s.conflictsLeft--
		return nil, domain.ErrVersionConflict
	}
	return s.AccountStore.CompareAndSwap(ctx, id, expectedVersion, newBalance)
}

func TestRetryAfterConflictCommitsOnce(t *testing.T) {
	t.Parallel()
	mem := memory.NewUoW()
	conflictsLeft, casCalls := 2, 0
	svc := ledgersvc.NewService(config.Deps{Uow: &decoratedUoW{
		inner: mem,
		accounts: func(s repository.AccountStore) repository.AccountStore {
			return flakyAccounts{AccountStore: s, conflictsLeft: &conflictsLeft, casCalls: &casCalls}
		},
	}})
	ctx := context.Background()

	acc, err := svc.CreateAccount(ctx, money.Must(1000, money.USD), domain.StatusActive)
	require.NoError(t, err)

	receipt, err := svc.Deposit(ctx, acc.ID, money.Must(100, money.USD), "flaky1")
	require.NoError(t, err)
	assert.Equal(t, domain.TxCommitted, receipt.Status)
	assert.Equal(t, int64(1100), receipt.Balances[acc.ID].Amount())
	assert.Equal(t, 3, casCalls, "two conflicted attempts then the committing one")
	assert.Zero(t, conflictsLeft)

	got, err := svc.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), got.Balance.Amount())
	assert.Equal(t, uint64(1), got.Version, "conflicted attempts must not bump the version")

	// The rolled-back attempts left no residue: exactly one committed record.
	page, err := svc.GetTransactionHistory(ctx, acc.ID, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, receipt.TransactionID, page.Transactions[0].ID)
	assert.Equal(t, domain.TxCommitted, page.Transactions[0].Status)
}

// forgetfulLog misses the first replay lookup, making the engine race its own
// reservation against a key that is already taken.
type forgetfulLog struct {
	repository.TransactionLog
	missFirst *bool
}

func (l forgetfulLog) LookupByKey(ctx context.Context, idempotencyKey string) (*domain.Transaction, error) {
	if *l.missFirst {
		*l.missFirst = false
		return nil, domain.ErrTransactionNotFound
	}
	return l.TransactionLog.LookupByKey(ctx, idempotencyKey)
}

func TestRacedAppendReplaysWinner(t *testing.T) {
	t.Parallel()
	mem := memory.NewUoW()
	svc := ledgersvc.NewService(config.Deps{Uow: mem})
	ctx := context.Background()

	acc, err := svc.CreateAccount(ctx, money.Must(1000, money.USD), domain.StatusActive)
	require.NoError(t, err)

	winner, err := svc.Deposit(ctx, acc.ID, money.Must(100, money.USD), "race1")
	require.NoError(t, err)

	// The loser's first lookup predates the winner's commit, so it proceeds
	// to reserve the key, hits the duplicate, retries, and replays.
	missFirst := true
	loserSvc := ledgersvc.NewService(config.Deps{Uow: &decoratedUoW{
		inner: mem,
		log: func(l repository.TransactionLog) repository.TransactionLog {
			return forgetfulLog{TransactionLog: l, missFirst: &missFirst}
		},
	}})

	loser, err := loserSvc.Deposit(ctx, acc.ID, money.Must(100, money.USD), "race1")
	require.NoError(t, err)
	assert.Equal(t, winner.TransactionID, loser.TransactionID)
	assert.Equal(t, domain.TxCommitted, loser.Status)
	assert.True(t, winner.Balances[acc.ID].Equals(loser.Balances[acc.ID]))
	assert.False(t, missFirst, "the duplicate-key arm must have been taken")

	// No double credit.
	got, err := svc.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), got.Balance.Amount())
	assert.Equal(t, uint64(1), got.Version)
}
