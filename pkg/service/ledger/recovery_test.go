package ledger_test

import (
	"context"
	"testing"
	"time"

	domain "github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appendPending plants a pending reservation directly in the log, simulating
// a writer that died between reserving the key and committing.
func appendPending(t *testing.T, uow repository.UnitOfWork, tx *domain.Transaction) {
	t.Helper()
	err := uow.Do(context.Background(), func(uow repository.UnitOfWork) error {
		log, err := uow.TransactionLog()
		if err != nil {
			return err
		}
		return log.Append(context.Background(), tx)
	})
	require.NoError(t, err)
}

func TestRecoverPending(t *testing.T) {
	t.Parallel()
	svc, uow := newTestService(t)
	ctx := context.Background()
	acc := createAccount(t, svc, 1000)

	stale := domain.NewDeposit(acc.ID, money.Must(100, money.USD), "stale1")
	stale.CreatedAt = time.Now().Add(-time.Hour)
	appendPending(t, uow, stale)

	fresh := domain.NewDeposit(acc.ID, money.Must(100, money.USD), "fresh1")
	appendPending(t, uow, fresh)

	resolved, err := svc.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved, "only reservations past the staleness window are resolved")

	// The resolved record is failed, not discarded: its key still replays.
	receipt, err := svc.Deposit(ctx, acc.ID, money.Must(100, money.USD), "stale1")
	assert.Error(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, stale.ID, receipt.TransactionID)
	assert.Equal(t, domain.TxFailed, receipt.Status)

	// No balance was ever applied for the dead reservation.
	got, err := svc.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Balance.Amount())
}

func TestRecoverPendingNothingStale(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	acc := createAccount(t, svc, 1000)

	_, err := svc.Deposit(context.Background(), acc.ID, money.Must(100, money.USD), "r1")
	require.NoError(t, err)

	resolved, err := svc.RecoverPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, resolved, "committed records are never touched by recovery")
}

func TestPendingTwinReplay(t *testing.T) {
	t.Parallel()
	svc, uow := newTestService(t)
	ctx := context.Background()
	acc := createAccount(t, svc, 1000)

	inflight := domain.NewDeposit(acc.ID, money.Must(100, money.USD), "twin1")
	appendPending(t, uow, inflight)

	// A replay racing an in-flight operation sees its identity and pending
	// status, with no balances.
	receipt, err := svc.Deposit(ctx, acc.ID, money.Must(100, money.USD), "twin1")
	require.NoError(t, err)
	assert.Equal(t, inflight.ID, receipt.TransactionID)
	assert.Equal(t, domain.TxPending, receipt.Status)
	assert.Empty(t, receipt.Balances)
}
