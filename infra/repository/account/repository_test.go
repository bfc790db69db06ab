package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	dialector := postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func accountRows(id uuid.UUID, balance int64, version uint64) *sqlmock.Rows {
	return sqlmock.NewRows(
		[]string{"id", "balance", "currency", "status", "version", "created_at", "updated_at"}).
		AddRow(id, balance, "USD", "active", version, time.Now(), time.Now())
}

func TestRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository{db: db}
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE id = \$1`).
		WillReturnRows(accountRows(id, 1000, 3))

	acc, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, acc.ID)
	assert.Equal(t, int64(1000), acc.Balance.Amount())
	assert.Equal(t, uint64(3), acc.Version)
}

func TestRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository{db: db}
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository{db: db}

	acc, err := ledger.New().WithBalance(money.Must(1000, money.USD)).Build()
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "accounts" (.+) VALUES (.+)`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), acc))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "accounts" (.+) VALUES (.+)`).
		WillReturnError(errors.New("create error"))
	mock.ExpectRollback()

	assert.Error(t, repo.Create(context.Background(), acc))
}

func TestRepository_CompareAndSwap(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository{db: db}
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "accounts" SET (.+) WHERE id = \$(\d) AND version = \$(\d)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE id = \$1`).
		WillReturnRows(accountRows(id, 1500, 4))

	acc, err := repo.CompareAndSwap(context.Background(), id, 3, money.Must(1500, money.USD))
	require.NoError(t, err)
	assert.Equal(t, int64(1500), acc.Balance.Amount())
	assert.Equal(t, uint64(4), acc.Version)
}

func TestRepository_CompareAndSwapVersionConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository{db: db}
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "accounts" SET (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "accounts" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := repo.CompareAndSwap(context.Background(), id, 3, money.Must(1500, money.USD))
	assert.ErrorIs(t, err, ledger.ErrVersionConflict)
}

func TestRepository_CompareAndSwapNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository{db: db}
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "accounts" SET (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "accounts" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := repo.CompareAndSwap(context.Background(), id, 3, money.Must(1500, money.USD))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestRepository_UpdateStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository{db: db}
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "accounts" SET (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateStatus(context.Background(), id, ledger.StatusFrozen))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "accounts" SET (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), id, ledger.StatusFrozen)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
