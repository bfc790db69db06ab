// Package account implements the AccountStore contract on GORM/Postgres.
// Optimistic concurrency is enforced in SQL: the compare-and-swap updates
// only the row whose version still matches, in a single statement.
package account

import (
	"context"
	"errors"
	"time"

	"github.com/amirasaad/ledger/infra/repository/model"
	"github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// New creates an account store using the provided *gorm.DB session.
func New(db *gorm.DB) *repository { //nolint:revive // unexported-return, matches sibling repositories
	return &repository{db: db}
}

// Get implements repository.AccountStore.
func (r *repository) Get(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var acct model.Account
	if err := r.db.WithContext(ctx).First(&acct, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, err
	}
	return mapModelToDomain(&acct)
}

// Create implements repository.AccountStore.
func (r *repository) Create(ctx context.Context, account *ledger.Account) error {
	acct := model.Account{
		ID:        account.ID,
		Balance:   account.Balance.Amount(),
		Currency:  account.Balance.CurrencyCode().String(),
		Status:    string(account.Status),
		Version:   account.Version,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
	return r.db.WithContext(ctx).Create(&acct).Error
}

// CompareAndSwap implements repository.AccountStore. The version predicate in
// the WHERE clause makes the update atomic; zero rows affected means either a
// stale version or an unknown account.
func (r *repository) CompareAndSwap(ctx context.Context, id uuid.UUID,
	expectedVersion uint64, newBalance money.Money) (*ledger.Account, error) {
	res := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"balance":    newBalance.Amount(),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Account{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, ledger.ErrVersionConflict
	}
	return r.Get(ctx, id)
}

// UpdateStatus implements repository.AccountStore.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status ledger.Status) error {
	res := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func mapModelToDomain(acct *model.Account) (*ledger.Account, error) {
	balance, err := money.New(acct.Balance, money.Code(acct.Currency))
	if err != nil {
		return nil, err
	}
	return ledger.New().
		WithID(acct.ID).
		WithBalance(balance).
		WithStatus(ledger.Status(acct.Status)).
		WithVersion(acct.Version).
		WithCreatedAt(acct.CreatedAt).
		WithUpdatedAt(acct.UpdatedAt).
		Build()
}
