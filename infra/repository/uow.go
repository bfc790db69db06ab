// Package repository wires the GORM-backed stores into the UnitOfWork
// contract. Do maps directly onto a database transaction, which gives the
// engine true multi-key atomicity: both balance swaps and the log record
// commit or roll back as one.
package repository

import (
	"context"

	"github.com/amirasaad/ledger/infra/repository/account"
	"github.com/amirasaad/ledger/infra/repository/transaction"
	"github.com/amirasaad/ledger/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one abstraction.
type UoW struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// Do runs the given function in a database transaction, providing a UoW whose
// stores are bound to that transaction.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx})
	})
}

// session returns the transaction session inside a Do boundary, and the base
// session outside one (read-only use).
func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// AccountStore implements repository.UnitOfWork.
func (u *UoW) AccountStore() (repository.AccountStore, error) {
	return account.New(u.session()), nil
}

// TransactionLog implements repository.UnitOfWork.
func (u *UoW) TransactionLog() (repository.TransactionLog, error) {
	return transaction.New(u.session()), nil
}
