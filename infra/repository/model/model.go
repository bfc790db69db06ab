// Package model holds the GORM persistence models for the ledger.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Account is the persisted form of a ledger account.
type Account struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Balance   int64     `gorm:"not null"`
	Currency  string    `gorm:"type:varchar(3);not null;default:'USD'"`
	Status    string    `gorm:"type:varchar(16);not null;default:'active'"`
	Version   uint64    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for the Account model.
func (Account) TableName() string {
	return "accounts"
}

// Transaction is the persisted form of a ledger transaction. The unique index
// on IdempotencyKey is what makes Append atomic with respect to concurrent
// appends sharing a key: at most one insert ever succeeds.
type Transaction struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq            uint64    `gorm:"autoIncrement;uniqueIndex"`
	IdempotencyKey string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	Kind           string    `gorm:"type:varchar(16);not null"`
	Status         string    `gorm:"type:varchar(16);not null;default:'pending'"`
	FailureReason  string    `gorm:"type:varchar(255)"`
	CreatedAt      time.Time
	Entries        []Entry `gorm:"foreignKey:TransactionID"`
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

// Entry is one signed balance delta of a transaction. Position keeps the
// debit-before-credit ordering of transfer entries.
type Entry struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	TransactionID uuid.UUID `gorm:"type:uuid;index;not null"`
	AccountID     uuid.UUID `gorm:"type:uuid;index;not null"`
	Delta         int64     `gorm:"not null"`
	BalanceAfter  int64     `gorm:"not null"`
	Currency      string    `gorm:"type:varchar(3);not null"`
	Position      int       `gorm:"not null"`
}

// TableName specifies the table name for the Entry model.
func (Entry) TableName() string {
	return "ledger_entries"
}
