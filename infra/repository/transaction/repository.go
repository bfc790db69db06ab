// Package transaction implements the TransactionLog contract on GORM/Postgres.
// The log is append-only: rows are inserted pending and finalized exactly
// once; committed and failed rows are never touched again.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirasaad/ledger/infra/repository/model"
	"github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// New creates a transaction log using the provided *gorm.DB session.
func New(db *gorm.DB) *repository { //nolint:revive // unexported-return, matches sibling repositories
	return &repository{db: db}
}

// Append implements repository.TransactionLog. A unique-violation on the
// idempotency key is reported as ledger.ErrDuplicateKey.
func (r *repository) Append(ctx context.Context, tx *ledger.Transaction) error {
	row := mapDomainToModel(tx)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateKey
		}
		return err
	}
	// The sequence is database-assigned; read it back for the caller.
	var seq uint64
	if err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ?", row.ID).Pluck("seq", &seq).Error; err != nil {
		return err
	}
	tx.Seq = seq
	return nil
}

// LookupByKey implements repository.TransactionLog.
func (r *repository) LookupByKey(ctx context.Context, idempotencyKey string) (*ledger.Transaction, error) {
	var row model.Transaction
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&row, "idempotency_key = ?", idempotencyKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, err
	}
	return mapModelToDomain(&row)
}

// MarkCommitted implements repository.TransactionLog.
func (r *repository) MarkCommitted(ctx context.Context, id uuid.UUID, entries []ledger.Entry) error {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, string(ledger.TxPending)).
		Update("status", string(ledger.TxCommitted))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.finalizeConflict(ctx, id)
	}
	for _, e := range entries {
		err := r.db.WithContext(ctx).Model(&model.Entry{}).
			Where("transaction_id = ? AND account_id = ?", id, e.AccountID).
			Update("balance_after", e.BalanceAfter.Amount()).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// MarkFailed implements repository.TransactionLog.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, string(ledger.TxPending)).
		Updates(map[string]any{
			"status":         string(ledger.TxFailed),
			"failure_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.finalizeConflict(ctx, id)
	}
	return nil
}

// finalizeConflict distinguishes a missing record from an attempt to mutate a
// record that is already terminal.
func (r *repository) finalizeConflict(ctx context.Context, id uuid.UUID) error {
	var row model.Transaction
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrTransactionNotFound
		}
		return err
	}
	return fmt.Errorf("transaction %s is already %s: %w",
		id, row.Status, ledger.ErrInconsistent)
}

// ListByAccount implements repository.TransactionLog. The page token is the
// sequence of the last transaction on the previous page.
func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID,
	pageToken string, pageSize int) ([]*ledger.Transaction, string, error) {
	afterSeq, err := decodePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	query := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Distinct("transactions.*").
		Joins("JOIN ledger_entries ON ledger_entries.transaction_id = transactions.id").
		Where("ledger_entries.account_id = ? AND transactions.seq > ?", accountID, afterSeq).
		Order("transactions.seq ASC").
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
	if pageSize > 0 {
		query = query.Limit(pageSize + 1)
	}
	var rows []model.Transaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, "", err
	}
	next := ""
	if pageSize > 0 && len(rows) > pageSize {
		rows = rows[:pageSize]
		next = encodePageToken(rows[len(rows)-1].Seq)
	}
	out := make([]*ledger.Transaction, 0, len(rows))
	for i := range rows {
		tx, err := mapModelToDomain(&rows[i])
		if err != nil {
			return nil, "", err
		}
		out = append(out, tx)
	}
	return out, next, nil
}

// ListPending implements repository.TransactionLog.
func (r *repository) ListPending(ctx context.Context, olderThan time.Time) ([]*ledger.Transaction, error) {
	var rows []model.Transaction
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("status = ? AND created_at < ?", string(ledger.TxPending), olderThan).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*ledger.Transaction, 0, len(rows))
	for i := range rows {
		tx, err := mapModelToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func encodePageToken(seq uint64) string {
	return strconv.FormatUint(seq, 10)
}

func decodePageToken(token string) (uint64, error) {
	if token == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed page token %q", token)
	}
	return seq, nil
}

func mapDomainToModel(tx *ledger.Transaction) model.Transaction {
	row := model.Transaction{
		ID:             tx.ID,
		IdempotencyKey: tx.IdempotencyKey,
		Kind:           string(tx.Kind),
		Status:         string(tx.Status),
		FailureReason:  tx.FailureReason,
		CreatedAt:      tx.CreatedAt,
	}
	for i, e := range tx.Entries {
		row.Entries = append(row.Entries, model.Entry{
			TransactionID: tx.ID,
			AccountID:     e.AccountID,
			Delta:         e.Delta.Amount(),
			BalanceAfter:  e.BalanceAfter.Amount(),
			Currency:      e.Delta.CurrencyCode().String(),
			Position:      i,
		})
	}
	return row
}

func mapModelToDomain(row *model.Transaction) (*ledger.Transaction, error) {
	tx := &ledger.Transaction{
		ID:             row.ID,
		IdempotencyKey: row.IdempotencyKey,
		Kind:           ledger.Kind(row.Kind),
		Status:         ledger.TxStatus(row.Status),
		Seq:            row.Seq,
		FailureReason:  row.FailureReason,
		CreatedAt:      row.CreatedAt,
	}
	for _, e := range row.Entries {
		delta, err := money.New(e.Delta, money.Code(e.Currency))
		if err != nil {
			return nil, err
		}
		after, err := money.New(e.BalanceAfter, money.Code(e.Currency))
		if err != nil {
			return nil, err
		}
		tx.Entries = append(tx.Entries, ledger.Entry{
			AccountID:    e.AccountID,
			Delta:        delta,
			BalanceAfter: after,
		})
	}
	return tx, nil
}
