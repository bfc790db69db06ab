// Package memory provides an in-memory implementation of the ledger storage
// contracts. Commits are serialized under a single mutex and staged on a
// cloned state, so UnitOfWork.Do is truly atomic: either every mutation made
// inside fn becomes visible, or none does. Intended for tests and local use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/google/uuid"
)

type state struct {
	accounts map[uuid.UUID]ledger.Account
	txs      map[uuid.UUID]ledger.Transaction
	byKey    map[string]uuid.UUID
	order    []uuid.UUID
	nextSeq  uint64
}

func newState() *state {
	return &state{
		accounts: make(map[uuid.UUID]ledger.Account),
		txs:      make(map[uuid.UUID]ledger.Transaction),
		byKey:    make(map[string]uuid.UUID),
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts: make(map[uuid.UUID]ledger.Account, len(s.accounts)),
		txs:      make(map[uuid.UUID]ledger.Transaction, len(s.txs)),
		byKey:    make(map[string]uuid.UUID, len(s.byKey)),
		order:    append([]uuid.UUID(nil), s.order...),
		nextSeq:  s.nextSeq,
	}
	for id, a := range s.accounts {
		c.accounts[id] = a
	}
	for id, t := range s.txs {
		t.Entries = append([]ledger.Entry(nil), t.Entries...)
		c.txs[id] = t
	}
	for k, id := range s.byKey {
		c.byKey[k] = id
	}
	return c
}

// UoW is an in-memory repository.UnitOfWork. The zero value is not usable;
// construct with NewUoW.
type UoW struct {
	mu sync.Mutex
	st *state

	// staged is non-nil inside a Do boundary; store operations then act on
	// the staged clone without locking (the mutex is held by Do).
	staged *state
}

// NewUoW creates an empty in-memory unit of work.
func NewUoW() *UoW {
	return &UoW{st: newState()}
}

// Do executes fn against a staged clone of the state and publishes the clone
// only if fn succeeds. Concurrent Do calls serialize on the mutex.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	work := u.st.clone()
	child := &UoW{st: work, staged: work}
	if err := fn(child); err != nil {
		return err
	}
	u.st = work
	return nil
}

// AccountStore returns the account store bound to this unit of work.
func (u *UoW) AccountStore() (repository.AccountStore, error) {
	return &accountStore{u: u}, nil
}

// TransactionLog returns the transaction log bound to this unit of work.
func (u *UoW) TransactionLog() (repository.TransactionLog, error) {
	return &transactionLog{u: u}, nil
}

// with runs op against the current state, locking only outside a Do boundary.
func (u *UoW) with(ctx context.Context, op func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.staged != nil {
		return op(u.staged)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return op(u.st)
}

type accountStore struct {
	u *UoW
}

func (s *accountStore) Get(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var out *ledger.Account
	err := s.u.with(ctx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return ledger.ErrAccountNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (s *accountStore) Create(ctx context.Context, account *ledger.Account) error {
	return s.u.with(ctx, func(st *state) error {
		if _, ok := st.accounts[account.ID]; ok {
			return fmt.Errorf("account %s already exists", account.ID)
		}
		st.accounts[account.ID] = *account
		return nil
	})
}

func (s *accountStore) CompareAndSwap(ctx context.Context, id uuid.UUID,
	expectedVersion uint64, newBalance money.Money) (*ledger.Account, error) {
	var out *ledger.Account
	err := s.u.with(ctx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return ledger.ErrAccountNotFound
		}
		if a.Version != expectedVersion {
			return ledger.ErrVersionConflict
		}
		a.Balance = newBalance
		a.Version++
		a.UpdatedAt = time.Now()
		st.accounts[id] = a
		out = &a
		return nil
	})
	return out, err
}

func (s *accountStore) UpdateStatus(ctx context.Context, id uuid.UUID, status ledger.Status) error {
	return s.u.with(ctx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return ledger.ErrAccountNotFound
		}
		a.Status = status
		a.UpdatedAt = time.Now()
		st.accounts[id] = a
		return nil
	})
}

type transactionLog struct {
	u *UoW
}

func (l *transactionLog) Append(ctx context.Context, tx *ledger.Transaction) error {
	return l.u.with(ctx, func(st *state) error {
		if _, ok := st.byKey[tx.IdempotencyKey]; ok {
			return ledger.ErrDuplicateKey
		}
		st.nextSeq++
		tx.Seq = st.nextSeq
		cp := *tx
		cp.Entries = append([]ledger.Entry(nil), tx.Entries...)
		st.txs[cp.ID] = cp
		st.byKey[cp.IdempotencyKey] = cp.ID
		st.order = append(st.order, cp.ID)
		return nil
	})
}

func (l *transactionLog) LookupByKey(ctx context.Context, idempotencyKey string) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := l.u.with(ctx, func(st *state) error {
		id, ok := st.byKey[idempotencyKey]
		if !ok {
			return ledger.ErrTransactionNotFound
		}
		tx := st.txs[id]
		tx.Entries = append([]ledger.Entry(nil), tx.Entries...)
		out = &tx
		return nil
	})
	return out, err
}

func (l *transactionLog) MarkCommitted(ctx context.Context, id uuid.UUID, entries []ledger.Entry) error {
	return l.u.with(ctx, func(st *state) error {
		tx, ok := st.txs[id]
		if !ok {
			return ledger.ErrTransactionNotFound
		}
		if tx.Status != ledger.TxPending {
			return fmt.Errorf("transaction %s is already %s: %w",
				id, tx.Status, ledger.ErrInconsistent)
		}
		tx.Status = ledger.TxCommitted
		if entries != nil {
			tx.Entries = append([]ledger.Entry(nil), entries...)
		}
		st.txs[id] = tx
		return nil
	})
}

func (l *transactionLog) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return l.u.with(ctx, func(st *state) error {
		tx, ok := st.txs[id]
		if !ok {
			return ledger.ErrTransactionNotFound
		}
		if tx.Status != ledger.TxPending {
			return fmt.Errorf("transaction %s is already %s: %w",
				id, tx.Status, ledger.ErrInconsistent)
		}
		tx.Status = ledger.TxFailed
		tx.FailureReason = reason
		st.txs[id] = tx
		return nil
	})
}

func (l *transactionLog) ListByAccount(ctx context.Context, accountID uuid.UUID,
	pageToken string, pageSize int) ([]*ledger.Transaction, string, error) {
	afterSeq, err := decodePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	var page []*ledger.Transaction
	var next string
	err = l.u.with(ctx, func(st *state) error {
		var matched []ledger.Transaction
		for _, id := range st.order {
			tx := st.txs[id]
			if tx.Seq <= afterSeq {
				continue
			}
			if _, ok := tx.EntryFor(accountID); !ok {
				continue
			}
			matched = append(matched, tx)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].Seq < matched[j].Seq })
		for i := range matched {
			if pageSize > 0 && len(page) == pageSize {
				next = encodePageToken(page[len(page)-1].Seq)
				return nil
			}
			tx := matched[i]
			tx.Entries = append([]ledger.Entry(nil), tx.Entries...)
			page = append(page, &tx)
		}
		return nil
	})
	return page, next, err
}

func (l *transactionLog) ListPending(ctx context.Context, olderThan time.Time) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	err := l.u.with(ctx, func(st *state) error {
		for _, id := range st.order {
			tx := st.txs[id]
			if tx.Status != ledger.TxPending || !tx.CreatedAt.Before(olderThan) {
				continue
			}
			cp := tx
			cp.Entries = append([]ledger.Entry(nil), tx.Entries...)
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
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
