// Package ledger implements the transaction-processing engine: it applies
// deposits, withdrawals and transfers against the account store and the
// transaction log with strict correctness guarantees.
//
// Every operation runs inside a UnitOfWork boundary: the idempotency key is
// reserved in the log before any balance moves (write-ahead ordering), the
// balance mutations go through optimistic compare-and-swap, and the log
// record is committed in the same atomic unit. Version conflicts are retried
// up to a bounded attempt count.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/amirasaad/ledger/pkg/config"
	domain "github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/google/uuid"
)

const (
	defaultMaxAttempts = 8
	defaultPageSize    = 50
	defaultMaxPageSize = 500
	defaultStaleAfter  = 5 * time.Minute
)

// Service is the ledger engine. It is the exclusive owner of transaction
// record lifecycles and the only writer of account balances and versions.
type Service struct {
	uow         repository.UnitOfWork
	logger      *slog.Logger
	maxAttempts int
	pageSize    int
	maxPageSize int
	staleAfter  time.Duration
}

// NewService creates a new Service with the provided dependencies.
func NewService(deps config.Deps) *Service {
	s := &Service{
		uow:         deps.Uow,
		logger:      deps.Logger,
		maxAttempts: defaultMaxAttempts,
		pageSize:    defaultPageSize,
		maxPageSize: defaultMaxPageSize,
		staleAfter:  defaultStaleAfter,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if cfg := deps.Config; cfg != nil {
		if cfg.Retry != nil && cfg.Retry.MaxAttempts > 0 {
			s.maxAttempts = cfg.Retry.MaxAttempts
		}
		if cfg.Pagination != nil {
			if cfg.Pagination.DefaultPageSize > 0 {
				s.pageSize = cfg.Pagination.DefaultPageSize
			}
			if cfg.Pagination.MaxPageSize > 0 {
				s.maxPageSize = cfg.Pagination.MaxPageSize
			}
		}
		if cfg.Recovery != nil && cfg.Recovery.StaleAfter > 0 {
			s.staleAfter = cfg.Recovery.StaleAfter
		}
	}
	return s
}

// CreateAccount creates a new account with the given initial balance and status.
func (s *Service) CreateAccount(ctx context.Context, initial money.Money,
	status domain.Status) (*domain.Account, error) {
	acc, err := domain.New().WithBalance(initial).WithStatus(status).Build()
	if err != nil {
		return nil, err
	}
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		accounts, err := uow.AccountStore()
		if err != nil {
			return err
		}
		return accounts.Create(ctx, acc)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account created",
		"account_id", acc.ID, "balance", acc.Balance.String(), "status", acc.Status)
	return acc, nil
}

// SetAccountStatus transitions an account between active, frozen and closed.
func (s *Service) SetAccountStatus(ctx context.Context, id uuid.UUID,
	status domain.Status) error {
	if !status.IsValid() {
		return domain.ErrInvalidStatus
	}
	return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		accounts, err := uow.AccountStore()
		if err != nil {
			return err
		}
		return accounts.UpdateStatus(ctx, id, status)
	})
}

// haltAccount freezes an account after a detected invariant violation so no
// further mutation is applied before manual reconciliation. Best effort; the
// violation itself is never auto-corrected.
func (s *Service) haltAccount(ctx context.Context, id uuid.UUID) {
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		accounts, err := uow.AccountStore()
		if err != nil {
			return err
		}
		return accounts.UpdateStatus(ctx, id, domain.StatusFrozen)
	})
	if err != nil {
		s.logger.Error("failed to freeze account after invariant violation",
			"account_id", id, "error", err)
		return
	}
	s.logger.Error("account frozen pending manual reconciliation", "account_id", id)
}

// verifySwap checks that a compare-and-swap produced exactly previous+delta
// and a non-negative balance. A mismatch is an invariant violation.
func verifySwap(previous, delta, updated money.Money) error {
	expected, err := previous.Add(delta)
	if err != nil {
		return err
	}
	if !expected.Equals(updated) || updated.IsNegative() {
		return domain.ErrInconsistent
	}
	return nil
}
