package ledger

import (
	"context"

	domain "github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/google/uuid"
)

// GetAccount returns a point-in-time snapshot of the account.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var acc *domain.Account
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		accounts, err := uow.AccountStore()
		if err != nil {
			return err
		}
		acc, err = accounts.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// HistoryPage is one chronological page of an account's transaction history.
type HistoryPage struct {
	Transactions  []*domain.Transaction
	NextPageToken string
}

// GetTransactionHistory returns a page of the account's transactions in log
// order. An empty page token starts from the beginning; pageSize is clamped
// to the configured maximum, and zero selects the default.
func (s *Service) GetTransactionHistory(ctx context.Context, accountID uuid.UUID,
	pageToken string, pageSize int) (*HistoryPage, error) {
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}
	var page HistoryPage
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		accounts, err := uow.AccountStore()
		if err != nil {
			return err
		}
		if _, err := accounts.Get(ctx, accountID); err != nil {
			return err
		}
		log, err := uow.TransactionLog()
		if err != nil {
			return err
		}
		page.Transactions, page.NextPageToken, err = log.ListByAccount(
			ctx, accountID, pageToken, pageSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}
