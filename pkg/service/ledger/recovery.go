package ledger

import (
	"context"
	"time"

	"github.com/amirasaad/ledger/pkg/repository"
)

// RecoverPending resolves pending reservations older than the configured
// staleness window and returns how many it resolved.
//
// Both shipped backends commit the reservation, the balance swaps and the
// final status as one atomic unit, so a persisted pending record can only be
// a reservation whose writer died before commit: no balance was applied. The
// recovery pass marks such records failed, auditable under their original
// key; it never discards them.
func (s *Service) RecoverPending(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.staleAfter)
	resolved := 0
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		log, err := uow.TransactionLog()
		if err != nil {
			return err
		}
		stale, err := log.ListPending(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, tx := range stale {
			if err := log.MarkFailed(ctx, tx.ID, staleReservationReason); err != nil {
				return err
			}
			s.logger.Warn("resolved stale pending reservation",
				"transaction_id", tx.ID,
				"idempotency_key", tx.IdempotencyKey,
				"created_at", tx.CreatedAt)
			resolved++
		}
		return nil
	})
	if err != nil {
		return resolved, err
	}
	return resolved, nil
}
