package donation

import (
	"context"

	"reliefpool/pkg/domain"
)

// Store persists donations. Create returns sentinel.ErrConflict when the
// payment hash was already recorded, Get* return sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, d Donation) error
	GetByTxHash(ctx context.Context, hash domain.TxHash) (Donation, error)
	ListByDonor(ctx context.Context, donor domain.Address) ([]Donation, error)
	// ListPending returns confirmed donations not yet swept into a batch,
	// oldest first.
	ListPending(ctx context.Context) ([]Donation, error)
	ListByBatch(ctx context.Context, batchID domain.BatchID) ([]Donation, error)
	// AssignBatch stamps the given donations with a batch and marks them
	// locked.
	AssignBatch(ctx context.Context, ids []domain.DonationID, batchID domain.BatchID) error
}
