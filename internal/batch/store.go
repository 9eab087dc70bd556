package batch

import (
	"context"
	"time"

	"reliefpool/pkg/domain"
)

// Store persists batches. Create returns sentinel.ErrConflict on a duplicate
// batch ID, Get returns sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, b Batch) error
	Get(ctx context.Context, id domain.BatchID) (Batch, error)
	// List returns all batches, newest first.
	List(ctx context.Context) ([]Batch, error)
	ListByStatus(ctx context.Context, status Status) ([]Batch, error)
	// ListFinishedBefore returns batches whose escrow released into the
	// reserve at or before the cutoff.
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]Batch, error)
	// MarkLocked records the validated escrow and moves pending to locked.
	MarkLocked(ctx context.Context, id domain.BatchID, escrowTxHash domain.TxHash, sequence uint32) error
	// MarkFinished records the escrow release and moves locked to finished.
	MarkFinished(ctx context.Context, id domain.BatchID, finishTxHash domain.TxHash, finishedAt time.Time) error
	// Delete removes a pending batch whose escrow creation failed.
	Delete(ctx context.Context, id domain.BatchID) error
}
