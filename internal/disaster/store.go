package disaster

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reliefpool/pkg/domain"
)

// Store persists disasters and their org escrows. Create* return
// sentinel.ErrConflict on duplicate IDs, Get* return sentinel.ErrNotFound.
type Store interface {
	CreateDisaster(ctx context.Context, d Disaster) error
	GetDisaster(ctx context.Context, id domain.DisasterID) (Disaster, error)
	// ListDisasters returns all disasters, newest first.
	ListDisasters(ctx context.Context) ([]Disaster, error)
	// CompleteDisaster moves an active disaster to completed.
	CompleteDisaster(ctx context.Context, id domain.DisasterID, completedAt time.Time) error

	CreateOrgEscrow(ctx context.Context, e OrgEscrow) error
	// ListEscrowsByDisaster returns a disaster's escrows in creation order.
	ListEscrowsByDisaster(ctx context.Context, id domain.DisasterID) ([]OrgEscrow, error)
	// ListLockedEscrows returns every still-locked escrow across disasters.
	ListLockedEscrows(ctx context.Context) ([]OrgEscrow, error)
	// FinishOrgEscrow moves a locked escrow to finished.
	FinishOrgEscrow(ctx context.Context, id uuid.UUID, finishTxHash domain.TxHash, finishedAt time.Time) error
}
