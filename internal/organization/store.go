package organization

import (
	"context"

	"reliefpool/pkg/domain"
)

// Store persists organizations. Create assigns the ID and returns
// sentinel.ErrConflict on a duplicate name or wallet address; Get* return
// sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, org Organization) (Organization, error)
	GetByID(ctx context.Context, id domain.OrgID) (Organization, error)
	GetByName(ctx context.Context, name string) (Organization, error)
	// List returns all organizations ordered by ID.
	List(ctx context.Context) ([]Organization, error)
	// ListByCauses returns organizations serving any of the given causes.
	ListByCauses(ctx context.Context, causes []domain.CauseType) ([]Organization, error)
	// AddReceived bumps the org's received total for the given currency.
	AddReceived(ctx context.Context, id domain.OrgID, currency domain.Currency, amount domain.Drops) error
}
