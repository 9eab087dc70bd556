package batch

import (
	"context"
	"errors"

	"reliefpool/internal/donation"
	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

// DonorShare is one donor's contribution to a batch.
type DonorShare struct {
	Address domain.Address
	Amount  domain.Drops
	// Pct is the donor's share of the batch total, in percent.
	Pct float64
}

// Detail is a batch with its swept donations grouped per donor.
type Detail struct {
	Batch  Batch
	Donors []DonorShare
}

// Service answers read queries over batches. Writes belong to the Manager.
type Service struct {
	batches   Store
	donations donation.Store
}

func NewService(batches Store, donations donation.Store) *Service {
	return &Service{batches: batches, donations: donations}
}

// List returns all batches, newest first.
func (s *Service) List(ctx context.Context) ([]Batch, error) {
	bs, err := s.batches.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list batches")
	}
	return bs, nil
}

// Get returns one batch with the per-donor breakdown. Donors appear in order
// of first donation; percentages are of the batch total.
func (s *Service) Get(ctx context.Context, id domain.BatchID) (Detail, error) {
	b, err := s.batches.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Detail{}, dErrors.Wrap(err, dErrors.CodeNotFound, "batch not found")
	}
	if err != nil {
		return Detail{}, dErrors.Wrap(err, dErrors.CodeInternal, "load batch")
	}

	ds, err := s.donations.ListByBatch(ctx, id)
	if err != nil {
		return Detail{}, dErrors.Wrap(err, dErrors.CodeInternal, "load batch donations")
	}

	totals := make(map[domain.Address]domain.Drops)
	var order []domain.Address
	for _, d := range ds {
		if _, ok := totals[d.DonorAddress]; !ok {
			order = append(order, d.DonorAddress)
		}
		totals[d.DonorAddress] += d.Amount
	}

	donors := make([]DonorShare, 0, len(order))
	for _, addr := range order {
		share := DonorShare{Address: addr, Amount: totals[addr]}
		if b.TotalAmount > 0 {
			share.Pct = float64(totals[addr]) / float64(b.TotalAmount) * 100
		}
		donors = append(donors, share)
	}
	return Detail{Batch: b, Donors: donors}, nil
}
