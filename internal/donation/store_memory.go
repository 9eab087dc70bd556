package donation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	donations map[domain.DonationID]Donation
	byHash    map[domain.TxHash]domain.DonationID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		donations: make(map[domain.DonationID]Donation),
		byHash:    make(map[domain.TxHash]domain.DonationID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, d Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[d.PaymentTxHash]; ok {
		return fmt.Errorf("donation for tx %s: %w", d.PaymentTxHash, sentinel.ErrConflict)
	}
	s.donations[d.ID] = d
	s.byHash[d.PaymentTxHash] = d.ID
	return nil
}

func (s *InMemoryStore) GetByTxHash(_ context.Context, hash domain.TxHash) (Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[hash]
	if !ok {
		return Donation{}, fmt.Errorf("donation for tx %s: %w", hash, sentinel.ErrNotFound)
	}
	return s.donations[id], nil
}

func (s *InMemoryStore) ListByDonor(_ context.Context, donor domain.Address) ([]Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Donation
	for _, d := range s.donations {
		if d.DonorAddress == donor {
			out = append(out, d)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *InMemoryStore) ListPending(_ context.Context) ([]Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Donation
	for _, d := range s.donations {
		if d.BatchStatus == BatchStatusPending {
			out = append(out, d)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *InMemoryStore) ListByBatch(_ context.Context, batchID domain.BatchID) ([]Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Donation
	for _, d := range s.donations {
		if d.BatchID == batchID {
			out = append(out, d)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *InMemoryStore) AssignBatch(_ context.Context, ids []domain.DonationID, batchID domain.BatchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		d, ok := s.donations[id]
		if !ok {
			return fmt.Errorf("donation %s: %w", id, sentinel.ErrNotFound)
		}
		d.BatchID = batchID
		d.BatchStatus = BatchStatusLocked
		s.donations[id] = d
	}
	return nil
}

func sortByCreated(ds []Donation) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].CreatedAt.Equal(ds[j].CreatedAt) {
			return ds[i].ID.String() < ds[j].ID.String()
		}
		return ds[i].CreatedAt.Before(ds[j].CreatedAt)
	})
}
