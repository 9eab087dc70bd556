package disaster

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	disasters map[domain.DisasterID]Disaster
	escrows   map[uuid.UUID]OrgEscrow
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		disasters: make(map[domain.DisasterID]Disaster),
		escrows:   make(map[uuid.UUID]OrgEscrow),
	}
}

func (s *InMemoryStore) CreateDisaster(_ context.Context, d Disaster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.disasters[d.ID]; ok {
		return fmt.Errorf("disaster %s: %w", d.ID, sentinel.ErrConflict)
	}
	s.disasters[d.ID] = d
	return nil
}

func (s *InMemoryStore) GetDisaster(_ context.Context, id domain.DisasterID) (Disaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.disasters[id]
	if !ok {
		return Disaster{}, fmt.Errorf("disaster %s: %w", id, sentinel.ErrNotFound)
	}
	return d, nil
}

func (s *InMemoryStore) ListDisasters(_ context.Context) ([]Disaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Disaster, 0, len(s.disasters))
	for _, d := range s.disasters {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CompleteDisaster(_ context.Context, id domain.DisasterID, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disasters[id]
	if !ok {
		return fmt.Errorf("disaster %s: %w", id, sentinel.ErrNotFound)
	}
	if d.Status != StatusActive {
		return fmt.Errorf("disaster %s is %s, not active: %w", id, d.Status, sentinel.ErrInvalidState)
	}
	d.Status = StatusCompleted
	d.CompletedAt = &completedAt
	s.disasters[id] = d
	return nil
}

func (s *InMemoryStore) CreateOrgEscrow(_ context.Context, e OrgEscrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.escrows[e.ID]; ok {
		return fmt.Errorf("org escrow %s: %w", e.ID, sentinel.ErrConflict)
	}
	s.escrows[e.ID] = e
	return nil
}

func (s *InMemoryStore) ListEscrowsByDisaster(_ context.Context, id domain.DisasterID) ([]OrgEscrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectEscrows(func(e OrgEscrow) bool { return e.DisasterID == id }), nil
}

func (s *InMemoryStore) ListLockedEscrows(_ context.Context) ([]OrgEscrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectEscrows(func(e OrgEscrow) bool { return e.Status == EscrowStatusLocked }), nil
}

func (s *InMemoryStore) FinishOrgEscrow(_ context.Context, id uuid.UUID, finishTxHash domain.TxHash, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[id]
	if !ok {
		return fmt.Errorf("org escrow %s: %w", id, sentinel.ErrNotFound)
	}
	if e.Status != EscrowStatusLocked {
		return fmt.Errorf("org escrow %s is %s, not locked: %w", id, e.Status, sentinel.ErrInvalidState)
	}
	e.Status = EscrowStatusFinished
	e.FinishTxHash = finishTxHash
	e.FinishedAt = &finishedAt
	s.escrows[id] = e
	return nil
}

func (s *InMemoryStore) collectEscrows(keep func(OrgEscrow) bool) []OrgEscrow {
	var out []OrgEscrow
	for _, e := range s.escrows {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrgID < out[j].OrgID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
