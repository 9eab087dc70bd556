package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	batches map[domain.BatchID]Batch
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{batches: make(map[domain.BatchID]Batch)}
}

func (s *InMemoryStore) Create(_ context.Context, b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[b.ID]; ok {
		return fmt.Errorf("batch %s: %w", b.ID, sentinel.ErrConflict)
	}
	s.batches[b.ID] = b
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.BatchID) (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return Batch{}, fmt.Errorf("batch %s: %w", id, sentinel.ErrNotFound)
	}
	return b, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(Batch) bool { return true }), nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status Status) ([]Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(b Batch) bool { return b.Status == status }), nil
}

func (s *InMemoryStore) ListFinishedBefore(_ context.Context, cutoff time.Time) ([]Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(b Batch) bool {
		return b.Status == StatusFinished && b.FinishedAt != nil && !b.FinishedAt.After(cutoff)
	}), nil
}

func (s *InMemoryStore) MarkLocked(_ context.Context, id domain.BatchID, escrowTxHash domain.TxHash, sequence uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("batch %s: %w", id, sentinel.ErrNotFound)
	}
	if b.Status != StatusPending {
		return fmt.Errorf("batch %s is %s, not pending: %w", id, b.Status, sentinel.ErrInvalidState)
	}
	b.Status = StatusLocked
	b.EscrowTxHash = escrowTxHash
	b.Sequence = sequence
	s.batches[id] = b
	return nil
}

func (s *InMemoryStore) MarkFinished(_ context.Context, id domain.BatchID, finishTxHash domain.TxHash, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("batch %s: %w", id, sentinel.ErrNotFound)
	}
	if b.Status != StatusLocked {
		return fmt.Errorf("batch %s is %s, not locked: %w", id, b.Status, sentinel.ErrInvalidState)
	}
	b.Status = StatusFinished
	b.FinishTxHash = finishTxHash
	b.FinishedAt = &finishedAt
	s.batches[id] = b
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.BatchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, id)
	return nil
}

func (s *InMemoryStore) collect(keep func(Batch) bool) []Batch {
	var out []Batch
	for _, b := range s.batches {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
