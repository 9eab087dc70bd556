package organization

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	orgs   map[domain.OrgID]Organization
	nextID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{orgs: make(map[domain.OrgID]Organization)}
}

func (s *InMemoryStore) Create(_ context.Context, org Organization) (Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orgs {
		if existing.Name == org.Name || existing.WalletAddress == org.WalletAddress {
			return Organization{}, fmt.Errorf("organization %q: %w", org.Name, sentinel.ErrConflict)
		}
	}
	s.nextID++
	org.ID = domain.OrgID(s.nextID)
	s.orgs[org.ID] = org
	return org, nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id domain.OrgID) (Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return Organization{}, fmt.Errorf("organization %d: %w", id, sentinel.ErrNotFound)
	}
	return org, nil
}

func (s *InMemoryStore) GetByName(_ context.Context, name string) (Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, org := range s.orgs {
		if org.Name == name {
			return org, nil
		}
	}
	return Organization{}, fmt.Errorf("organization %q: %w", name, sentinel.ErrNotFound)
}

func (s *InMemoryStore) List(_ context.Context) ([]Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(Organization) bool { return true }), nil
}

func (s *InMemoryStore) ListByCauses(_ context.Context, causes []domain.CauseType) ([]Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[domain.CauseType]bool, len(causes))
	for _, c := range causes {
		wanted[c] = true
	}
	return s.collect(func(org Organization) bool { return wanted[org.CauseType] }), nil
}

func (s *InMemoryStore) AddReceived(_ context.Context, id domain.OrgID, currency domain.Currency, amount domain.Drops) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return fmt.Errorf("organization %d: %w", id, sentinel.ErrNotFound)
	}
	if currency == domain.CurrencyRLUSD {
		org.TotalRLUSDReceived += amount
	} else {
		org.TotalReceived += amount
	}
	s.orgs[id] = org
	return nil
}

func (s *InMemoryStore) collect(keep func(Organization) bool) []Organization {
	var out []Organization
	for _, org := range s.orgs {
		if keep(org) {
			out = append(out, org)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
