package funds

import (
	"context"
	"sync"

	"github.com/example/treasury-core/internal/fault"
)

// MemoryAccountStore is an in-memory AccountStore for tests and embedded
// setups. UpdateHook lets tests inject store failures to exercise
// compensation paths.
type MemoryAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	order    []string

	UpdateHook func(*Account) error
}

// NewMemoryAccountStore creates an empty in-memory account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]*Account)}
}

func (s *MemoryAccountStore) Insert(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return fault.Validationf("account %s already exists", a.ID)
	}
	cp := *a
	s.accounts[a.ID] = &cp
	s.order = append(s.order, a.ID)
	return nil
}

func (s *MemoryAccountStore) Get(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fault.NotFoundf("account %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryAccountStore) Update(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateHook != nil {
		if err := s.UpdateHook(a); err != nil {
			return err
		}
	}
	if _, ok := s.accounts[a.ID]; !ok {
		return fault.NotFoundf("account %s not found", a.ID)
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *MemoryAccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return fault.NotFoundf("account %s not found", id)
	}
	delete(s.accounts, id)
	for i, aid := range s.order {
		if aid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryAccountStore) List(_ context.Context, f AccountFilter) ([]*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Account
	skipped := 0
	for _, id := range s.order {
		a := s.accounts[id]
		if f.Kind != "" && a.Kind != f.Kind {
			continue
		}
		if f.Currency != "" && a.Currency != f.Currency {
			continue
		}
		if f.InvestorID != "" && a.InvestorID != f.InvestorID {
			continue
		}
		if f.Active != nil && a.Active != *f.Active {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		cp := *a
		out = append(out, &cp)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// MemoryMovementStore is an in-memory MovementStore. InsertHook and
// DeleteHook let tests inject failures.
type MemoryMovementStore struct {
	mu        sync.Mutex
	movements map[string]*FundMovement
	order     []string

	InsertHook func(*FundMovement) error
	DeleteHook func(id string) error
}

// NewMemoryMovementStore creates an empty in-memory movement store.
func NewMemoryMovementStore() *MemoryMovementStore {
	return &MemoryMovementStore{movements: make(map[string]*FundMovement)}
}

func (s *MemoryMovementStore) Insert(_ context.Context, m *FundMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InsertHook != nil {
		if err := s.InsertHook(m); err != nil {
			return err
		}
	}
	if _, ok := s.movements[m.ID]; ok {
		return fault.Validationf("movement %s already exists", m.ID)
	}
	cp := *m
	s.movements[m.ID] = &cp
	s.order = append(s.order, m.ID)
	return nil
}

func (s *MemoryMovementStore) Get(_ context.Context, id string) (*FundMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.movements[id]
	if !ok {
		return nil, fault.NotFoundf("movement %s not found", id)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryMovementStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DeleteHook != nil {
		if err := s.DeleteHook(id); err != nil {
			return err
		}
	}
	if _, ok := s.movements[id]; !ok {
		return fault.NotFoundf("movement %s not found", id)
	}
	delete(s.movements, id)
	for i, mid := range s.order {
		if mid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryMovementStore) ListByAccount(_ context.Context, accountID string) ([]*FundMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*FundMovement
	for i := len(s.order) - 1; i >= 0; i-- {
		m := s.movements[s.order[i]]
		if m.SourceAccountID == accountID || m.DestAccountID == accountID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryMovementStore) ListByExchangeID(_ context.Context, exchangeID string) ([]*FundMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*FundMovement
	for _, id := range s.order {
		m := s.movements[id]
		if m.ExchangeID == exchangeID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryMovementStore) CountByAccount(_ context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.movements {
		if m.SourceAccountID == accountID || m.DestAccountID == accountID {
			count++
		}
	}
	return count, nil
}
