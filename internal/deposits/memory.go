package deposits

import (
	"context"
	"sort"
	"sync"

	"github.com/example/treasury-core/internal/fault"
)

// MemoryDepositStore is an in-memory DepositStore for tests and embedded
// setups. UpdateHook lets tests inject store failures to exercise
// compensation paths.
type MemoryDepositStore struct {
	mu       sync.Mutex
	deposits map[string]*Deposit
	order    []string

	UpdateHook func(*Deposit) error
}

// NewMemoryDepositStore creates an empty in-memory deposit store.
func NewMemoryDepositStore() *MemoryDepositStore {
	return &MemoryDepositStore{deposits: make(map[string]*Deposit)}
}

func (s *MemoryDepositStore) Insert(_ context.Context, d *Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deposits[d.ID]; ok {
		return fault.Validationf("deposit %s already exists", d.ID)
	}
	cp := *d
	s.deposits[d.ID] = &cp
	s.order = append(s.order, d.ID)
	return nil
}

func (s *MemoryDepositStore) Get(_ context.Context, id string) (*Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deposits[id]
	if !ok {
		return nil, fault.NotFoundf("deposit %s not found", id)
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryDepositStore) Update(_ context.Context, d *Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateHook != nil {
		if err := s.UpdateHook(d); err != nil {
			return err
		}
	}
	if _, ok := s.deposits[d.ID]; !ok {
		return fault.NotFoundf("deposit %s not found", d.ID)
	}
	cp := *d
	s.deposits[d.ID] = &cp
	return nil
}

func (s *MemoryDepositStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deposits[id]; !ok {
		return fault.NotFoundf("deposit %s not found", id)
	}
	delete(s.deposits, id)
	for i, did := range s.order {
		if did == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryDepositStore) List(_ context.Context, f DepositFilter) ([]*Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Deposit
	for _, id := range s.order {
		d := s.deposits[id]
		if f.State != "" && d.State != f.State {
			continue
		}
		if f.Currency != "" && d.Currency != f.Currency {
			continue
		}
		if f.InvestorID != "" && d.InvestorID != f.InvestorID {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

// MemoryDepositMovementStore is an in-memory DepositMovementStore. InsertHook
// lets tests inject failures.
type MemoryDepositMovementStore struct {
	mu        sync.Mutex
	movements map[string]*DepositMovement
	order     []string

	InsertHook func(*DepositMovement) error
}

// NewMemoryDepositMovementStore creates an empty in-memory movement store.
func NewMemoryDepositMovementStore() *MemoryDepositMovementStore {
	return &MemoryDepositMovementStore{movements: make(map[string]*DepositMovement)}
}

func (s *MemoryDepositMovementStore) Insert(_ context.Context, m *DepositMovement) error {
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

func (s *MemoryDepositMovementStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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

func (s *MemoryDepositMovementStore) ListByDeposit(_ context.Context, depositID string) ([]*DepositMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*DepositMovement
	for i := len(s.order) - 1; i >= 0; i-- {
		m := s.movements[s.order[i]]
		if m.DepositID == depositID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MemoryScheduleStore is an in-memory ScheduleStore. InsertHook and
// UpdateHook let tests inject failures.
type MemoryScheduleStore struct {
	mu      sync.Mutex
	entries map[string]*ScheduleEntry

	InsertHook func(*ScheduleEntry) error
	UpdateHook func(*ScheduleEntry) error
}

// NewMemoryScheduleStore creates an empty in-memory schedule store.
func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{entries: make(map[string]*ScheduleEntry)}
}

func (s *MemoryScheduleStore) Insert(_ context.Context, e *ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InsertHook != nil {
		if err := s.InsertHook(e); err != nil {
			return err
		}
	}
	if _, ok := s.entries[e.ID]; ok {
		return fault.Validationf("entry %s already exists", e.ID)
	}
	s.entries[e.ID] = copyEntry(e)
	return nil
}

func (s *MemoryScheduleStore) Get(_ context.Context, id string) (*ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, fault.NotFoundf("entry %s not found", id)
	}
	return copyEntry(e), nil
}

func (s *MemoryScheduleStore) Update(_ context.Context, e *ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateHook != nil {
		if err := s.UpdateHook(e); err != nil {
			return err
		}
	}
	if _, ok := s.entries[e.ID]; !ok {
		return fault.NotFoundf("entry %s not found", e.ID)
	}
	s.entries[e.ID] = copyEntry(e)
	return nil
}

func (s *MemoryScheduleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fault.NotFoundf("entry %s not found", id)
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryScheduleStore) ListByDeposit(_ context.Context, depositID string) ([]*ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ScheduleEntry
	for _, e := range s.entries {
		if e.DepositID == depositID {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func copyEntry(e *ScheduleEntry) *ScheduleEntry {
	cp := *e
	if e.SettledAt != nil {
		t := *e.SettledAt
		cp.SettledAt = &t
	}
	return &cp
}
