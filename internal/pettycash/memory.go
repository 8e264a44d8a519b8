package pettycash

import (
	"context"
	"sync"

	"github.com/example/treasury-core/internal/fault"
)

// MemoryBoxStore is an in-memory BoxStore for tests and embedded setups.
// UpdateHook lets tests inject store failures to exercise compensation paths.
type MemoryBoxStore struct {
	mu    sync.Mutex
	boxes map[string]*CashBox
	order []string

	UpdateHook func(*CashBox) error
}

// NewMemoryBoxStore creates an empty in-memory box store.
func NewMemoryBoxStore() *MemoryBoxStore {
	return &MemoryBoxStore{boxes: make(map[string]*CashBox)}
}

func (s *MemoryBoxStore) Insert(_ context.Context, b *CashBox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boxes[b.ID]; ok {
		return fault.Validationf("box %s already exists", b.ID)
	}
	cp := *b
	s.boxes[b.ID] = &cp
	s.order = append(s.order, b.ID)
	return nil
}

func (s *MemoryBoxStore) Get(_ context.Context, id string) (*CashBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boxes[id]
	if !ok {
		return nil, fault.NotFoundf("box %s not found", id)
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryBoxStore) Update(_ context.Context, b *CashBox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateHook != nil {
		if err := s.UpdateHook(b); err != nil {
			return err
		}
	}
	if _, ok := s.boxes[b.ID]; !ok {
		return fault.NotFoundf("box %s not found", b.ID)
	}
	cp := *b
	s.boxes[b.ID] = &cp
	return nil
}

func (s *MemoryBoxStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boxes[id]; !ok {
		return fault.NotFoundf("box %s not found", id)
	}
	delete(s.boxes, id)
	for i, bid := range s.order {
		if bid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryBoxStore) List(_ context.Context, f BoxFilter) ([]*CashBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*CashBox
	for _, id := range s.order {
		b := s.boxes[id]
		if f.Level != "" && b.Level != f.Level {
			continue
		}
		if f.ParentID != "" && b.ParentID != f.ParentID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.Currency != "" && b.Currency != f.Currency {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

// MemoryCashMovementStore is an in-memory CashMovementStore. InsertHook and
// DeleteHook let tests inject failures.
type MemoryCashMovementStore struct {
	mu        sync.Mutex
	movements map[string]*CashMovement
	order     []string

	InsertHook func(*CashMovement) error
	DeleteHook func(id string) error
}

// NewMemoryCashMovementStore creates an empty in-memory movement store.
func NewMemoryCashMovementStore() *MemoryCashMovementStore {
	return &MemoryCashMovementStore{movements: make(map[string]*CashMovement)}
}

func (s *MemoryCashMovementStore) Insert(_ context.Context, m *CashMovement) error {
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

func (s *MemoryCashMovementStore) Get(_ context.Context, id string) (*CashMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.movements[id]
	if !ok {
		return nil, fault.NotFoundf("movement %s not found", id)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryCashMovementStore) Delete(_ context.Context, id string) error {
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

func (s *MemoryCashMovementStore) ListByBox(_ context.Context, boxID string) ([]*CashMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*CashMovement
	for i := len(s.order) - 1; i >= 0; i-- {
		m := s.movements[s.order[i]]
		if m.BoxID == boxID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryCashMovementStore) ListByExchangeID(_ context.Context, exchangeID string) ([]*CashMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*CashMovement
	for _, id := range s.order {
		m := s.movements[id]
		if m.ExchangeID == exchangeID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryCashMovementStore) ListByReimbursementID(_ context.Context, reimbursementID string) ([]*CashMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*CashMovement
	for _, id := range s.order {
		m := s.movements[id]
		if m.ReimbursementID == reimbursementID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryCashMovementStore) CountByBox(_ context.Context, boxID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.movements {
		if m.BoxID == boxID {
			count++
		}
	}
	return count, nil
}

// MemoryReimbursementStore is an in-memory ReimbursementStore.
type MemoryReimbursementStore struct {
	mu             sync.Mutex
	reimbursements map[string]*Reimbursement
	order          []string

	UpdateHook func(*Reimbursement) error
}

// NewMemoryReimbursementStore creates an empty in-memory reimbursement store.
func NewMemoryReimbursementStore() *MemoryReimbursementStore {
	return &MemoryReimbursementStore{reimbursements: make(map[string]*Reimbursement)}
}

func (s *MemoryReimbursementStore) Insert(_ context.Context, r *Reimbursement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reimbursements[r.ID]; ok {
		return fault.Validationf("reimbursement %s already exists", r.ID)
	}
	s.reimbursements[r.ID] = copyReimbursement(r)
	s.order = append(s.order, r.ID)
	return nil
}

func (s *MemoryReimbursementStore) Get(_ context.Context, id string) (*Reimbursement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reimbursements[id]
	if !ok {
		return nil, fault.NotFoundf("reimbursement %s not found", id)
	}
	return copyReimbursement(r), nil
}

func (s *MemoryReimbursementStore) Update(_ context.Context, r *Reimbursement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateHook != nil {
		if err := s.UpdateHook(r); err != nil {
			return err
		}
	}
	if _, ok := s.reimbursements[r.ID]; !ok {
		return fault.NotFoundf("reimbursement %s not found", r.ID)
	}
	s.reimbursements[r.ID] = copyReimbursement(r)
	return nil
}

func (s *MemoryReimbursementStore) ListByBox(_ context.Context, boxID string) ([]*Reimbursement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Reimbursement
	for i := len(s.order) - 1; i >= 0; i-- {
		r := s.reimbursements[s.order[i]]
		if r.BoxID == boxID {
			out = append(out, copyReimbursement(r))
		}
	}
	return out, nil
}

func copyReimbursement(r *Reimbursement) *Reimbursement {
	cp := *r
	cp.Items = append([]ReimbursementItem(nil), r.Items...)
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

// MemoryClosingStore is an in-memory ClosingStore.
type MemoryClosingStore struct {
	mu       sync.Mutex
	closings []*CashClosing
}

// NewMemoryClosingStore creates an empty in-memory closing store.
func NewMemoryClosingStore() *MemoryClosingStore {
	return &MemoryClosingStore{}
}

func (s *MemoryClosingStore) Insert(_ context.Context, c *CashClosing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.closings = append(s.closings, &cp)
	return nil
}

func (s *MemoryClosingStore) ListByBox(_ context.Context, boxID string) ([]*CashClosing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*CashClosing
	for i := len(s.closings) - 1; i >= 0; i-- {
		if s.closings[i].BoxID == boxID {
			cp := *s.closings[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}
