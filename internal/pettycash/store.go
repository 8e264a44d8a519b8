package pettycash

import "context"

// BoxFilter restricts ListBoxes results.
type BoxFilter struct {
	Level    BoxLevel
	ParentID string
	Status   BoxStatus
	Currency string
}

// BoxStore is the durable store for cash boxes.
type BoxStore interface {
	Insert(ctx context.Context, b *CashBox) error
	Get(ctx context.Context, id string) (*CashBox, error)
	Update(ctx context.Context, b *CashBox) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f BoxFilter) ([]*CashBox, error)
}

// CashMovementStore is the durable store for cash movements.
type CashMovementStore interface {
	Insert(ctx context.Context, m *CashMovement) error
	Get(ctx context.Context, id string) (*CashMovement, error)
	Delete(ctx context.Context, id string) error
	ListByBox(ctx context.Context, boxID string) ([]*CashMovement, error)
	ListByExchangeID(ctx context.Context, exchangeID string) ([]*CashMovement, error)
	ListByReimbursementID(ctx context.Context, reimbursementID string) ([]*CashMovement, error)
	CountByBox(ctx context.Context, boxID string) (int, error)
}

// ReimbursementStore is the durable store for reimbursement requests.
type ReimbursementStore interface {
	Insert(ctx context.Context, r *Reimbursement) error
	Get(ctx context.Context, id string) (*Reimbursement, error)
	Update(ctx context.Context, r *Reimbursement) error
	ListByBox(ctx context.Context, boxID string) ([]*Reimbursement, error)
}

// ClosingStore is the append-only store for cash closings.
type ClosingStore interface {
	Insert(ctx context.Context, c *CashClosing) error
	ListByBox(ctx context.Context, boxID string) ([]*CashClosing, error)
}
