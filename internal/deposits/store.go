package deposits

import "context"

// DepositFilter restricts ListDeposits results.
type DepositFilter struct {
	State      DepositState
	Currency   string
	InvestorID string
}

// DepositStore is the durable store for deposits.
type DepositStore interface {
	Insert(ctx context.Context, d *Deposit) error
	Get(ctx context.Context, id string) (*Deposit, error)
	Update(ctx context.Context, d *Deposit) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f DepositFilter) ([]*Deposit, error)
}

// DepositMovementStore is the durable store for deposit movements.
type DepositMovementStore interface {
	Insert(ctx context.Context, m *DepositMovement) error
	Delete(ctx context.Context, id string) error
	ListByDeposit(ctx context.Context, depositID string) ([]*DepositMovement, error)
}

// ScheduleStore is the durable store for payment schedule entries.
type ScheduleStore interface {
	Insert(ctx context.Context, e *ScheduleEntry) error
	Get(ctx context.Context, id string) (*ScheduleEntry, error)
	Update(ctx context.Context, e *ScheduleEntry) error
	Delete(ctx context.Context, id string) error
	ListByDeposit(ctx context.Context, depositID string) ([]*ScheduleEntry, error)
}
