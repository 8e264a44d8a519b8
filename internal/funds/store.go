package funds

import "context"

// AccountFilter restricts ListAccounts results.
type AccountFilter struct {
	Kind       AccountKind
	Currency   string
	InvestorID string
	Active     *bool
	Limit      int
	Offset     int
}

// AccountStore is the durable store for accounts. Get returns a fault.NotFound
// error for unknown ids.
type AccountStore interface {
	Insert(ctx context.Context, a *Account) error
	Get(ctx context.Context, id string) (*Account, error)
	Update(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f AccountFilter) ([]*Account, error)
}

// MovementStore is the durable store for fund movements.
type MovementStore interface {
	Insert(ctx context.Context, m *FundMovement) error
	Get(ctx context.Context, id string) (*FundMovement, error)
	Delete(ctx context.Context, id string) error
	ListByAccount(ctx context.Context, accountID string) ([]*FundMovement, error)
	ListByExchangeID(ctx context.Context, exchangeID string) ([]*FundMovement, error)
	CountByAccount(ctx context.Context, accountID string) (int, error)
}
