package funds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/example/treasury-core/internal/fault"
)

const (
	queryTimeout      = 5 * time.Second
	maxSerialRetries  = 3
	serializationCode = "40001"
)

// withSerialRetry runs fn, retrying on PostgreSQL serialization failures.
func withSerialRetry(fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationCode && attempt < maxSerialRetries-1 {
			time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
			continue
		}
		return err
	}
}

// PostgresAccountStore is the durable AccountStore backed by PostgreSQL.
type PostgresAccountStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresAccountStore creates a PostgreSQL account store.
func NewPostgresAccountStore(pool *pgxpool.Pool) *PostgresAccountStore {
	return &PostgresAccountStore{Pool: pool}
}

func (s *PostgresAccountStore) Insert(ctx context.Context, a *Account) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		_, err := s.Pool.Exec(queryCtx, `
			INSERT INTO accounts (id, name, kind, currency, investor_id, cash_box_id, opening_balance, balance, active, created_at, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, a.ID, a.Name, a.Kind, a.Currency, a.InvestorID, a.CashBoxID,
			a.OpeningBalance.String(), a.Balance.String(), a.Active, a.CreatedAt, a.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to insert account: %w", err)
		}
		return nil
	})
}

func (s *PostgresAccountStore) Get(ctx context.Context, id string) (*Account, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.Pool.QueryRow(queryCtx, `
		SELECT id, name, kind, currency, investor_id, cash_box_id, opening_balance, balance, active, created_at, created_by
		FROM accounts
		WHERE id = $1
	`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("account %s not found", id)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (s *PostgresAccountStore) Update(ctx context.Context, a *Account) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		tag, err := s.Pool.Exec(queryCtx, `
			UPDATE accounts
			SET name = $2, cash_box_id = $3, balance = $4, active = $5
			WHERE id = $1
		`, a.ID, a.Name, a.CashBoxID, a.Balance.String(), a.Active)
		if err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fault.NotFoundf("account %s not found", a.ID)
		}
		return nil
	})
}

func (s *PostgresAccountStore) Delete(ctx context.Context, id string) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.Pool.Exec(queryCtx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFoundf("account %s not found", id)
	}
	return nil
}

func (s *PostgresAccountStore) List(ctx context.Context, f AccountFilter) ([]*Account, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, name, kind, currency, investor_id, cash_box_id, opening_balance, balance, active, created_at, created_by
		FROM accounts
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if f.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argCount)
		args = append(args, f.Kind)
		argCount++
	}
	if f.Currency != "" {
		query += fmt.Sprintf(" AND currency = $%d", argCount)
		args = append(args, f.Currency)
		argCount++
	}
	if f.InvestorID != "" {
		query += fmt.Sprintf(" AND investor_id = $%d", argCount)
		args = append(args, f.InvestorID)
		argCount++
	}
	if f.Active != nil {
		query += fmt.Sprintf(" AND active = $%d", argCount)
		args = append(args, *f.Active)
		argCount++
	}

	query += " ORDER BY name"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, f.Limit)
		argCount++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, f.Offset)
	}

	rows, err := s.Pool.Query(queryCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var opening, balance string
	if err := row.Scan(&a.ID, &a.Name, &a.Kind, &a.Currency, &a.InvestorID, &a.CashBoxID,
		&opening, &balance, &a.Active, &a.CreatedAt, &a.CreatedBy); err != nil {
		return nil, err
	}
	var err error
	if a.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return nil, fmt.Errorf("invalid opening balance %q: %w", opening, err)
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", balance, err)
	}
	return &a, nil
}

// PostgresMovementStore is the durable MovementStore backed by PostgreSQL.
type PostgresMovementStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresMovementStore creates a PostgreSQL movement store.
func NewPostgresMovementStore(pool *pgxpool.Pool) *PostgresMovementStore {
	return &PostgresMovementStore{Pool: pool}
}

func (s *PostgresMovementStore) Insert(ctx context.Context, m *FundMovement) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		_, err := s.Pool.Exec(queryCtx, `
			INSERT INTO fund_movements (id, source_account_id, dest_account_id, amount, currency, date, category, description, reference, investor_id, cash_box_id, exchange_id, created_at, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, m.ID, m.SourceAccountID, m.DestAccountID, m.Amount.String(), m.Currency, m.Date,
			m.Category, m.Description, m.Reference, m.InvestorID, m.CashBoxID, m.ExchangeID,
			m.CreatedAt, m.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to insert movement: %w", err)
		}
		return nil
	})
}

func (s *PostgresMovementStore) Get(ctx context.Context, id string) (*FundMovement, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.Pool.QueryRow(queryCtx, movementColumns+` WHERE id = $1`, id)
	movement, err := scanMovement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("movement %s not found", id)
		}
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}
	return movement, nil
}

func (s *PostgresMovementStore) Delete(ctx context.Context, id string) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.Pool.Exec(queryCtx, `DELETE FROM fund_movements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFoundf("movement %s not found", id)
	}
	return nil
}

const movementColumns = `
	SELECT id, source_account_id, dest_account_id, amount, currency, date, category, description, reference, investor_id, cash_box_id, exchange_id, created_at, created_by
	FROM fund_movements`

func (s *PostgresMovementStore) ListByAccount(ctx context.Context, accountID string) ([]*FundMovement, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(queryCtx, movementColumns+`
		WHERE source_account_id = $1 OR dest_account_id = $1
		ORDER BY date DESC, created_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	return collectMovements(rows)
}

func (s *PostgresMovementStore) ListByExchangeID(ctx context.Context, exchangeID string) ([]*FundMovement, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(queryCtx, movementColumns+`
		WHERE exchange_id = $1
		ORDER BY created_at ASC
	`, exchangeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange pair: %w", err)
	}
	defer rows.Close()

	return collectMovements(rows)
}

func (s *PostgresMovementStore) CountByAccount(ctx context.Context, accountID string) (int, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := s.Pool.QueryRow(queryCtx, `
		SELECT COUNT(*) FROM fund_movements
		WHERE source_account_id = $1 OR dest_account_id = $1
	`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count movements: %w", err)
	}
	return count, nil
}

func collectMovements(rows pgx.Rows) ([]*FundMovement, error) {
	var movements []*FundMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func scanMovement(row pgx.Row) (*FundMovement, error) {
	var m FundMovement
	var amount string
	if err := row.Scan(&m.ID, &m.SourceAccountID, &m.DestAccountID, &amount, &m.Currency,
		&m.Date, &m.Category, &m.Description, &m.Reference, &m.InvestorID, &m.CashBoxID,
		&m.ExchangeID, &m.CreatedAt, &m.CreatedBy); err != nil {
		return nil, err
	}
	var err error
	if m.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return &m, nil
}
