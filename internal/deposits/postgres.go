package deposits

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

// PostgresDepositStore is the durable DepositStore backed by PostgreSQL.
type PostgresDepositStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresDepositStore creates a PostgreSQL deposit store.
func NewPostgresDepositStore(pool *pgxpool.Pool) *PostgresDepositStore {
	return &PostgresDepositStore{Pool: pool}
}

const depositColumns = `
	SELECT id, name, institution, currency, original_principal, principal, annual_rate_pct, interest_method, payment_frequency, disposition, start_date, maturity_date, term_days, funding_account_id, payout_account_id, investor_id, auto_renew, observations, state, created_at, created_by
	FROM deposits`

func (s *PostgresDepositStore) Insert(ctx context.Context, d *Deposit) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		_, err := s.Pool.Exec(queryCtx, `
			INSERT INTO deposits (id, name, institution, currency, original_principal, principal, annual_rate_pct, interest_method, payment_frequency, disposition, start_date, maturity_date, term_days, funding_account_id, payout_account_id, investor_id, auto_renew, observations, state, created_at, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		`, d.ID, d.Name, d.Institution, d.Currency, d.OriginalPrincipal.String(), d.Principal.String(),
			d.AnnualRatePct.String(), d.Method, d.Frequency, d.Disposition, d.StartDate,
			d.MaturityDate, d.TermDays, d.FundingAccountID, d.PayoutAccountID, d.InvestorID,
			d.AutoRenew, d.Observations, d.State, d.CreatedAt, d.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to insert deposit: %w", err)
		}
		return nil
	})
}

func (s *PostgresDepositStore) Get(ctx context.Context, id string) (*Deposit, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.Pool.QueryRow(queryCtx, depositColumns+` WHERE id = $1`, id)
	deposit, err := scanDeposit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("deposit %s not found", id)
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return deposit, nil
}

func (s *PostgresDepositStore) Update(ctx context.Context, d *Deposit) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		tag, err := s.Pool.Exec(queryCtx, `
			UPDATE deposits
			SET principal = $2, state = $3, payout_account_id = $4
			WHERE id = $1
		`, d.ID, d.Principal.String(), d.State, d.PayoutAccountID)
		if err != nil {
			return fmt.Errorf("failed to update deposit: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fault.NotFoundf("deposit %s not found", d.ID)
		}
		return nil
	})
}

func (s *PostgresDepositStore) Delete(ctx context.Context, id string) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.Pool.Exec(queryCtx, `DELETE FROM deposits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deposit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFoundf("deposit %s not found", id)
	}
	return nil
}

func (s *PostgresDepositStore) List(ctx context.Context, f DepositFilter) ([]*Deposit, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := depositColumns + ` WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if f.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argCount)
		args = append(args, f.State)
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
	}

	query += " ORDER BY start_date DESC"

	rows, err := s.Pool.Query(queryCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

func scanDeposit(row pgx.Row) (*Deposit, error) {
	var d Deposit
	var original, principal, rate string
	if err := row.Scan(&d.ID, &d.Name, &d.Institution, &d.Currency, &original, &principal,
		&rate, &d.Method, &d.Frequency, &d.Disposition, &d.StartDate, &d.MaturityDate,
		&d.TermDays, &d.FundingAccountID, &d.PayoutAccountID, &d.InvestorID, &d.AutoRenew,
		&d.Observations, &d.State, &d.CreatedAt, &d.CreatedBy); err != nil {
		return nil, err
	}
	var err error
	if d.OriginalPrincipal, err = decimal.NewFromString(original); err != nil {
		return nil, fmt.Errorf("invalid original principal %q: %w", original, err)
	}
	if d.Principal, err = decimal.NewFromString(principal); err != nil {
		return nil, fmt.Errorf("invalid principal %q: %w", principal, err)
	}
	if d.AnnualRatePct, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("invalid annual rate %q: %w", rate, err)
	}
	return &d, nil
}

// PostgresDepositMovementStore is the durable DepositMovementStore backed by
// PostgreSQL.
type PostgresDepositMovementStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresDepositMovementStore creates a PostgreSQL deposit movement store.
func NewPostgresDepositMovementStore(pool *pgxpool.Pool) *PostgresDepositMovementStore {
	return &PostgresDepositMovementStore{Pool: pool}
}

func (s *PostgresDepositMovementStore) Insert(ctx context.Context, m *DepositMovement) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		_, err := s.Pool.Exec(queryCtx, `
			INSERT INTO deposit_movements (id, deposit_id, kind, amount, principal_before, principal_after, date, description, fund_movement_id, created_at, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, m.ID, m.DepositID, m.Kind, m.Amount.String(), m.PrincipalBefore.String(),
			m.PrincipalAfter.String(), m.Date, m.Description, m.FundMovementID,
			m.CreatedAt, m.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to insert deposit movement: %w", err)
		}
		return nil
	})
}

func (s *PostgresDepositMovementStore) Delete(ctx context.Context, id string) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.Pool.Exec(queryCtx, `DELETE FROM deposit_movements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deposit movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFoundf("movement %s not found", id)
	}
	return nil
}

func (s *PostgresDepositMovementStore) ListByDeposit(ctx context.Context, depositID string) ([]*DepositMovement, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(queryCtx, `
		SELECT id, deposit_id, kind, amount, principal_before, principal_after, date, description, fund_movement_id, created_at, created_by
		FROM deposit_movements
		WHERE deposit_id = $1
		ORDER BY date DESC, created_at DESC
	`, depositID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deposit movements: %w", err)
	}
	defer rows.Close()

	var movements []*DepositMovement
	for rows.Next() {
		var m DepositMovement
		var amount, before, after string
		if err := rows.Scan(&m.ID, &m.DepositID, &m.Kind, &amount, &before, &after,
			&m.Date, &m.Description, &m.FundMovementID, &m.CreatedAt, &m.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan deposit movement: %w", err)
		}
		if m.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
		}
		if m.PrincipalBefore, err = decimal.NewFromString(before); err != nil {
			return nil, fmt.Errorf("invalid principal before %q: %w", before, err)
		}
		if m.PrincipalAfter, err = decimal.NewFromString(after); err != nil {
			return nil, fmt.Errorf("invalid principal after %q: %w", after, err)
		}
		movements = append(movements, &m)
	}
	return movements, rows.Err()
}

// PostgresScheduleStore is the durable ScheduleStore backed by PostgreSQL.
type PostgresScheduleStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresScheduleStore creates a PostgreSQL schedule store.
func NewPostgresScheduleStore(pool *pgxpool.Pool) *PostgresScheduleStore {
	return &PostgresScheduleStore{Pool: pool}
}

const entryColumns = `
	SELECT id, deposit_id, seq, date, estimated_interest, state, paid_interest, settled_at
	FROM payment_schedule`

func (s *PostgresScheduleStore) Insert(ctx context.Context, e *ScheduleEntry) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		_, err := s.Pool.Exec(queryCtx, `
			INSERT INTO payment_schedule (id, deposit_id, seq, date, estimated_interest, state, paid_interest, settled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, e.ID, e.DepositID, e.Seq, e.Date, e.EstimatedInterest.String(), e.State,
			e.PaidInterest.String(), e.SettledAt)
		if err != nil {
			return fmt.Errorf("failed to insert schedule entry: %w", err)
		}
		return nil
	})
}

func (s *PostgresScheduleStore) Get(ctx context.Context, id string) (*ScheduleEntry, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.Pool.QueryRow(queryCtx, entryColumns+` WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("entry %s not found", id)
		}
		return nil, fmt.Errorf("failed to get schedule entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresScheduleStore) Update(ctx context.Context, e *ScheduleEntry) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		tag, err := s.Pool.Exec(queryCtx, `
			UPDATE payment_schedule
			SET state = $2, paid_interest = $3, settled_at = $4
			WHERE id = $1
		`, e.ID, e.State, e.PaidInterest.String(), e.SettledAt)
		if err != nil {
			return fmt.Errorf("failed to update schedule entry: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fault.NotFoundf("entry %s not found", e.ID)
		}
		return nil
	})
}

func (s *PostgresScheduleStore) Delete(ctx context.Context, id string) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.Pool.Exec(queryCtx, `DELETE FROM payment_schedule WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFoundf("entry %s not found", id)
	}
	return nil
}

func (s *PostgresScheduleStore) ListByDeposit(ctx context.Context, depositID string) ([]*ScheduleEntry, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(queryCtx, entryColumns+` WHERE deposit_id = $1 ORDER BY seq`, depositID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule entries: %w", err)
	}
	defer rows.Close()

	var entries []*ScheduleEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*ScheduleEntry, error) {
	var e ScheduleEntry
	var estimated, paid string
	if err := row.Scan(&e.ID, &e.DepositID, &e.Seq, &e.Date, &estimated, &e.State, &paid, &e.SettledAt); err != nil {
		return nil, err
	}
	var err error
	if e.EstimatedInterest, err = decimal.NewFromString(estimated); err != nil {
		return nil, fmt.Errorf("invalid estimated interest %q: %w", estimated, err)
	}
	if e.PaidInterest, err = decimal.NewFromString(paid); err != nil {
		return nil, fmt.Errorf("invalid paid interest %q: %w", paid, err)
	}
	return &e, nil
}
