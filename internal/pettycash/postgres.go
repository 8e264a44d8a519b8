package pettycash

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

// PostgresBoxStore is the durable BoxStore backed by PostgreSQL.
type PostgresBoxStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresBoxStore creates a PostgreSQL box store.
func NewPostgresBoxStore(pool *pgxpool.Pool) *PostgresBoxStore {
	return &PostgresBoxStore{Pool: pool}
}

const boxColumns = `
	SELECT id, name, level, parent_id, funding_account_id, responsible, viewer_id, currency, ceiling, opening_balance, balance, status, created_at, created_by
	FROM cash_boxes`

func (s *PostgresBoxStore) Insert(ctx context.Context, b *CashBox) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		_, err := s.Pool.Exec(queryCtx, `
			INSERT INTO cash_boxes (id, name, level, parent_id, funding_account_id, responsible, viewer_id, currency, ceiling, opening_balance, balance, status, created_at, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, b.ID, b.Name, b.Level, b.ParentID, b.FundingAccountID, b.Responsible, b.ViewerID,
			b.Currency, b.Ceiling.String(), b.OpeningBalance.String(), b.Balance.String(),
			b.Status, b.CreatedAt, b.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to insert box: %w", err)
		}
		return nil
	})
}

func (s *PostgresBoxStore) Get(ctx context.Context, id string) (*CashBox, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.Pool.QueryRow(queryCtx, boxColumns+` WHERE id = $1`, id)
	box, err := scanBox(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("box %s not found", id)
		}
		return nil, fmt.Errorf("failed to get box: %w", err)
	}
	return box, nil
}

func (s *PostgresBoxStore) Update(ctx context.Context, b *CashBox) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		tag, err := s.Pool.Exec(queryCtx, `
			UPDATE cash_boxes
			SET name = $2, funding_account_id = $3, responsible = $4, viewer_id = $5, ceiling = $6, balance = $7, status = $8
			WHERE id = $1
		`, b.ID, b.Name, b.FundingAccountID, b.Responsible, b.ViewerID,
			b.Ceiling.String(), b.Balance.String(), b.Status)
		if err != nil {
			return fmt.Errorf("failed to update box: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fault.NotFoundf("box %s not found", b.ID)
		}
		return nil
	})
}

func (s *PostgresBoxStore) Delete(ctx context.Context, id string) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.Pool.Exec(queryCtx, `DELETE FROM cash_boxes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete box: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFoundf("box %s not found", id)
	}
	return nil
}

func (s *PostgresBoxStore) List(ctx context.Context, f BoxFilter) ([]*CashBox, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := boxColumns + ` WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if f.Level != "" {
		query += fmt.Sprintf(" AND level = $%d", argCount)
		args = append(args, f.Level)
		argCount++
	}
	if f.ParentID != "" {
		query += fmt.Sprintf(" AND parent_id = $%d", argCount)
		args = append(args, f.ParentID)
		argCount++
	}
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, f.Status)
		argCount++
	}
	if f.Currency != "" {
		query += fmt.Sprintf(" AND currency = $%d", argCount)
		args = append(args, f.Currency)
	}

	query += " ORDER BY name"

	rows, err := s.Pool.Query(queryCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query boxes: %w", err)
	}
	defer rows.Close()

	var boxes []*CashBox
	for rows.Next() {
		box, err := scanBox(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan box: %w", err)
		}
		boxes = append(boxes, box)
	}
	return boxes, rows.Err()
}

func scanBox(row pgx.Row) (*CashBox, error) {
	var b CashBox
	var ceiling, opening, balance string
	if err := row.Scan(&b.ID, &b.Name, &b.Level, &b.ParentID, &b.FundingAccountID,
		&b.Responsible, &b.ViewerID, &b.Currency, &ceiling, &opening, &balance,
		&b.Status, &b.CreatedAt, &b.CreatedBy); err != nil {
		return nil, err
	}
	var err error
	if b.Ceiling, err = decimal.NewFromString(ceiling); err != nil {
		return nil, fmt.Errorf("invalid ceiling %q: %w", ceiling, err)
	}
	if b.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return nil, fmt.Errorf("invalid opening balance %q: %w", opening, err)
	}
	if b.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", balance, err)
	}
	return &b, nil
}

// PostgresCashMovementStore is the durable CashMovementStore backed by
// PostgreSQL.
type PostgresCashMovementStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresCashMovementStore creates a PostgreSQL cash movement store.
func NewPostgresCashMovementStore(pool *pgxpool.Pool) *PostgresCashMovementStore {
	return &PostgresCashMovementStore{Pool: pool}
}

const cashMovementColumns = `
	SELECT id, box_id, direction, subtype, category, amount, currency, date, description, reference, reconciled, reimbursement_id, fund_movement_id, exchange_id, exchange_rate, created_at, created_by
	FROM cash_movements`

func (s *PostgresCashMovementStore) Insert(ctx context.Context, m *CashMovement) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		_, err := s.Pool.Exec(queryCtx, `
			INSERT INTO cash_movements (id, box_id, direction, subtype, category, amount, currency, date, description, reference, reconciled, reimbursement_id, fund_movement_id, exchange_id, exchange_rate, created_at, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, m.ID, m.BoxID, m.Direction, m.Subtype, m.Category, m.Amount.String(), m.Currency,
			m.Date, m.Description, m.Reference, m.Reconciled, m.ReimbursementID,
			m.FundMovementID, m.ExchangeID, m.ExchangeRate.String(), m.CreatedAt, m.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to insert cash movement: %w", err)
		}
		return nil
	})
}

func (s *PostgresCashMovementStore) Get(ctx context.Context, id string) (*CashMovement, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.Pool.QueryRow(queryCtx, cashMovementColumns+` WHERE id = $1`, id)
	movement, err := scanCashMovement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("movement %s not found", id)
		}
		return nil, fmt.Errorf("failed to get cash movement: %w", err)
	}
	return movement, nil
}

func (s *PostgresCashMovementStore) Delete(ctx context.Context, id string) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.Pool.Exec(queryCtx, `DELETE FROM cash_movements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cash movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFoundf("movement %s not found", id)
	}
	return nil
}

func (s *PostgresCashMovementStore) ListByBox(ctx context.Context, boxID string) ([]*CashMovement, error) {
	return s.list(ctx, ` WHERE box_id = $1 ORDER BY date DESC, created_at DESC`, boxID)
}

func (s *PostgresCashMovementStore) ListByExchangeID(ctx context.Context, exchangeID string) ([]*CashMovement, error) {
	return s.list(ctx, ` WHERE exchange_id = $1 ORDER BY created_at ASC`, exchangeID)
}

func (s *PostgresCashMovementStore) ListByReimbursementID(ctx context.Context, reimbursementID string) ([]*CashMovement, error) {
	return s.list(ctx, ` WHERE reimbursement_id = $1 ORDER BY created_at ASC`, reimbursementID)
}

func (s *PostgresCashMovementStore) list(ctx context.Context, clause string, arg interface{}) ([]*CashMovement, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(queryCtx, cashMovementColumns+clause, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash movements: %w", err)
	}
	defer rows.Close()

	var movements []*CashMovement
	for rows.Next() {
		m, err := scanCashMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cash movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (s *PostgresCashMovementStore) CountByBox(ctx context.Context, boxID string) (int, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := s.Pool.QueryRow(queryCtx, `SELECT COUNT(*) FROM cash_movements WHERE box_id = $1`, boxID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cash movements: %w", err)
	}
	return count, nil
}

func scanCashMovement(row pgx.Row) (*CashMovement, error) {
	var m CashMovement
	var amount, rate string
	if err := row.Scan(&m.ID, &m.BoxID, &m.Direction, &m.Subtype, &m.Category, &amount,
		&m.Currency, &m.Date, &m.Description, &m.Reference, &m.Reconciled,
		&m.ReimbursementID, &m.FundMovementID, &m.ExchangeID, &rate,
		&m.CreatedAt, &m.CreatedBy); err != nil {
		return nil, err
	}
	var err error
	if m.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if m.ExchangeRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("invalid exchange rate %q: %w", rate, err)
	}
	return &m, nil
}

// PostgresReimbursementStore is the durable ReimbursementStore backed by
// PostgreSQL. Items live in a child table keyed by the reimbursement id.
type PostgresReimbursementStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresReimbursementStore creates a PostgreSQL reimbursement store.
func NewPostgresReimbursementStore(pool *pgxpool.Pool) *PostgresReimbursementStore {
	return &PostgresReimbursementStore{Pool: pool}
}

func (s *PostgresReimbursementStore) Insert(ctx context.Context, r *Reimbursement) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		tx, err := s.Pool.BeginTx(queryCtx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(queryCtx)

		_, err = tx.Exec(queryCtx, `
			INSERT INTO reimbursements (id, box_id, total, status, notes, created_at, created_by, resolved_at, resolved_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, r.ID, r.BoxID, r.Total.String(), r.Status, r.Notes, r.CreatedAt, r.CreatedBy, r.ResolvedAt, r.ResolvedBy)
		if err != nil {
			return fmt.Errorf("failed to insert reimbursement: %w", err)
		}

		for _, item := range r.Items {
			_, err = tx.Exec(queryCtx, `
				INSERT INTO reimbursement_items (id, reimbursement_id, category, amount, description, receipt)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, item.ID, r.ID, item.Category, item.Amount.String(), item.Description, item.Receipt)
			if err != nil {
				return fmt.Errorf("failed to insert reimbursement item: %w", err)
			}
		}

		return tx.Commit(queryCtx)
	})
}

func (s *PostgresReimbursementStore) Get(ctx context.Context, id string) (*Reimbursement, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.Pool.QueryRow(queryCtx, `
		SELECT id, box_id, total, status, notes, created_at, created_by, resolved_at, resolved_by
		FROM reimbursements
		WHERE id = $1
	`, id)
	reimbursement, err := scanReimbursement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("reimbursement %s not found", id)
		}
		return nil, fmt.Errorf("failed to get reimbursement: %w", err)
	}

	if err := s.loadItems(queryCtx, reimbursement); err != nil {
		return nil, err
	}
	return reimbursement, nil
}

func (s *PostgresReimbursementStore) Update(ctx context.Context, r *Reimbursement) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return withSerialRetry(func() error {
		tag, err := s.Pool.Exec(queryCtx, `
			UPDATE reimbursements
			SET status = $2, notes = $3, resolved_at = $4, resolved_by = $5
			WHERE id = $1
		`, r.ID, r.Status, r.Notes, r.ResolvedAt, r.ResolvedBy)
		if err != nil {
			return fmt.Errorf("failed to update reimbursement: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fault.NotFoundf("reimbursement %s not found", r.ID)
		}
		return nil
	})
}

func (s *PostgresReimbursementStore) ListByBox(ctx context.Context, boxID string) ([]*Reimbursement, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(queryCtx, `
		SELECT id, box_id, total, status, notes, created_at, created_by, resolved_at, resolved_by
		FROM reimbursements
		WHERE box_id = $1
		ORDER BY created_at DESC
	`, boxID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reimbursements: %w", err)
	}
	defer rows.Close()

	var reimbursements []*Reimbursement
	for rows.Next() {
		r, err := scanReimbursement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reimbursement: %w", err)
		}
		reimbursements = append(reimbursements, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range reimbursements {
		if err := s.loadItems(queryCtx, r); err != nil {
			return nil, err
		}
	}
	return reimbursements, nil
}

func (s *PostgresReimbursementStore) loadItems(ctx context.Context, r *Reimbursement) error {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, category, amount, description, receipt
		FROM reimbursement_items
		WHERE reimbursement_id = $1
		ORDER BY id
	`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to query reimbursement items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item ReimbursementItem
		var amount string
		if err := rows.Scan(&item.ID, &item.Category, &amount, &item.Description, &item.Receipt); err != nil {
			return fmt.Errorf("failed to scan reimbursement item: %w", err)
		}
		if item.Amount, err = decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("invalid item amount %q: %w", amount, err)
		}
		r.Items = append(r.Items, item)
	}
	return rows.Err()
}

func scanReimbursement(row pgx.Row) (*Reimbursement, error) {
	var r Reimbursement
	var total string
	if err := row.Scan(&r.ID, &r.BoxID, &total, &r.Status, &r.Notes, &r.CreatedAt,
		&r.CreatedBy, &r.ResolvedAt, &r.ResolvedBy); err != nil {
		return nil, err
	}
	var err error
	if r.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("invalid total %q: %w", total, err)
	}
	return &r, nil
}

// PostgresClosingStore is the append-only ClosingStore backed by PostgreSQL.
type PostgresClosingStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresClosingStore creates a PostgreSQL closing store.
func NewPostgresClosingStore(pool *pgxpool.Pool) *PostgresClosingStore {
	return &PostgresClosingStore{Pool: pool}
}

func (s *PostgresClosingStore) Insert(ctx context.Context, c *CashClosing) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.Pool.Exec(queryCtx, `
		INSERT INTO cash_closings (id, box_id, period, cut_off, balance, notes, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.BoxID, c.Period, c.CutOff, c.Balance.String(), c.Notes, c.CreatedAt, c.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to insert closing: %w", err)
	}
	return nil
}

func (s *PostgresClosingStore) ListByBox(ctx context.Context, boxID string) ([]*CashClosing, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(queryCtx, `
		SELECT id, box_id, period, cut_off, balance, notes, created_at, created_by
		FROM cash_closings
		WHERE box_id = $1
		ORDER BY cut_off DESC
	`, boxID)
	if err != nil {
		return nil, fmt.Errorf("failed to query closings: %w", err)
	}
	defer rows.Close()

	var closings []*CashClosing
	for rows.Next() {
		var c CashClosing
		var balance string
		if err := rows.Scan(&c.ID, &c.BoxID, &c.Period, &c.CutOff, &balance, &c.Notes, &c.CreatedAt, &c.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan closing: %w", err)
		}
		if c.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("invalid balance %q: %w", balance, err)
		}
		closings = append(closings, &c)
	}
	return closings, rows.Err()
}
