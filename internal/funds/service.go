package funds

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/treasury-core/internal/fault"
	"github.com/example/treasury-core/pkg/audit"
)

const module = "funds"

// Service is the fund account service: it owns account balances and the
// movement postings every other component goes through.
//
// PostMovement is the unchecked posting primitive: it applies balance deltas
// unconditionally. Balance sufficiency, currency match, and ceiling checks
// belong to the caller-facing operations in pettycash and deposits.
type Service struct {
	accounts  AccountStore
	movements MovementStore
	recorder  audit.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates the fund account service. recorder may be nil to disable
// audit emission.
func NewService(accounts AccountStore, movements MovementStore, recorder audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts:  accounts,
		movements: movements,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateAccountRequest holds parameters for creating an account.
type CreateAccountRequest struct {
	Name           string
	Kind           AccountKind
	Currency       string
	InvestorID     string
	CashBoxID      string
	OpeningBalance decimal.Decimal
	// InitialBalance overrides the derived current balance when set.
	InitialBalance *decimal.Decimal
	ActorID        string
}

// CreateAccount creates a new account. The current balance starts at the
// opening balance unless an explicit initial balance is given.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fault.Validationf("account name is required")
	}
	if !req.Kind.Valid() {
		return nil, fault.Validationf("invalid account kind: %s", req.Kind)
	}
	if err := validateCurrency(req.Currency); err != nil {
		return nil, err
	}

	balance := req.OpeningBalance
	if req.InitialBalance != nil {
		balance = *req.InitialBalance
	}

	account := &Account{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Kind:           req.Kind,
		Currency:       req.Currency,
		InvestorID:     req.InvestorID,
		CashBoxID:      req.CashBoxID,
		OpeningBalance: req.OpeningBalance,
		Balance:        balance,
		Active:         true,
		CreatedAt:      s.now(),
		CreatedBy:      req.ActorID,
	}

	if err := s.accounts.Insert(ctx, account); err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to create account")
	}

	s.emit(ctx, "create_account", fmt.Sprintf("account %q created (%s, %s)", account.Name, account.Kind, account.Currency), account.ID, "account", req.ActorID, nil)
	return account, nil
}

// GetAccount retrieves an account by id.
func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, fault.Validationf("account id is required")
	}
	return s.accounts.Get(ctx, id)
}

// ListAccounts retrieves accounts with optional filtering.
func (s *Service) ListAccounts(ctx context.Context, f AccountFilter) ([]*Account, error) {
	return s.accounts.List(ctx, f)
}

// UpdateAccountRequest carries the mutable account fields. Nil means leave
// unchanged.
type UpdateAccountRequest struct {
	Name      *string
	Active    *bool
	CashBoxID *string
	ActorID   string
}

// UpdateAccount updates an account's mutable fields. Balances only change
// through movement posting.
func (s *Service) UpdateAccount(ctx context.Context, id string, req UpdateAccountRequest) (*Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fault.Validationf("account name is required")
		}
		account.Name = *req.Name
	}
	if req.Active != nil {
		account.Active = *req.Active
	}
	if req.CashBoxID != nil {
		account.CashBoxID = *req.CashBoxID
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to update account")
	}

	s.emit(ctx, "update_account", fmt.Sprintf("account %q updated", account.Name), account.ID, "account", req.ActorID, nil)
	return account, nil
}

// DeleteAccount deletes an account. Accounts with movement history cannot be
// deleted; deactivate them instead.
func (s *Service) DeleteAccount(ctx context.Context, id, actorID string) error {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.movements.CountByAccount(ctx, id)
	if err != nil {
		return fault.Wrap(fault.Internal, err, "failed to count account movements")
	}
	if count > 0 {
		return fault.InvalidStatef("account %q has %d movements; deactivate it instead of deleting", account.Name, count)
	}

	if err := s.accounts.Delete(ctx, id); err != nil {
		return fault.Wrap(fault.Internal, err, "failed to delete account")
	}

	s.emit(ctx, "delete_account", fmt.Sprintf("account %q deleted", account.Name), id, "account", actorID, nil)
	return nil
}

// PostMovementRequest holds parameters for posting a fund movement.
type PostMovementRequest struct {
	SourceAccountID string
	DestAccountID   string
	Amount          decimal.Decimal
	Currency        string
	Date            time.Time
	Category        MovementCategory
	Description     string
	Reference       string
	InvestorID      string
	CashBoxID       string
	ExchangeID      string
	ActorID         string
}

// PostMovement records a movement and applies its balance effects: the source
// account is decremented, the destination incremented. The balance writes and
// the movement record form one unit of work; a partial failure is compensated
// before the error surfaces.
func (s *Service) PostMovement(ctx context.Context, req PostMovementRequest) (*FundMovement, error) {
	if !req.Amount.IsPositive() {
		return nil, fault.Validationf("amount must be positive")
	}
	if req.SourceAccountID == "" && req.DestAccountID == "" {
		return nil, fault.Validationf("at least one of source and destination account is required")
	}
	if req.SourceAccountID != "" && req.SourceAccountID == req.DestAccountID {
		return nil, fault.Validationf("source and destination account must be different")
	}
	if !req.Category.Valid() {
		return nil, fault.Validationf("invalid movement category: %s", req.Category)
	}

	var source, dest *Account
	var err error
	if req.SourceAccountID != "" {
		if source, err = s.accounts.Get(ctx, req.SourceAccountID); err != nil {
			return nil, err
		}
	}
	if req.DestAccountID != "" {
		if dest, err = s.accounts.Get(ctx, req.DestAccountID); err != nil {
			return nil, err
		}
	}

	currency := req.Currency
	if currency == "" {
		if source != nil {
			currency = source.Currency
		} else {
			currency = dest.Currency
		}
	}

	date := req.Date
	if date.IsZero() {
		date = s.now()
	}

	movement := &FundMovement{
		ID:              uuid.NewString(),
		SourceAccountID: req.SourceAccountID,
		DestAccountID:   req.DestAccountID,
		Amount:          req.Amount,
		Currency:        currency,
		Date:            date,
		Category:        req.Category,
		Description:     req.Description,
		Reference:       req.Reference,
		InvestorID:      req.InvestorID,
		CashBoxID:       req.CashBoxID,
		ExchangeID:      req.ExchangeID,
		CreatedAt:       s.now(),
		CreatedBy:       req.ActorID,
	}

	if source != nil {
		source.Balance = source.Balance.Sub(req.Amount)
		if err := s.accounts.Update(ctx, source); err != nil {
			return nil, fault.Wrap(fault.Internal, err, "failed to debit source account")
		}
	}
	if dest != nil {
		dest.Balance = dest.Balance.Add(req.Amount)
		if err := s.accounts.Update(ctx, dest); err != nil {
			s.compensateBalance(ctx, source, req.Amount)
			return nil, fault.Wrap(fault.Internal, err, "failed to credit destination account")
		}
	}

	if err := s.movements.Insert(ctx, movement); err != nil {
		s.compensateBalance(ctx, source, req.Amount)
		s.compensateBalance(ctx, dest, req.Amount.Neg())
		return nil, fault.Wrap(fault.Internal, err, "failed to record movement")
	}

	s.emit(ctx, "post_movement", movementDetail(movement), movement.ID, "fund_movement", req.ActorID, map[string]string{
		"category": string(movement.Category),
		"amount":   movement.Amount.StringFixed(2),
		"currency": movement.Currency,
	})
	return movement, nil
}

// ReverseMovement applies the inverse balance deltas of a movement and deletes
// its record. It serves both direct deletion and compensation after a
// downstream failure.
func (s *Service) ReverseMovement(ctx context.Context, id, actorID string) error {
	movement, err := s.movements.Get(ctx, id)
	if err != nil {
		return err
	}

	var source, dest *Account
	if movement.SourceAccountID != "" {
		if source, err = s.accounts.Get(ctx, movement.SourceAccountID); err != nil {
			return err
		}
	}
	if movement.DestAccountID != "" {
		if dest, err = s.accounts.Get(ctx, movement.DestAccountID); err != nil {
			return err
		}
	}

	if source != nil {
		source.Balance = source.Balance.Add(movement.Amount)
		if err := s.accounts.Update(ctx, source); err != nil {
			return fault.Wrap(fault.Internal, err, "failed to restore source balance")
		}
	}
	if dest != nil {
		dest.Balance = dest.Balance.Sub(movement.Amount)
		if err := s.accounts.Update(ctx, dest); err != nil {
			s.compensateBalance(ctx, source, movement.Amount.Neg())
			return fault.Wrap(fault.Internal, err, "failed to restore destination balance")
		}
	}

	if err := s.movements.Delete(ctx, id); err != nil {
		s.compensateBalance(ctx, source, movement.Amount.Neg())
		s.compensateBalance(ctx, dest, movement.Amount)
		return fault.Wrap(fault.Internal, err, "failed to delete movement")
	}

	s.emit(ctx, "reverse_movement", movementDetail(movement), id, "fund_movement", actorID, nil)
	return nil
}

// DeleteMovement deletes a movement. If the movement is one leg of a currency
// exchange pair, both legs are deleted and both balances reverted.
func (s *Service) DeleteMovement(ctx context.Context, id, actorID string) error {
	movement, err := s.movements.Get(ctx, id)
	if err != nil {
		return err
	}

	if movement.ExchangeID == "" {
		return s.ReverseMovement(ctx, id, actorID)
	}

	legs, err := s.movements.ListByExchangeID(ctx, movement.ExchangeID)
	if err != nil {
		return fault.Wrap(fault.Internal, err, "failed to load exchange pair")
	}
	for _, leg := range legs {
		if leg.ID == movement.ID {
			continue
		}
		if err := s.ReverseMovement(ctx, leg.ID, actorID); err != nil {
			return err
		}
	}
	return s.ReverseMovement(ctx, movement.ID, actorID)
}

// ExchangePairRequest holds parameters for a currency-exchange pair: an
// outflow in the sold currency and an inflow in the bought currency.
type ExchangePairRequest struct {
	SellAccountID string
	BuyAccountID  string
	SellAmount    decimal.Decimal
	BuyAmount     decimal.Decimal
	Date          time.Time
	Description   string
	ActorID       string
}

// PostExchangePair creates two linked movements sharing one exchange id. If
// the second leg fails, the first is reversed before the error is raised.
func (s *Service) PostExchangePair(ctx context.Context, req ExchangePairRequest) (*FundMovement, *FundMovement, error) {
	if req.SellAccountID == "" || req.BuyAccountID == "" {
		return nil, nil, fault.Validationf("both exchange accounts are required")
	}
	if !req.SellAmount.IsPositive() || !req.BuyAmount.IsPositive() {
		return nil, nil, fault.Validationf("exchange amounts must be positive")
	}

	exchangeID := uuid.NewString()

	out, err := s.PostMovement(ctx, PostMovementRequest{
		SourceAccountID: req.SellAccountID,
		Amount:          req.SellAmount,
		Date:            req.Date,
		Category:        CategoryExchange,
		Description:     req.Description,
		ExchangeID:      exchangeID,
		ActorID:         req.ActorID,
	})
	if err != nil {
		return nil, nil, err
	}

	in, err := s.PostMovement(ctx, PostMovementRequest{
		DestAccountID: req.BuyAccountID,
		Amount:        req.BuyAmount,
		Date:          req.Date,
		Category:      CategoryExchange,
		Description:   req.Description,
		ExchangeID:    exchangeID,
		ActorID:       req.ActorID,
	})
	if err != nil {
		if rerr := s.ReverseMovement(ctx, out.ID, req.ActorID); rerr != nil {
			s.logger.Error("exchange compensation failed; manual reconciliation required",
				"movement_id", out.ID, "error", rerr)
		}
		return nil, nil, err
	}

	return out, in, nil
}

// ListMovements retrieves the movements touching an account, newest first.
func (s *Service) ListMovements(ctx context.Context, accountID string) ([]*FundMovement, error) {
	if accountID == "" {
		return nil, fault.Validationf("account id is required")
	}
	return s.movements.ListByAccount(ctx, accountID)
}

// ValidateConsistency recomputes every account balance from its movement
// history and reports drift against the stored balance.
func (s *Service) ValidateConsistency(ctx context.Context) ([]ConsistencyResult, error) {
	accounts, err := s.accounts.List(ctx, AccountFilter{})
	if err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to list accounts")
	}

	results := make([]ConsistencyResult, 0, len(accounts))
	for _, account := range accounts {
		movements, err := s.movements.ListByAccount(ctx, account.ID)
		if err != nil {
			return nil, fault.Wrap(fault.Internal, err, "failed to list movements for account %s", account.ID)
		}

		expected := account.OpeningBalance
		for _, m := range movements {
			if m.DestAccountID == account.ID {
				expected = expected.Add(m.Amount)
			}
			if m.SourceAccountID == account.ID {
				expected = expected.Sub(m.Amount)
			}
		}

		results = append(results, ConsistencyResult{
			AccountID:  account.ID,
			Name:       account.Name,
			Expected:   expected,
			Actual:     account.Balance,
			Consistent: expected.Equal(account.Balance),
		})
	}
	return results, nil
}

// compensateBalance adds delta back to an already-updated account. Failures
// here leave an inconsistency that is only reconciled out-of-band, so they are
// logged at error level.
func (s *Service) compensateBalance(ctx context.Context, account *Account, delta decimal.Decimal) {
	if account == nil {
		return
	}
	account.Balance = account.Balance.Add(delta)
	if err := s.accounts.Update(ctx, account); err != nil {
		s.logger.Error("balance compensation failed; manual reconciliation required",
			"account_id", account.ID, "delta", delta.String(), "error", err)
	}
}

func (s *Service) emit(ctx context.Context, action, detail, entityID, entityType, actorID string, metadata map[string]string) {
	audit.Emit(ctx, s.recorder, s.logger, audit.Entry{
		Action:     action,
		Module:     module,
		Detail:     detail,
		EntityID:   entityID,
		EntityType: entityType,
		ActorID:    actorID,
		Metadata:   metadata,
	})
}

func movementDetail(m *FundMovement) string {
	switch {
	case m.IsTransfer():
		return fmt.Sprintf("transfer of %s %s from %s to %s", m.Amount.StringFixed(2), m.Currency, m.SourceAccountID, m.DestAccountID)
	case m.DestAccountID != "":
		return fmt.Sprintf("inflow of %s %s into %s", m.Amount.StringFixed(2), m.Currency, m.DestAccountID)
	default:
		return fmt.Sprintf("outflow of %s %s from %s", m.Amount.StringFixed(2), m.Currency, m.SourceAccountID)
	}
}

func validateCurrency(code string) error {
	if len(code) != 3 {
		return fault.Validationf("currency code must be exactly 3 characters")
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fault.Validationf("currency code must contain only uppercase letters")
		}
	}
	return nil
}
