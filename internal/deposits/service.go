package deposits

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/treasury-core/internal/fault"
	"github.com/example/treasury-core/internal/funds"
	"github.com/example/treasury-core/pkg/audit"
)

const module = "deposits"

// FundLedger is the slice of the fund account service the deposit service
// needs: debiting the funding account at constitution, crediting the payout
// account for interest and withdrawals, and reversing a leg when a later step
// fails.
type FundLedger interface {
	GetAccount(ctx context.Context, id string) (*funds.Account, error)
	PostMovement(ctx context.Context, req funds.PostMovementRequest) (*funds.FundMovement, error)
	ReverseMovement(ctx context.Context, id, actorID string) error
}

// Service is the fixed-deposit service. It constitutes interest-bearing
// placements, projects their payment schedules, and settles interest either
// as payouts through the fund ledger or as capitalizations into the
// principal.
type Service struct {
	deposits  DepositStore
	movements DepositMovementStore
	schedule  ScheduleStore
	ledger    FundLedger
	recorder  audit.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates the fixed-deposit service. recorder may be nil to
// disable audit emission.
func NewService(deposits DepositStore, movements DepositMovementStore, schedule ScheduleStore, ledger FundLedger, recorder audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deposits:  deposits,
		movements: movements,
		schedule:  schedule,
		ledger:    ledger,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateDepositRequest holds parameters for constituting a deposit.
type CreateDepositRequest struct {
	Name             string
	Institution      string
	Currency         string
	Principal        decimal.Decimal
	AnnualRatePct    decimal.Decimal
	Method           InterestMethod
	Frequency        PaymentFrequency
	Disposition      Disposition
	StartDate        time.Time
	TermDays         int
	FundingAccountID string
	PayoutAccountID  string
	InvestorID       string
	AutoRenew        bool
	Observations     string
	ActorID          string
}

// CreateDeposit constitutes a deposit and projects its payment schedule. When
// a funding account is linked, the principal is debited from it; a failure in
// any later step reverses the debit.
func (s *Service) CreateDeposit(ctx context.Context, req CreateDepositRequest) (*Deposit, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fault.Validationf("deposit name is required")
	}
	if strings.TrimSpace(req.InvestorID) == "" {
		return nil, fault.Validationf("investor id is required")
	}
	if len(req.Currency) != 3 {
		return nil, fault.Validationf("currency code must be exactly 3 characters")
	}
	if !req.Principal.IsPositive() {
		return nil, fault.Validationf("principal must be positive")
	}
	if req.AnnualRatePct.IsNegative() {
		return nil, fault.Validationf("annual rate cannot be negative")
	}
	if !req.Method.Valid() {
		return nil, fault.Validationf("invalid interest method: %s", req.Method)
	}
	if !req.Frequency.Valid() {
		return nil, fault.Validationf("invalid payment frequency: %s", req.Frequency)
	}
	if !req.Disposition.Valid() {
		return nil, fault.Validationf("invalid disposition: %s", req.Disposition)
	}
	if req.TermDays <= 0 {
		return nil, fault.Validationf("term must be positive")
	}

	start := req.StartDate
	if start.IsZero() {
		start = s.now()
	}

	deposit := &Deposit{
		ID:                uuid.NewString(),
		Name:              req.Name,
		Institution:       req.Institution,
		Currency:          req.Currency,
		OriginalPrincipal: req.Principal,
		Principal:         req.Principal,
		AnnualRatePct:     req.AnnualRatePct,
		Method:            req.Method,
		Frequency:         req.Frequency,
		Disposition:       req.Disposition,
		StartDate:         start,
		MaturityDate:      start.AddDate(0, 0, req.TermDays),
		TermDays:          req.TermDays,
		FundingAccountID:  req.FundingAccountID,
		PayoutAccountID:   req.PayoutAccountID,
		InvestorID:        req.InvestorID,
		AutoRenew:         req.AutoRenew,
		Observations:      req.Observations,
		State:             StateActive,
		CreatedAt:         s.now(),
		CreatedBy:         req.ActorID,
	}

	var fundingLegID string
	if req.FundingAccountID != "" {
		leg, err := s.debitFunding(ctx, deposit, req.Principal, start, req.ActorID)
		if err != nil {
			return nil, err
		}
		fundingLegID = leg
	}

	if err := s.deposits.Insert(ctx, deposit); err != nil {
		s.reverseBankLeg(ctx, fundingLegID, req.ActorID)
		return nil, fault.Wrap(fault.Internal, err, "failed to create deposit")
	}

	entries := GenerateSchedule(SchedulePlan{
		Principal:   deposit.Principal,
		RatePct:     deposit.AnnualRatePct,
		Method:      deposit.Method,
		Frequency:   deposit.Frequency,
		Disposition: deposit.Disposition,
		StartDate:   deposit.StartDate,
		Maturity:    deposit.MaturityDate,
	})
	var inserted []string
	for i := range entries {
		entries[i].ID = uuid.NewString()
		entries[i].DepositID = deposit.ID
		if err := s.schedule.Insert(ctx, &entries[i]); err != nil {
			for _, id := range inserted {
				if derr := s.schedule.Delete(ctx, id); derr != nil {
					s.logger.Error("schedule cleanup failed", "entry_id", id, "error", derr)
				}
			}
			if derr := s.deposits.Delete(ctx, deposit.ID); derr != nil {
				s.logger.Error("deposit cleanup failed; manual reconciliation required",
					"deposit_id", deposit.ID, "error", derr)
			}
			s.reverseBankLeg(ctx, fundingLegID, req.ActorID)
			return nil, fault.Wrap(fault.Internal, err, "failed to project payment schedule")
		}
		inserted = append(inserted, entries[i].ID)
	}

	s.emit(ctx, "create_deposit", fmt.Sprintf("deposit %q constituted with %s %s at %s%% (%s, %s)", deposit.Name, deposit.Principal.StringFixed(2), deposit.Currency, deposit.AnnualRatePct.String(), deposit.Method, deposit.Frequency), deposit.ID, "deposit", req.ActorID, map[string]string{
		"principal": deposit.Principal.StringFixed(2),
		"currency":  deposit.Currency,
	})
	return deposit, nil
}

// GetDeposit retrieves a deposit. The returned state is the effective one:
// an active deposit past maturity reads as matured.
func (s *Service) GetDeposit(ctx context.Context, id string) (*Deposit, error) {
	if id == "" {
		return nil, fault.Validationf("deposit id is required")
	}
	deposit, err := s.deposits.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	deposit.State = deposit.StateAt(s.now())
	return deposit, nil
}

// ListDeposits retrieves deposits with optional filtering, states derived.
func (s *Service) ListDeposits(ctx context.Context, f DepositFilter) ([]*Deposit, error) {
	deposits, err := s.deposits.List(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, d := range deposits {
		d.State = d.StateAt(now)
	}
	return deposits, nil
}

// GetSchedule retrieves a deposit's payment schedule in sequence order, with
// pending entries past their date reading as overdue.
func (s *Service) GetSchedule(ctx context.Context, depositID string) ([]*ScheduleEntry, error) {
	if depositID == "" {
		return nil, fault.Validationf("deposit id is required")
	}
	entries, err := s.schedule.ListByDeposit(ctx, depositID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, e := range entries {
		e.State = e.StateAt(now)
	}
	return entries, nil
}

// ListMovements retrieves a deposit's movements, newest first.
func (s *Service) ListMovements(ctx context.Context, depositID string) ([]*DepositMovement, error) {
	if depositID == "" {
		return nil, fault.Validationf("deposit id is required")
	}
	return s.movements.ListByDeposit(ctx, depositID)
}

// TopUpRequest holds parameters for a principal top-up. Date defaults to the
// current time.
type TopUpRequest struct {
	DepositID string
	Amount    decimal.Decimal
	Date      time.Time
	ActorID   string
}

// RegisterTopUp increases the principal of an active deposit. When a funding
// account is linked, the amount is debited from it.
func (s *Service) RegisterTopUp(ctx context.Context, req TopUpRequest) (*DepositMovement, error) {
	if !req.Amount.IsPositive() {
		return nil, fault.Validationf("amount must be positive")
	}
	deposit, err := s.deposits.Get(ctx, req.DepositID)
	if err != nil {
		return nil, err
	}
	if deposit.StateAt(s.now()) != StateActive {
		return nil, fault.InvalidStatef("deposit %q is %s, top-ups require an active deposit", deposit.Name, deposit.StateAt(s.now()))
	}

	date := s.movementDate(req.Date)
	var fundingLegID string
	if deposit.FundingAccountID != "" {
		leg, err := s.debitFunding(ctx, deposit, req.Amount, date, req.ActorID)
		if err != nil {
			return nil, err
		}
		fundingLegID = leg
	}

	movement, err := s.applyPrincipalChange(ctx, deposit, TopUp, req.Amount, req.Amount, date, fundingLegID, "", req.ActorID)
	if err != nil {
		s.reverseBankLeg(ctx, fundingLegID, req.ActorID)
		return nil, err
	}

	s.emit(ctx, "register_top_up", fmt.Sprintf("top-up of %s %s on deposit %q", req.Amount.StringFixed(2), deposit.Currency, deposit.Name), movement.ID, "deposit_movement", req.ActorID, nil)
	return movement, nil
}

// WithdrawalRequest holds parameters for a principal withdrawal. Date
// defaults to the current time.
type WithdrawalRequest struct {
	DepositID string
	Amount    decimal.Decimal
	Date      time.Time
	ActorID   string
}

// RegisterWithdrawal decreases the principal of a matured deposit, crediting
// the payout account when one is linked. Withdrawing the full principal
// closes the deposit.
func (s *Service) RegisterWithdrawal(ctx context.Context, req WithdrawalRequest) (*DepositMovement, error) {
	if !req.Amount.IsPositive() {
		return nil, fault.Validationf("amount must be positive")
	}
	deposit, err := s.deposits.Get(ctx, req.DepositID)
	if err != nil {
		return nil, err
	}
	if deposit.StateAt(s.now()) != StateMatured {
		return nil, fault.InvalidStatef("deposit %q is %s, withdrawals require a matured deposit", deposit.Name, deposit.StateAt(s.now()))
	}
	if req.Amount.GreaterThan(deposit.Principal) {
		return nil, fault.InsufficientFundsf("deposit %q holds %s %s, cannot withdraw %s", deposit.Name, deposit.Principal.StringFixed(2), deposit.Currency, req.Amount.StringFixed(2))
	}

	date := s.movementDate(req.Date)
	var payoutLegID string
	if deposit.PayoutAccountID != "" {
		leg, err := s.creditPayout(ctx, deposit, req.Amount, date, funds.CategoryInvestorWithdrawal, fmt.Sprintf("withdrawal from deposit %q", deposit.Name), req.ActorID)
		if err != nil {
			return nil, err
		}
		payoutLegID = leg
	}

	movement, err := s.applyPrincipalChange(ctx, deposit, Withdrawal, req.Amount, req.Amount.Neg(), date, payoutLegID, "", req.ActorID)
	if err != nil {
		s.reverseBankLeg(ctx, payoutLegID, req.ActorID)
		return nil, err
	}

	s.emit(ctx, "register_withdrawal", fmt.Sprintf("withdrawal of %s %s from deposit %q", req.Amount.StringFixed(2), deposit.Currency, deposit.Name), movement.ID, "deposit_movement", req.ActorID, nil)
	return movement, nil
}

// SettleInterestRequest identifies a schedule entry to settle. Amount
// overrides the entry's estimated interest when set; Date defaults to the
// current time.
type SettleInterestRequest struct {
	DepositID string
	EntryID   string
	Amount    decimal.Decimal
	Date      time.Time
	ActorID   string
}

// PayInterest settles a pending schedule entry of a payout deposit by
// crediting the settled interest to the payout account.
func (s *Service) PayInterest(ctx context.Context, req SettleInterestRequest) (*ScheduleEntry, error) {
	if req.Amount.IsNegative() {
		return nil, fault.Validationf("amount cannot be negative")
	}
	deposit, err := s.deposits.Get(ctx, req.DepositID)
	if err != nil {
		return nil, err
	}
	if deposit.State != StateActive {
		return nil, fault.InvalidStatef("deposit %q is %s, interest can only settle on an active deposit", deposit.Name, deposit.State)
	}
	if deposit.Disposition != Payout {
		return nil, fault.InvalidStatef("deposit %q capitalizes interest, it has no payouts", deposit.Name)
	}
	if deposit.PayoutAccountID == "" {
		return nil, fault.InvalidStatef("deposit %q has no payout account", deposit.Name)
	}

	entry, err := s.pendingEntry(ctx, deposit, req.EntryID)
	if err != nil {
		return nil, err
	}
	amount := entry.EstimatedInterest
	if req.Amount.IsPositive() {
		amount = req.Amount
	}
	date := s.movementDate(req.Date)

	payoutLegID, err := s.creditPayout(ctx, deposit, amount, date, funds.CategoryDepositInterest, fmt.Sprintf("interest payout of deposit %q", deposit.Name), req.ActorID)
	if err != nil {
		return nil, err
	}

	movement := s.newMovement(deposit, InterestPayout, amount, deposit.Principal, deposit.Principal, date, payoutLegID, fmt.Sprintf("interest for entry %d", entry.Seq), req.ActorID)
	if err := s.movements.Insert(ctx, movement); err != nil {
		s.reverseBankLeg(ctx, payoutLegID, req.ActorID)
		return nil, fault.Wrap(fault.Internal, err, "failed to record interest payout")
	}

	if err := s.settleEntry(ctx, entry, EntryPaid, amount, date); err != nil {
		if derr := s.movements.Delete(ctx, movement.ID); derr != nil {
			s.logger.Error("movement cleanup failed", "movement_id", movement.ID, "error", derr)
		}
		s.reverseBankLeg(ctx, payoutLegID, req.ActorID)
		return nil, err
	}

	s.emit(ctx, "pay_interest", fmt.Sprintf("interest of %s %s paid out for deposit %q entry %d", amount.StringFixed(2), deposit.Currency, deposit.Name, entry.Seq), entry.ID, "schedule_entry", req.ActorID, nil)
	return entry, nil
}

// CapitalizeInterest settles a pending schedule entry of a capitalizing
// deposit by folding the settled interest into the principal. No account is
// touched.
func (s *Service) CapitalizeInterest(ctx context.Context, req SettleInterestRequest) (*ScheduleEntry, error) {
	if req.Amount.IsNegative() {
		return nil, fault.Validationf("amount cannot be negative")
	}
	deposit, err := s.deposits.Get(ctx, req.DepositID)
	if err != nil {
		return nil, err
	}
	if deposit.State != StateActive {
		return nil, fault.InvalidStatef("deposit %q is %s, interest can only settle on an active deposit", deposit.Name, deposit.State)
	}
	if deposit.Disposition != Capitalize {
		return nil, fault.InvalidStatef("deposit %q pays interest out, it does not capitalize", deposit.Name)
	}

	entry, err := s.pendingEntry(ctx, deposit, req.EntryID)
	if err != nil {
		return nil, err
	}
	amount := entry.EstimatedInterest
	if req.Amount.IsPositive() {
		amount = req.Amount
	}
	date := s.movementDate(req.Date)

	movement, err := s.applyPrincipalChange(ctx, deposit, InterestCapitalization, amount, amount, date, "", fmt.Sprintf("capitalization of entry %d", entry.Seq), req.ActorID)
	if err != nil {
		return nil, err
	}

	if err := s.settleEntry(ctx, entry, EntryCapitalized, amount, date); err != nil {
		if derr := s.movements.Delete(ctx, movement.ID); derr != nil {
			s.logger.Error("movement cleanup failed", "movement_id", movement.ID, "error", derr)
		}
		deposit.Principal = deposit.Principal.Sub(amount)
		if uerr := s.deposits.Update(ctx, deposit); uerr != nil {
			s.logger.Error("principal compensation failed; manual reconciliation required",
				"deposit_id", deposit.ID, "error", uerr)
		}
		return nil, err
	}

	s.emit(ctx, "capitalize_interest", fmt.Sprintf("interest of %s %s capitalized into deposit %q entry %d", amount.StringFixed(2), deposit.Currency, deposit.Name, entry.Seq), entry.ID, "schedule_entry", req.ActorID, nil)
	return entry, nil
}

// CancelDeposit terminates a deposit early: the full remaining principal goes
// back to the payout account when one is linked, pending schedule entries are
// skipped, and the deposit ends cancelled. The note is kept on the
// cancellation movement.
func (s *Service) CancelDeposit(ctx context.Context, id, note, actorID string) (*Deposit, error) {
	deposit, err := s.deposits.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if deposit.State == StateClosed || deposit.State == StateCancelled {
		return nil, fault.InvalidStatef("deposit %q is already %s", deposit.Name, deposit.State)
	}

	principal := deposit.Principal
	date := s.now()

	var payoutLegID string
	if deposit.PayoutAccountID != "" && principal.IsPositive() {
		leg, err := s.creditPayout(ctx, deposit, principal, date, funds.CategoryInvestorWithdrawal, fmt.Sprintf("early cancellation of deposit %q", deposit.Name), actorID)
		if err != nil {
			return nil, err
		}
		payoutLegID = leg
	}

	description := "early cancellation"
	if note != "" {
		description = fmt.Sprintf("early cancellation: %s", note)
	}
	movement := s.newMovement(deposit, Withdrawal, principal, principal, decimal.Zero, date, payoutLegID, description, actorID)
	if err := s.movements.Insert(ctx, movement); err != nil {
		s.reverseBankLeg(ctx, payoutLegID, actorID)
		return nil, fault.Wrap(fault.Internal, err, "failed to record cancellation withdrawal")
	}

	deposit.Principal = decimal.Zero
	deposit.State = StateCancelled
	if err := s.deposits.Update(ctx, deposit); err != nil {
		if derr := s.movements.Delete(ctx, movement.ID); derr != nil {
			s.logger.Error("movement cleanup failed", "movement_id", movement.ID, "error", derr)
		}
		s.reverseBankLeg(ctx, payoutLegID, actorID)
		return nil, fault.Wrap(fault.Internal, err, "failed to cancel deposit")
	}

	entries, err := s.schedule.ListByDeposit(ctx, deposit.ID)
	if err != nil {
		return nil, fault.Wrap(fault.Internal, err, "failed to list schedule entries")
	}
	for _, entry := range entries {
		if entry.State != EntryPending {
			continue
		}
		entry.State = EntrySkipped
		if err := s.schedule.Update(ctx, entry); err != nil {
			s.logger.Error("failed to skip schedule entry; manual reconciliation required",
				"entry_id", entry.ID, "deposit_id", deposit.ID, "error", err)
		}
	}

	s.emit(ctx, "cancel_deposit", fmt.Sprintf("deposit %q cancelled, %s %s returned", deposit.Name, principal.StringFixed(2), deposit.Currency), deposit.ID, "deposit", actorID, nil)
	return deposit, nil
}

func (s *Service) debitFunding(ctx context.Context, deposit *Deposit, amount decimal.Decimal, date time.Time, actorID string) (string, error) {
	account, err := s.ledger.GetAccount(ctx, deposit.FundingAccountID)
	if err != nil {
		return "", err
	}
	if account.Currency != deposit.Currency {
		return "", fault.Validationf("funding account currency %s does not match deposit currency %s", account.Currency, deposit.Currency)
	}
	if account.Balance.LessThan(amount) {
		return "", fault.InsufficientFundsf("funding account %q has %s %s, cannot fund %s", account.Name, account.Balance.StringFixed(2), account.Currency, amount.StringFixed(2))
	}

	leg, err := s.ledger.PostMovement(ctx, funds.PostMovementRequest{
		SourceAccountID: account.ID,
		Amount:          amount,
		Date:            date,
		Category:        funds.CategoryDepositFunding,
		Description:     fmt.Sprintf("constitution of deposit %q", deposit.Name),
		InvestorID:      deposit.InvestorID,
		ActorID:         actorID,
	})
	if err != nil {
		return "", err
	}
	return leg.ID, nil
}

func (s *Service) creditPayout(ctx context.Context, deposit *Deposit, amount decimal.Decimal, date time.Time, category funds.MovementCategory, description, actorID string) (string, error) {
	account, err := s.ledger.GetAccount(ctx, deposit.PayoutAccountID)
	if err != nil {
		return "", err
	}
	if account.Currency != deposit.Currency {
		return "", fault.Validationf("payout account currency %s does not match deposit currency %s", account.Currency, deposit.Currency)
	}

	leg, err := s.ledger.PostMovement(ctx, funds.PostMovementRequest{
		DestAccountID: account.ID,
		Amount:        amount,
		Date:          date,
		Category:      category,
		Description:   description,
		InvestorID:    deposit.InvestorID,
		ActorID:       actorID,
	})
	if err != nil {
		return "", err
	}
	return leg.ID, nil
}

// applyPrincipalChange moves the principal by delta and records the movement.
// The principal write is compensated if the record insert fails.
func (s *Service) applyPrincipalChange(ctx context.Context, deposit *Deposit, kind MovementKind, amount, delta decimal.Decimal, date time.Time, fundMovementID, description, actorID string) (*DepositMovement, error) {
	before := deposit.Principal
	beforeState := deposit.State
	deposit.Principal = deposit.Principal.Add(delta)
	if kind == Withdrawal && deposit.Principal.IsZero() {
		deposit.State = StateClosed
	}
	if err := s.deposits.Update(ctx, deposit); err != nil {
		deposit.Principal = before
		deposit.State = beforeState
		return nil, fault.Wrap(fault.Internal, err, "failed to update principal")
	}

	movement := s.newMovement(deposit, kind, amount, before, deposit.Principal, date, fundMovementID, description, actorID)
	if err := s.movements.Insert(ctx, movement); err != nil {
		deposit.Principal = before
		deposit.State = beforeState
		if uerr := s.deposits.Update(ctx, deposit); uerr != nil {
			s.logger.Error("principal compensation failed; manual reconciliation required",
				"deposit_id", deposit.ID, "error", uerr)
		}
		return nil, fault.Wrap(fault.Internal, err, "failed to record deposit movement")
	}
	return movement, nil
}

func (s *Service) newMovement(deposit *Deposit, kind MovementKind, amount, before, after decimal.Decimal, date time.Time, fundMovementID, description, actorID string) *DepositMovement {
	return &DepositMovement{
		ID:              uuid.NewString(),
		DepositID:       deposit.ID,
		Kind:            kind,
		Amount:          amount,
		PrincipalBefore: before,
		PrincipalAfter:  after,
		Date:            date,
		Description:     description,
		FundMovementID:  fundMovementID,
		CreatedAt:       s.now(),
		CreatedBy:       actorID,
	}
}

func (s *Service) pendingEntry(ctx context.Context, deposit *Deposit, entryID string) (*ScheduleEntry, error) {
	entry, err := s.schedule.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.DepositID != deposit.ID {
		return nil, fault.Validationf("entry %s does not belong to deposit %q", entryID, deposit.Name)
	}
	if entry.State != EntryPending {
		return nil, fault.InvalidStatef("entry %d of deposit %q is %s, only pending entries can settle", entry.Seq, deposit.Name, entry.State)
	}
	return entry, nil
}

func (s *Service) settleEntry(ctx context.Context, entry *ScheduleEntry, state EntryState, paid decimal.Decimal, settledAt time.Time) error {
	entry.State = state
	entry.PaidInterest = paid
	entry.SettledAt = &settledAt
	if err := s.schedule.Update(ctx, entry); err != nil {
		entry.State = EntryPending
		entry.PaidInterest = decimal.Zero
		entry.SettledAt = nil
		return fault.Wrap(fault.Internal, err, "failed to settle schedule entry")
	}
	return nil
}

func (s *Service) movementDate(date time.Time) time.Time {
	if date.IsZero() {
		return s.now()
	}
	return date
}

func (s *Service) reverseBankLeg(ctx context.Context, fundMovementID, actorID string) {
	if fundMovementID == "" {
		return
	}
	if err := s.ledger.ReverseMovement(ctx, fundMovementID, actorID); err != nil {
		s.logger.Error("bank leg compensation failed; manual reconciliation required",
			"fund_movement_id", fundMovementID, "error", err)
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
