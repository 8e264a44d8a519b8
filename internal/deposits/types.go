package deposits

import (
	"time"

	"github.com/shopspring/decimal"
)

// InterestMethod selects the accrual formula for a deposit.
type InterestMethod string

const (
	Simple   InterestMethod = "simple"
	Compound InterestMethod = "compound"
)

// Valid reports whether the method is part of the closed set.
func (m InterestMethod) Valid() bool {
	return m == Simple || m == Compound
}

// PaymentFrequency is the cadence of the interest payment schedule.
type PaymentFrequency string

const (
	AtMaturity PaymentFrequency = "at_maturity"
	Monthly    PaymentFrequency = "monthly"
	Quarterly  PaymentFrequency = "quarterly"
	Semiannual PaymentFrequency = "semiannual"
)

// Valid reports whether the frequency is part of the closed set.
func (f PaymentFrequency) Valid() bool {
	switch f {
	case AtMaturity, Monthly, Quarterly, Semiannual:
		return true
	}
	return false
}

// IntervalMonths is the number of months between schedule entries, or 0 for
// a single entry at maturity.
func (f PaymentFrequency) IntervalMonths() int {
	switch f {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Semiannual:
		return 6
	}
	return 0
}

// Disposition says what happens to interest when an entry falls due: paid out
// to the linked account, or folded into the principal.
type Disposition string

const (
	Payout     Disposition = "payout"
	Capitalize Disposition = "capitalize"
)

// Valid reports whether the disposition is part of the closed set.
func (d Disposition) Valid() bool {
	return d == Payout || d == Capitalize
}

// DepositState is a deposit lifecycle state. Active and matured share the
// same stored value; maturity is derived from the clock, never written.
type DepositState string

const (
	StateActive    DepositState = "active"
	StateMatured   DepositState = "matured"
	StateClosed    DepositState = "closed"
	StateCancelled DepositState = "cancelled"
)

// Deposit is a fixed-term interest-bearing placement. Principal is the
// current principal, which grows with top-ups and capitalizations and shrinks
// with withdrawals; OriginalPrincipal is the constituted amount.
type Deposit struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Institution       string           `json:"institution"`
	Currency          string           `json:"currency"`
	OriginalPrincipal decimal.Decimal  `json:"original_principal"`
	Principal         decimal.Decimal  `json:"principal"`
	AnnualRatePct     decimal.Decimal  `json:"annual_rate_pct"`
	Method            InterestMethod   `json:"interest_method"`
	Frequency         PaymentFrequency `json:"payment_frequency"`
	Disposition       Disposition      `json:"disposition"`
	StartDate         time.Time        `json:"start_date"`
	MaturityDate      time.Time        `json:"maturity_date"`
	TermDays          int              `json:"term_days"`
	FundingAccountID  string           `json:"funding_account_id,omitempty"`
	PayoutAccountID   string           `json:"payout_account_id,omitempty"`
	InvestorID        string           `json:"investor_id"`
	AutoRenew         bool             `json:"auto_renew"`
	Observations      string           `json:"observations,omitempty"`
	State             DepositState     `json:"state"`
	CreatedAt         time.Time        `json:"created_at"`
	CreatedBy         string           `json:"created_by"`
}

// StateAt derives the effective state at a point in time: an active deposit
// past its maturity date reads as matured.
func (d *Deposit) StateAt(now time.Time) DepositState {
	if d.State == StateActive && !now.Before(d.MaturityDate) {
		return StateMatured
	}
	return d.State
}

// MovementKind classifies a deposit movement.
type MovementKind string

const (
	TopUp                  MovementKind = "top_up"
	Withdrawal             MovementKind = "withdrawal"
	InterestPayout         MovementKind = "interest_payout"
	InterestCapitalization MovementKind = "interest_capitalization"
)

// DepositMovement records a principal change or an interest settlement, with
// the principal before and after for the audit trail.
type DepositMovement struct {
	ID              string          `json:"id"`
	DepositID       string          `json:"deposit_id"`
	Kind            MovementKind    `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	PrincipalBefore decimal.Decimal `json:"principal_before"`
	PrincipalAfter  decimal.Decimal `json:"principal_after"`
	Date            time.Time       `json:"date"`
	Description     string          `json:"description,omitempty"`
	FundMovementID  string          `json:"fund_movement_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	CreatedBy       string          `json:"created_by"`
}

// EntryState is the settlement state of a schedule entry. An overdue reading
// (pending entry past its date) is derived at query time, never stored.
type EntryState string

const (
	EntryPending     EntryState = "pending"
	EntryPaid        EntryState = "paid"
	EntryCapitalized EntryState = "capitalized"
	EntrySkipped     EntryState = "skipped"
	EntryOverdue     EntryState = "overdue"
)

// ScheduleEntry is one row of a deposit's projected interest schedule.
// EstimatedInterest is computed at constitution; PaidInterest is the amount
// actually settled.
type ScheduleEntry struct {
	ID                string          `json:"id"`
	DepositID         string          `json:"deposit_id"`
	Seq               int             `json:"seq"`
	Date              time.Time       `json:"date"`
	EstimatedInterest decimal.Decimal `json:"estimated_interest"`
	State             EntryState      `json:"state"`
	PaidInterest      decimal.Decimal `json:"paid_interest"`
	SettledAt         *time.Time      `json:"settled_at,omitempty"`
}

// StateAt derives the effective entry state: pending entries past their date
// read as overdue.
func (e *ScheduleEntry) StateAt(now time.Time) EntryState {
	if e.State == EntryPending && now.After(e.Date) {
		return EntryOverdue
	}
	return e.State
}
