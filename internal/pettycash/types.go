package pettycash

import (
	"time"

	"github.com/shopspring/decimal"
)

// BoxLevel distinguishes the central imprest box, funded from a bank account,
// from the sub-boxes it replenishes.
type BoxLevel string

const (
	LevelCentral BoxLevel = "central"
	LevelSub     BoxLevel = "sub"
)

// Valid reports whether the level is part of the closed set.
func (l BoxLevel) Valid() bool {
	return l == LevelCentral || l == LevelSub
}

// BoxStatus is the lifecycle state of a cash box.
type BoxStatus string

const (
	StatusActive BoxStatus = "active"
	StatusClosed BoxStatus = "closed"
)

// Direction tells whether a cash movement puts money into or takes money out
// of a box.
type Direction string

const (
	Ingress Direction = "ingress"
	Egress  Direction = "egress"
)

// Valid reports whether the direction is part of the closed set.
func (d Direction) Valid() bool {
	return d == Ingress || d == Egress
}

// Subtype refines an ingress: fresh funding, a reimbursement replenishment,
// an inter-box transfer, or anything else.
type Subtype string

const (
	SubtypeFund          Subtype = "fund"
	SubtypeReplenishment Subtype = "replenishment"
	SubtypeTransfer      Subtype = "transfer"
	SubtypeOther         Subtype = "other"
)

// CashCategory is the closed expense/funding taxonomy for cash movements.
type CashCategory string

const (
	CategoryFundReceived  CashCategory = "fund_received"
	CategoryReplenishment CashCategory = "replenishment"
	CategoryTransferToSub CashCategory = "transfer_to_sub"
	CategoryExchange      CashCategory = "currency_exchange"
	CategorySupplies      CashCategory = "supplies"
	CategoryTravel        CashCategory = "travel"
	CategoryServices      CashCategory = "services"
	CategoryMaintenance   CashCategory = "maintenance"
	CategoryOther         CashCategory = "other"
)

// Valid reports whether the category is part of the closed set.
func (c CashCategory) Valid() bool {
	switch c {
	case CategoryFundReceived, CategoryReplenishment, CategoryTransferToSub,
		CategoryExchange, CategorySupplies, CategoryTravel, CategoryServices,
		CategoryMaintenance, CategoryOther:
		return true
	}
	return false
}

// CashBox is an imprest cash fund. A central box is funded from the bank
// account in FundingAccountID; a sub box hangs off a central box via ParentID
// and may carry a ceiling that caps its balance. A ceiling of zero means
// uncapped.
type CashBox struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Level            BoxLevel        `json:"level"`
	ParentID         string          `json:"parent_id,omitempty"`
	FundingAccountID string          `json:"funding_account_id,omitempty"`
	Responsible      string          `json:"responsible"`
	ViewerID         string          `json:"viewer_id,omitempty"`
	Currency         string          `json:"currency"`
	Ceiling          decimal.Decimal `json:"ceiling"`
	OpeningBalance   decimal.Decimal `json:"opening_balance"`
	Balance          decimal.Decimal `json:"balance"`
	Status           BoxStatus       `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	CreatedBy        string          `json:"created_by"`
}

// CashMovement is a single ingress or egress on one box. Linked fields tie it
// back to its origin: ReimbursementID for replenishment postings,
// FundMovementID for the bank-side leg of a funding, ExchangeID and
// ExchangeRate for currency-exchange pairs.
type CashMovement struct {
	ID              string          `json:"id"`
	BoxID           string          `json:"box_id"`
	Direction       Direction       `json:"direction"`
	Subtype         Subtype         `json:"subtype,omitempty"`
	Category        CashCategory    `json:"category"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Date            time.Time       `json:"date"`
	Description     string          `json:"description,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	Reconciled      bool            `json:"reconciled"`
	ReimbursementID string          `json:"reimbursement_id,omitempty"`
	FundMovementID  string          `json:"fund_movement_id,omitempty"`
	ExchangeID      string          `json:"exchange_id,omitempty"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	CreatedBy       string          `json:"created_by"`
}

// ReimbursementStatus is the approval state of a reimbursement request.
type ReimbursementStatus string

const (
	ReimbursementPending  ReimbursementStatus = "pending"
	ReimbursementApproved ReimbursementStatus = "approved"
	ReimbursementRejected ReimbursementStatus = "rejected"
)

// ReimbursementItem is one expense line inside a reimbursement request.
type ReimbursementItem struct {
	ID          string          `json:"id"`
	Category    CashCategory    `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Receipt     string          `json:"receipt,omitempty"`
}

// Reimbursement is a batch of expenses awaiting approval. Approval posts one
// reconciled egress per item plus a single replenishment ingress for the
// total, restoring the box to its imprest level.
type Reimbursement struct {
	ID         string              `json:"id"`
	BoxID      string              `json:"box_id"`
	Items      []ReimbursementItem `json:"items"`
	Total      decimal.Decimal     `json:"total"`
	Status     ReimbursementStatus `json:"status"`
	Notes      string              `json:"notes,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	CreatedBy  string              `json:"created_by"`
	ResolvedAt *time.Time          `json:"resolved_at,omitempty"`
	ResolvedBy string              `json:"resolved_by,omitempty"`
}

// ClosingPeriod is the granularity of a cash closing snapshot.
type ClosingPeriod string

const (
	ClosingDaily   ClosingPeriod = "daily"
	ClosingMonthly ClosingPeriod = "monthly"
)

// CashClosing is an append-only snapshot of a box balance at a cut-off.
type CashClosing struct {
	ID        string          `json:"id"`
	BoxID     string          `json:"box_id"`
	Period    ClosingPeriod   `json:"period"`
	CutOff    time.Time       `json:"cut_off"`
	Balance   decimal.Decimal `json:"balance"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	CreatedBy string          `json:"created_by"`
}

// ControlRow is one box's line in the control matrix: opening balance, total
// funded in, total spent, and the resulting balance.
type ControlRow struct {
	BoxID          string          `json:"box_id"`
	Name           string          `json:"name"`
	Level          BoxLevel        `json:"level"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	TotalFunded    decimal.Decimal `json:"total_funded"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	Balance        decimal.Decimal `json:"balance"`
}
