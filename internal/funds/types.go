package funds

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind classifies where an account's money lives.
type AccountKind string

const (
	KindBank           AccountKind = "bank"
	KindCash           AccountKind = "cash"
	KindInvestmentFund AccountKind = "investment_fund"
)

// Valid reports whether the kind is part of the closed set.
func (k AccountKind) Valid() bool {
	switch k {
	case KindBank, KindCash, KindInvestmentFund:
		return true
	}
	return false
}

// MovementCategory is the closed ingress/egress taxonomy for fund movements.
type MovementCategory string

const (
	CategoryContribution       MovementCategory = "contribution"
	CategoryDepositFunding     MovementCategory = "deposit_constitution"
	CategoryDepositInterest    MovementCategory = "deposit_interest"
	CategoryInvestorWithdrawal MovementCategory = "investor_withdrawal"
	CategoryBoxFunding         MovementCategory = "cashbox_funding"
	CategoryExchange           MovementCategory = "currency_exchange"
	CategoryTransfer           MovementCategory = "transfer"
	CategoryAdjustment         MovementCategory = "adjustment"
	CategoryOther              MovementCategory = "other"
)

// Valid reports whether the category is part of the closed set.
func (c MovementCategory) Valid() bool {
	switch c {
	case CategoryContribution, CategoryDepositFunding, CategoryDepositInterest,
		CategoryInvestorWithdrawal, CategoryBoxFunding, CategoryExchange,
		CategoryTransfer, CategoryAdjustment, CategoryOther:
		return true
	}
	return false
}

// Account is a named balance in one currency. An account without an investor
// is a house account; CashBoxID links the central petty-cash box this account
// funds, when any.
type Account struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           AccountKind     `json:"kind"`
	Currency       string          `json:"currency"`
	InvestorID     string          `json:"investor_id,omitempty"`
	CashBoxID      string          `json:"cash_box_id,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Balance        decimal.Decimal `json:"balance"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	CreatedBy      string          `json:"created_by"`
}

// FundMovement is an atomic transfer event. At least one endpoint is set:
// both = transfer, destination only = inflow, source only = outflow.
// Movements are immutable once created; deletion reverses both balance
// effects. Two movements sharing an ExchangeID form a currency-exchange pair
// and are deleted together.
type FundMovement struct {
	ID              string           `json:"id"`
	SourceAccountID string           `json:"source_account_id,omitempty"`
	DestAccountID   string           `json:"dest_account_id,omitempty"`
	Amount          decimal.Decimal  `json:"amount"`
	Currency        string           `json:"currency"`
	Date            time.Time        `json:"date"`
	Category        MovementCategory `json:"category"`
	Description     string           `json:"description,omitempty"`
	Reference       string           `json:"reference,omitempty"`
	InvestorID      string           `json:"investor_id,omitempty"`
	CashBoxID       string           `json:"cash_box_id,omitempty"`
	ExchangeID      string           `json:"exchange_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	CreatedBy       string           `json:"created_by"`
}

// IsTransfer reports whether both endpoints are set.
func (m *FundMovement) IsTransfer() bool {
	return m.SourceAccountID != "" && m.DestAccountID != ""
}

// ConsistencyResult compares an account's stored balance against the balance
// recomputed from its movement history.
type ConsistencyResult struct {
	AccountID  string          `json:"account_id"`
	Name       string          `json:"name"`
	Expected   decimal.Decimal `json:"expected_balance"`
	Actual     decimal.Decimal `json:"actual_balance"`
	Consistent bool            `json:"is_consistent"`
}
