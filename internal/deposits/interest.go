package deposits

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/treasury-core/internal/money"
)

var (
	hundred     = decimal.NewFromInt(100)
	daysPerYear = decimal.NewFromInt(365)
)

// Interest computes the interest earned by principal at ratePct percent per
// year over days days. Simple interest is exact decimal arithmetic; compound
// interest goes through a float64 exponentiation before converting back.
// Non-positive principal or day counts earn nothing.
func Interest(principal, ratePct decimal.Decimal, days int, method InterestMethod) decimal.Decimal {
	if !principal.IsPositive() || days <= 0 {
		return decimal.Zero
	}

	switch method {
	case Compound:
		rate, _ := ratePct.Div(hundred).Float64()
		exponent := float64(days) / 365.0
		factor := math.Pow(1+rate, exponent) - 1
		return principal.Mul(decimal.NewFromFloat(factor))
	default:
		return principal.
			Mul(ratePct).Div(hundred).
			Mul(decimal.NewFromInt(int64(days))).Div(daysPerYear)
	}
}

// SchedulePlan carries what GenerateSchedule needs from a deposit.
type SchedulePlan struct {
	Principal   decimal.Decimal
	RatePct     decimal.Decimal
	Method      InterestMethod
	Frequency   PaymentFrequency
	Disposition Disposition
	StartDate   time.Time
	Maturity    time.Time
}

// GenerateSchedule projects the interest payment schedule of a deposit. An
// at-maturity deposit gets a single entry; periodic frequencies step in
// whole months from the start date, with the final period clamped to the
// maturity date even when that leaves it shorter. Under a capitalize
// disposition the projected principal grows with each entry. Estimated
// interest is rounded to 2 decimals per entry.
func GenerateSchedule(plan SchedulePlan) []ScheduleEntry {
	if plan.Frequency == AtMaturity || plan.Frequency.IntervalMonths() == 0 {
		days := money.DaysBetween(plan.StartDate, plan.Maturity)
		return []ScheduleEntry{{
			Seq:               1,
			Date:              plan.Maturity,
			EstimatedInterest: money.Round2(Interest(plan.Principal, plan.RatePct, days, plan.Method)),
			State:             EntryPending,
		}}
	}

	interval := plan.Frequency.IntervalMonths()
	principal := plan.Principal
	periodStart := plan.StartDate

	var entries []ScheduleEntry
	for seq := 1; ; seq++ {
		date := money.AddMonths(plan.StartDate, interval*seq)
		if date.After(plan.Maturity) {
			date = plan.Maturity
		}

		days := money.DaysBetween(periodStart, date)
		interest := money.Round2(Interest(principal, plan.RatePct, days, plan.Method))
		entries = append(entries, ScheduleEntry{
			Seq:               seq,
			Date:              date,
			EstimatedInterest: interest,
			State:             EntryPending,
		})

		if plan.Disposition == Capitalize {
			principal = principal.Add(interest)
		}
		if !date.Before(plan.Maturity) {
			return entries
		}
		periodStart = date
	}
}
