// Package money holds the small numeric and date helpers shared by the
// treasury services. All monetary values are shopspring decimals; amounts
// shown to users are rounded to 2 decimals at computation boundaries.
package money

import (
	"time"

	"github.com/shopspring/decimal"
)

// Round2 rounds a monetary amount to 2 decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DaysBetween returns the number of whole days from a to b. Hours are
// truncated, so same-day timestamps count as zero days.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// AddMonths advances t by the given number of months, clamping to the last
// day of the target month (Jan 31 + 1 month = Feb 28/29, not Mar 3).
func AddMonths(t time.Time, months int) time.Time {
	target := t.AddDate(0, months, 0)
	// AddDate normalizes overflow days into the next month; detect and clamp.
	if target.Day() != t.Day() {
		target = time.Date(target.Year(), target.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, 0, -1)
	}
	return target
}
