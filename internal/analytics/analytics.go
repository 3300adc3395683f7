// Package analytics derives cost and due-date views from a snapshot of an
// owner's obligations. Nothing here is stored; every call recomputes from
// the slice it is given.
package analytics

import (
	"sort"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
	"github.com/shopspring/decimal"
)

// WeeksPerMonth is the weekly-to-monthly factor. It is kept as the exact
// decimal 4.33; rounding happens only when a Report is presented.
var WeeksPerMonth = decimal.RequireFromString("4.33")

var (
	daysPerMonth  = decimal.NewFromInt(30)
	monthsPerYear = decimal.NewFromInt(12)
)

// DueSoonDays is the lookahead of the due-soon bucket.
const DueSoonDays = 3

// MonthlyEquivalent normalises ob's amount to a monthly rate.
func MonthlyEquivalent(ob obligation.Obligation) decimal.Decimal {
	switch ob.Frequency {
	case obligation.Daily:
		return ob.Amount.Mul(daysPerMonth)
	case obligation.Weekly:
		return ob.Amount.Mul(WeeksPerMonth)
	case obligation.Yearly:
		return ob.Amount.Div(monthsPerYear)
	}
	return ob.Amount
}

func active(obs []obligation.Obligation) []obligation.Obligation {
	out := make([]obligation.Obligation, 0, len(obs))
	for _, ob := range obs {
		if ob.IsActive {
			out = append(out, ob)
		}
	}
	return out
}

// TotalMonthly sums the monthly equivalents of the active obligations.
func TotalMonthly(obs []obligation.Obligation) decimal.Decimal {
	sum := decimal.Zero
	for _, ob := range active(obs) {
		sum = sum.Add(MonthlyEquivalent(ob))
	}
	return sum
}

// DueWithin returns the active obligations due between asOf and asOf+days,
// both ends inclusive, in snapshot order.
func DueWithin(obs []obligation.Obligation, days int, asOf obligation.Date) []obligation.Obligation {
	out := []obligation.Obligation{}
	for _, ob := range active(obs) {
		if d := asOf.DaysUntil(ob.NextDueDate); d >= 0 && d <= days {
			out = append(out, ob)
		}
	}
	return out
}

// Overdue returns the active obligations whose due date is before asOf.
func Overdue(obs []obligation.Obligation, asOf obligation.Date) []obligation.Obligation {
	out := []obligation.Obligation{}
	for _, ob := range active(obs) {
		if asOf.DaysUntil(ob.NextDueDate) < 0 {
			out = append(out, ob)
		}
	}
	return out
}

func DueSoon(obs []obligation.Obligation, asOf obligation.Date) []obligation.Obligation {
	return DueWithin(obs, DueSoonDays, asOf)
}

// CategoryTotal is the monthly-equivalent spend of one category.
type CategoryTotal struct {
	Category obligation.Category
	Monthly  decimal.Decimal
	Count    int
}

// CategoryBreakdown groups active obligations by category, largest monthly
// spend first. Equal amounts are ordered by category name.
func CategoryBreakdown(obs []obligation.Obligation) []CategoryTotal {
	idx := make(map[obligation.Category]int)
	out := []CategoryTotal{}
	for _, ob := range active(obs) {
		i, ok := idx[ob.Category]
		if !ok {
			i = len(out)
			idx[ob.Category] = i
			out = append(out, CategoryTotal{Category: ob.Category, Monthly: decimal.Zero})
		}
		out[i].Monthly = out[i].Monthly.Add(MonthlyEquivalent(ob))
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Monthly.Cmp(out[j].Monthly); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// FrequencyTotal is the raw (not normalised) amount per cadence.
type FrequencyTotal struct {
	Frequency obligation.Frequency
	Amount    decimal.Decimal
	Count     int
}

// FrequencyBreakdown groups active obligations by frequency in
// daily, weekly, monthly, yearly order. Cadences with no obligation are
// left out.
func FrequencyBreakdown(obs []obligation.Obligation) []FrequencyTotal {
	sums := make(map[obligation.Frequency]*FrequencyTotal)
	for _, ob := range active(obs) {
		ft, ok := sums[ob.Frequency]
		if !ok {
			ft = &FrequencyTotal{Frequency: ob.Frequency, Amount: decimal.Zero}
			sums[ob.Frequency] = ft
		}
		ft.Amount = ft.Amount.Add(ob.Amount)
		ft.Count++
	}
	out := []FrequencyTotal{}
	for _, f := range obligation.Frequencies {
		if ft, ok := sums[f]; ok {
			out = append(out, *ft)
		}
	}
	return out
}

// Insights are the headline figures of the insights view.
type Insights struct {
	// Largest is the active obligation with the highest raw amount; the
	// first one wins a tie. Nil when nothing is active.
	Largest          *obligation.Obligation
	AnnualCommitment decimal.Decimal
	// AverageMonthly is the monthly total divided by the active count.
	AverageMonthly decimal.Decimal
}

func Insight(obs []obligation.Obligation) Insights {
	act := active(obs)
	total := TotalMonthly(act)
	in := Insights{
		AnnualCommitment: total.Mul(monthsPerYear),
		AverageMonthly:   decimal.Zero,
	}
	if len(act) == 0 {
		return in
	}
	in.AverageMonthly = total.Div(decimal.NewFromInt(int64(len(act))))
	largest := act[0]
	for _, ob := range act[1:] {
		if ob.Amount.GreaterThan(largest.Amount) {
			largest = ob
		}
	}
	in.Largest = &largest
	return in
}

// Share returns part as a percentage of total, or zero when total is zero.
func Share(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(decimal.NewFromInt(100))
}

// PausedMonthly is the monthly spend the inactive obligations would add if
// they were resumed.
func PausedMonthly(obs []obligation.Obligation) decimal.Decimal {
	sum := decimal.Zero
	for _, ob := range obs {
		if !ob.IsActive {
			sum = sum.Add(MonthlyEquivalent(ob))
		}
	}
	return sum
}
