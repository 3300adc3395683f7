package analytics

import (
	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
	"github.com/shopspring/decimal"
)

// Options tunes Summarize. Zero values fall back to the defaults below.
type Options struct {
	DueSoonDays   int
	TopCategories int
}

const defaultTopCategories = 5

func (o Options) withDefaults() Options {
	if o.DueSoonDays <= 0 {
		o.DueSoonDays = DueSoonDays
	}
	if o.TopCategories <= 0 {
		o.TopCategories = defaultTopCategories
	}
	return o
}

// CategoryLine is a presented CategoryTotal with its share of the monthly
// total, both rounded to cents.
type CategoryLine struct {
	Category obligation.Category `json:"category"`
	Monthly  string              `json:"monthly"`
	Count    int                 `json:"count"`
	Share    string              `json:"sharePercent"`
}

type FrequencyLine struct {
	Frequency obligation.Frequency `json:"frequency"`
	Amount    string               `json:"amount"`
	Count     int                  `json:"count"`
}

// Report is the presented analytics read model. Money is rendered with two
// decimals; the figures underneath stay exact until this point.
type Report struct {
	AsOf             obligation.Date         `json:"asOf"`
	ActiveCount      int                     `json:"activeCount"`
	InactiveCount    int                     `json:"inactiveCount"`
	TotalMonthly     string                  `json:"totalMonthly"`
	AnnualCommitment string                  `json:"annualCommitment"`
	AverageMonthly   string                  `json:"averageMonthly"`
	PausedMonthly    string                  `json:"pausedMonthly"`
	Largest          *obligation.Obligation  `json:"largest"`
	Overdue          []obligation.Obligation `json:"overdue"`
	DueSoon          []obligation.Obligation `json:"dueSoon"`
	Paused           []obligation.Obligation `json:"paused"`
	Categories       []CategoryLine          `json:"categories"`
	TopCategories    []CategoryLine          `json:"topCategories"`
	Frequencies      []FrequencyLine         `json:"frequencies"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// Summarize computes every analytics view for the snapshot as of asOf.
func Summarize(obs []obligation.Obligation, asOf obligation.Date, opts Options) Report {
	opts = opts.withDefaults()
	total := TotalMonthly(obs)
	in := Insight(obs)

	r := Report{
		AsOf:             asOf,
		TotalMonthly:     money(total),
		AnnualCommitment: money(in.AnnualCommitment),
		AverageMonthly:   money(in.AverageMonthly),
		PausedMonthly:    money(PausedMonthly(obs)),
		Largest:          in.Largest,
		Overdue:          Overdue(obs, asOf),
		DueSoon:          DueWithin(obs, opts.DueSoonDays, asOf),
		Paused:           []obligation.Obligation{},
		Categories:       []CategoryLine{},
		Frequencies:      []FrequencyLine{},
	}
	for _, ob := range obs {
		if ob.IsActive {
			r.ActiveCount++
		} else {
			r.InactiveCount++
			r.Paused = append(r.Paused, ob)
		}
	}
	for _, ct := range CategoryBreakdown(obs) {
		r.Categories = append(r.Categories, CategoryLine{
			Category: ct.Category,
			Monthly:  money(ct.Monthly),
			Count:    ct.Count,
			Share:    money(Share(ct.Monthly, total)),
		})
	}
	top := opts.TopCategories
	if top > len(r.Categories) {
		top = len(r.Categories)
	}
	r.TopCategories = r.Categories[:top]
	for _, ft := range FrequencyBreakdown(obs) {
		r.Frequencies = append(r.Frequencies, FrequencyLine{
			Frequency: ft.Frequency,
			Amount:    money(ft.Amount),
			Count:     ft.Count,
		})
	}
	return r
}
