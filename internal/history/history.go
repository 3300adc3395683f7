// Package history holds the append-only record of executed occurrences.
//
// Occurrences are written by the storage tier that serves an execute; this
// package builds the snapshot record and serves the ordered read model.
package history

import (
	"context"
	"sort"
	"time"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
	"github.com/shopspring/decimal"
)

// Record snapshots ob as fulfilled at the given instant. ScheduledDate is
// the due date ob carried before it was advanced.
func Record(ob obligation.Obligation, at time.Time, id string) obligation.Occurrence {
	return obligation.Occurrence{
		ID:            id,
		ObligationID:  ob.ID,
		OwnerID:       ob.OwnerID,
		Name:          ob.Name,
		Amount:        ob.Amount,
		Category:      ob.Category,
		ExecutedAt:    at.UTC(),
		ScheduledDate: ob.NextDueDate,
	}
}

// Source is anything that can return an owner's raw occurrence list.
type Source interface {
	ListOccurrences(ctx context.Context, ownerID string) ([]obligation.Occurrence, error)
}

// Log serves an owner's history newest first.
type Log struct {
	src Source
}

func NewLog(src Source) *Log { return &Log{src: src} }

func (l *Log) List(ctx context.Context, ownerID string) ([]obligation.Occurrence, error) {
	occs, err := l.src.ListOccurrences(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]obligation.Occurrence, len(occs))
	copy(out, occs)
	Sort(out)
	return out, nil
}

// Sort orders occurrences by ExecutedAt descending, ties by ID.
func Sort(occs []obligation.Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		if !occs[i].ExecutedAt.Equal(occs[j].ExecutedAt) {
			return occs[i].ExecutedAt.After(occs[j].ExecutedAt)
		}
		return occs[i].ID > occs[j].ID
	})
}

// ForObligation keeps the occurrences that originated from obligationID.
func ForObligation(occs []obligation.Occurrence, obligationID string) []obligation.Occurrence {
	out := make([]obligation.Occurrence, 0, len(occs))
	for _, o := range occs {
		if o.ObligationID == obligationID {
			out = append(out, o)
		}
	}
	return out
}

// Between keeps occurrences executed in [from, to). A zero bound is open.
func Between(occs []obligation.Occurrence, from, to time.Time) []obligation.Occurrence {
	out := make([]obligation.Occurrence, 0, len(occs))
	for _, o := range occs {
		if !from.IsZero() && o.ExecutedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !o.ExecutedAt.Before(to) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Total sums the amounts paid across occs.
func Total(occs []obligation.Occurrence) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range occs {
		sum = sum.Add(o.Amount)
	}
	return sum
}

// Filter narrows a history read. Zero fields match everything; From and To
// are inclusive UTC days of ExecutedAt.
type Filter struct {
	ObligationID string
	From, To     obligation.Date
}

// Apply returns the occurrences of occs that match f, keeping their order.
func (f Filter) Apply(occs []obligation.Occurrence) []obligation.Occurrence {
	if f.ObligationID != "" {
		occs = ForObligation(occs, f.ObligationID)
	}
	var from, to time.Time
	if !f.From.IsZero() {
		from = f.From.Time()
	}
	if !f.To.IsZero() {
		to = f.To.AddDays(1).Time()
	}
	if from.IsZero() && to.IsZero() {
		return occs
	}
	return Between(occs, from, to)
}

// CategoryPaid is the amount paid in one category, rounded to cents.
type CategoryPaid struct {
	Category obligation.Category `json:"category"`
	Total    string              `json:"total"`
}

// Summary is the paid-to-date view of a set of occurrences.
type Summary struct {
	Count      int            `json:"count"`
	Total      string         `json:"total"`
	ByCategory []CategoryPaid `json:"byCategory"`
}

// Summarize totals occs overall and per category, largest category first
// (ties by name).
func Summarize(occs []obligation.Occurrence) Summary {
	sums := ByCategory(occs)
	cats := make([]obligation.Category, 0, len(sums))
	for c := range sums {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if c := sums[cats[i]].Cmp(sums[cats[j]]); c != 0 {
			return c > 0
		}
		return cats[i] < cats[j]
	})
	lines := make([]CategoryPaid, 0, len(cats))
	for _, c := range cats {
		lines = append(lines, CategoryPaid{Category: c, Total: sums[c].StringFixed(2)})
	}
	return Summary{Count: len(occs), Total: Total(occs).StringFixed(2), ByCategory: lines}
}

// ByCategory sums the amounts paid per category.
func ByCategory(occs []obligation.Occurrence) map[obligation.Category]decimal.Decimal {
	out := make(map[obligation.Category]decimal.Decimal)
	for _, o := range occs {
		out[o.Category] = out[o.Category].Add(o.Amount)
	}
	return out
}
