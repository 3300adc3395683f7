// Package schedule is the command side of scheduled obligations: it owns
// validation, identifier assignment and the execute cycle, and delegates
// persistence to a repository.Repository.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/analytics"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/history"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation/repository"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/recurrence"
	"github.com/personalfinance/finance/backend/go-scheduler/pkg/logger"
)

const (
	DefaultUpcomingDays = 7
	// MaxHorizonDays bounds upcoming and calendar projections.
	MaxHorizonDays = 366
)

// ExecuteOptions guards an execute. When ExpectedDue is set the call is
// rejected with obligation.ErrStaleCycle unless the stored due date still
// equals it.
type ExecuteOptions struct {
	ExpectedDue *obligation.Date
}

// Store is the ScheduleStore: the single entry point for reading and
// changing an owner's scheduled obligations.
type Store struct {
	repo      repository.Repository
	history   *history.Log
	now       func() time.Time
	newID     func() string
	analytics analytics.Options
	upcoming  int
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithIDGenerator replaces uuid.NewString for obligation and occurrence ids.
func WithIDGenerator(f func() string) Option { return func(s *Store) { s.newID = f } }

func WithAnalytics(o analytics.Options) Option { return func(s *Store) { s.analytics = o } }

// WithUpcomingDays sets the horizon used when a caller gives none.
func WithUpcomingDays(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.upcoming = n
		}
	}
}

func NewStore(repo repository.Repository, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		history:  history.NewLog(repo),
		now:      time.Now,
		newID:    uuid.NewString,
		upcoming: DefaultUpcomingDays,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func checkOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return &obligation.ValidationError{Field: "owner", Reason: "missing"}
	}
	return nil
}

// UpcomingDays is the default horizon of Upcoming.
func (s *Store) UpcomingDays() int { return s.upcoming }

// Today is the store clock's current calendar day in UTC.
func (s *Store) Today() obligation.Date { return obligation.DateOf(s.now().UTC()) }

// Tier reports which storage tier served the owner's last call, when the
// repository tracks it.
func (s *Store) Tier(ownerID string) repository.Tier {
	if t, ok := s.repo.(interface{ LastTier(string) repository.Tier }); ok {
		return t.LastTier(ownerID)
	}
	return repository.TierNone
}

// List returns the owner's obligations in insertion order.
func (s *Store) List(ctx context.Context, ownerID string) ([]obligation.Obligation, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ownerID)
}

// Snapshot is the current set fed to analytics.
func (s *Store) Snapshot(ctx context.Context, ownerID string) ([]obligation.Obligation, error) {
	return s.List(ctx, ownerID)
}

func (s *Store) Get(ctx context.Context, ownerID, id string) (obligation.Obligation, error) {
	if err := checkOwner(ownerID); err != nil {
		return obligation.Obligation{}, err
	}
	ob, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return obligation.Obligation{}, err
	}
	return *ob, nil
}

// Create validates the draft and stores it under a fresh id.
func (s *Store) Create(ctx context.Context, ownerID string, d obligation.Draft) (obligation.Obligation, error) {
	if err := checkOwner(ownerID); err != nil {
		return obligation.Obligation{}, err
	}
	if err := d.Validate(); err != nil {
		return obligation.Obligation{}, err
	}
	now := s.now().UTC()
	ob := obligation.Obligation{
		ID:          s.newID(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(d.Name),
		Amount:      d.Amount,
		Category:    d.Category,
		Frequency:   d.Frequency,
		NextDueDate: d.NextDueDate,
		IsActive:    d.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, ob); err != nil {
		return obligation.Obligation{}, err
	}
	logger.Infow("obligation created", logger.Fields{"owner": ownerID, "id": ob.ID, "tier": s.Tier(ownerID)})
	return ob, nil
}

func (s *Store) mutate(ctx context.Context, ownerID, id string, fn repository.MutateFunc) (obligation.Obligation, error) {
	if err := checkOwner(ownerID); err != nil {
		return obligation.Obligation{}, err
	}
	ob, err := s.repo.Mutate(ctx, ownerID, id, fn)
	if err != nil {
		return obligation.Obligation{}, err
	}
	return *ob, nil
}

// Update merges the supplied fields. Editing NextDueDate here is a user
// correction, not an advance, so it may move backwards.
func (s *Store) Update(ctx context.Context, ownerID, id string, p obligation.Patch) (obligation.Obligation, error) {
	if p.IsEmpty() {
		return obligation.Obligation{}, &obligation.ValidationError{Field: "patch", Reason: "no fields to update"}
	}
	if err := p.Validate(); err != nil {
		return obligation.Obligation{}, err
	}
	at := s.now().UTC()
	return s.mutate(ctx, ownerID, id, func(cur obligation.Obligation) (obligation.Obligation, error) {
		next := p.Apply(cur)
		next.UpdatedAt = at
		return next, nil
	})
}

func (s *Store) ToggleActive(ctx context.Context, ownerID, id string) (obligation.Obligation, error) {
	at := s.now().UTC()
	return s.mutate(ctx, ownerID, id, func(cur obligation.Obligation) (obligation.Obligation, error) {
		cur.IsActive = !cur.IsActive
		cur.UpdatedAt = at
		return cur, nil
	})
}

// Delete removes the obligation. Its history stays.
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	if err := checkOwner(ownerID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, ownerID, id)
}

// Execute records one fulfilled occurrence for the obligation's current
// due date and advances that date by one cycle. IsActive is not checked or
// changed.
func (s *Store) Execute(ctx context.Context, ownerID, id string, opts ExecuteOptions) (obligation.Occurrence, error) {
	if err := checkOwner(ownerID); err != nil {
		return obligation.Occurrence{}, err
	}
	at := s.now().UTC()
	occID := s.newID()
	_, occ, err := s.repo.Execute(ctx, ownerID, id, func(cur obligation.Obligation) (obligation.Obligation, obligation.Occurrence, error) {
		if opts.ExpectedDue != nil && !cur.NextDueDate.Equal(*opts.ExpectedDue) {
			return cur, obligation.Occurrence{}, fmt.Errorf("%w: due %s, expected %s",
				obligation.ErrStaleCycle, cur.NextDueDate, *opts.ExpectedDue)
		}
		next, err := recurrence.Next(cur.NextDueDate, cur.Frequency)
		if err != nil {
			return cur, obligation.Occurrence{}, err
		}
		rec := history.Record(cur, at, occID)
		cur.NextDueDate = next
		cur.UpdatedAt = at
		return cur, rec, nil
	})
	if err != nil {
		return obligation.Occurrence{}, err
	}
	logger.Infow("obligation executed", logger.Fields{
		"owner": ownerID, "id": id, "scheduled": occ.ScheduledDate, "tier": s.Tier(ownerID),
	})
	return *occ, nil
}

func checkHorizon(days int) error {
	if days < 0 || days > MaxHorizonDays {
		return &obligation.ValidationError{Field: "days", Reason: fmt.Sprintf("must be between 0 and %d", MaxHorizonDays)}
	}
	return nil
}

// Upcoming returns the active obligations due within days of asOf.
func (s *Store) Upcoming(ctx context.Context, ownerID string, days int, asOf obligation.Date) ([]obligation.Obligation, error) {
	if err := checkHorizon(days); err != nil {
		return nil, err
	}
	obs, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return analytics.DueWithin(obs, days, asOf), nil
}

// History returns the owner's occurrences matching f, newest first.
func (s *Store) History(ctx context.Context, ownerID string, f history.Filter) ([]obligation.Occurrence, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, &obligation.ValidationError{Field: "to", Reason: "is before from"}
	}
	occs, err := s.history.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return f.Apply(occs), nil
}

// Paid totals the owner's occurrences matching f.
func (s *Store) Paid(ctx context.Context, ownerID string, f history.Filter) (history.Summary, error) {
	occs, err := s.History(ctx, ownerID, f)
	if err != nil {
		return history.Summary{}, err
	}
	return history.Summarize(occs), nil
}

// Report computes the analytics read model for the owner's current set.
func (s *Store) Report(ctx context.Context, ownerID string, asOf obligation.Date) (analytics.Report, error) {
	obs, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return analytics.Report{}, err
	}
	return analytics.Summarize(obs, asOf, s.analytics), nil
}

// CalendarEntry is one projected due date.
type CalendarEntry struct {
	Date         obligation.Date     `json:"date"`
	ObligationID string              `json:"obligationId"`
	Name         string              `json:"name"`
	Amount       string              `json:"amount"`
	Category     obligation.Category `json:"category"`
}

// Calendar projects every due date of the active obligations that falls in
// [asOf, asOf+days], ordered by date then name. Overdue obligations start
// at their first projected date on or after asOf.
func (s *Store) Calendar(ctx context.Context, ownerID string, days int, asOf obligation.Date) ([]CalendarEntry, error) {
	if err := checkHorizon(days); err != nil {
		return nil, err
	}
	obs, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	last := asOf.AddDays(days)
	out := []CalendarEntry{}
	for _, ob := range obs {
		if !ob.IsActive {
			continue
		}
		dates, err := recurrence.Until(ob.NextDueDate, ob.Frequency, last, maxProjected(ob.NextDueDate, asOf, days))
		if err != nil {
			return nil, err
		}
		for _, d := range dates {
			if d.Before(asOf) {
				continue
			}
			out = append(out, CalendarEntry{
				Date:         d,
				ObligationID: ob.ID,
				Name:         ob.Name,
				Amount:       ob.Amount.StringFixed(2),
				Category:     ob.Category,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// maxProjected caps the walk from first to the end of the horizon; a daily
// cadence is the densest case.
func maxProjected(first, asOf obligation.Date, days int) int {
	n := days + 1
	if behind := first.DaysUntil(asOf); behind > 0 {
		n += behind
	}
	return n
}
