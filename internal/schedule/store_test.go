package schedule

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/history"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.April, 3, 9, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(repo repository.Repository) *Store {
	return NewStore(repo,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs()),
	)
}

func memStore() *Store {
	return newTestStore(repository.NewFallback(nil, repository.NewCacheRepo(repository.NewMemoryKV(), "")))
}

func streaming(due obligation.Date) obligation.Draft {
	return obligation.Draft{
		Name:        "Streaming Service",
		Amount:      decimal.NewFromInt(15),
		Category:    obligation.CategorySubscriptions,
		Frequency:   obligation.Weekly,
		NextDueDate: due,
		IsActive:    true,
	}
}

func TestCreateAssignsIdentity(t *testing.T) {
	s := memStore()
	ctx := context.Background()

	d := streaming(obligation.NewDate(2025, time.April, 3))
	d.Name = "  Streaming Service "
	ob, err := s.Create(ctx, "user-1", d)
	require.NoError(t, err)
	require.Equal(t, "id-1", ob.ID)
	require.Equal(t, "user-1", ob.OwnerID)
	require.Equal(t, "Streaming Service", ob.Name)
	require.True(t, fixedNow.Equal(ob.CreatedAt))

	got, err := s.Get(ctx, "user-1", ob.ID)
	require.NoError(t, err)
	require.Equal(t, ob.ID, got.ID)
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	s := memStore()
	d := streaming(obligation.NewDate(2025, time.April, 3))
	d.Amount = decimal.Zero
	_, err := s.Create(context.Background(), "user-1", d)
	require.ErrorIs(t, err, obligation.ErrValidation)

	_, err = s.Create(context.Background(), " ", streaming(obligation.NewDate(2025, time.April, 3)))
	require.ErrorIs(t, err, obligation.ErrValidation)
}

func TestListKeepsInsertionOrder(t *testing.T) {
	s := memStore()
	ctx := context.Background()
	for _, name := range []string{"Rent", "Gym", "Netflix"} {
		d := streaming(obligation.NewDate(2025, time.May, 1))
		d.Name = name
		_, err := s.Create(ctx, "user-1", d)
		require.NoError(t, err)
	}
	list, err := s.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "Rent", list[0].Name)
	require.Equal(t, "Netflix", list[2].Name)

	other, err := s.List(ctx, "user-2")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestExecuteStreamingService(t *testing.T) {
	s := memStore()
	ctx := context.Background()
	due := obligation.NewDate(2025, time.April, 3)
	ob, err := s.Create(ctx, "user-1", streaming(due))
	require.NoError(t, err)

	occ, err := s.Execute(ctx, "user-1", ob.ID, ExecuteOptions{})
	require.NoError(t, err)
	require.True(t, occ.Amount.Equal(decimal.NewFromInt(15)))
	require.Equal(t, obligation.CategorySubscriptions, occ.Category)
	require.Equal(t, "2025-04-03", occ.ScheduledDate.String())
	require.True(t, fixedNow.Equal(occ.ExecutedAt))

	got, err := s.Get(ctx, "user-1", ob.ID)
	require.NoError(t, err)
	require.Equal(t, "2025-04-10", got.NextDueDate.String())
	require.True(t, got.IsActive)

	hist, err := s.History(ctx, "user-1", history.Filter{})
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, ob.ID, hist[0].ObligationID)
}

func TestExecuteTwiceAdvancesTwice(t *testing.T) {
	s := memStore()
	ctx := context.Background()
	ob, err := s.Create(ctx, "user-1", streaming(obligation.NewDate(2025, time.January, 31)))
	require.NoError(t, err)
	_, err = s.Update(ctx, "user-1", ob.ID, obligation.Patch{Frequency: ptr(obligation.Monthly)})
	require.NoError(t, err)

	_, err = s.Execute(ctx, "user-1", ob.ID, ExecuteOptions{})
	require.NoError(t, err)
	second, err := s.Execute(ctx, "user-1", ob.ID, ExecuteOptions{})
	require.NoError(t, err)
	require.Equal(t, "2025-02-28", second.ScheduledDate.String())

	got, err := s.Get(ctx, "user-1", ob.ID)
	require.NoError(t, err)
	require.Equal(t, "2025-03-28", got.NextDueDate.String())

	hist, err := s.History(ctx, "user-1", history.Filter{ObligationID: ob.ID})
	require.NoError(t, err)
	require.Len(t, hist, 2)
}

func TestExecuteExpectedDueGuard(t *testing.T) {
	s := memStore()
	ctx := context.Background()
	due := obligation.NewDate(2025, time.April, 3)
	ob, err := s.Create(ctx, "user-1", streaming(due))
	require.NoError(t, err)

	_, err = s.Execute(ctx, "user-1", ob.ID, ExecuteOptions{ExpectedDue: &due})
	require.NoError(t, err)
	_, err = s.Execute(ctx, "user-1", ob.ID, ExecuteOptions{ExpectedDue: &due})
	require.ErrorIs(t, err, obligation.ErrStaleCycle)

	hist, err := s.History(ctx, "user-1", history.Filter{})
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestExecuteInactiveStillAdvances(t *testing.T) {
	s := memStore()
	ctx := context.Background()
	d := streaming(obligation.NewDate(2025, time.April, 3))
	d.IsActive = false
	ob, err := s.Create(ctx, "user-1", d)
	require.NoError(t, err)

	_, err = s.Execute(ctx, "user-1", ob.ID, ExecuteOptions{})
	require.NoError(t, err)
	got, err := s.Get(ctx, "user-1", ob.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestToggleTwiceRestores(t *testing.T) {
	s := memStore()
	ctx := context.Background()
	ob, err := s.Create(ctx, "user-1", streaming(obligation.NewDate(2025, time.April, 3)))
	require.NoError(t, err)

	first, err := s.ToggleActive(ctx, "user-1", ob.ID)
	require.NoError(t, err)
	require.False(t, first.IsActive)
	second, err := s.ToggleActive(ctx, "user-1", ob.ID)
	require.NoError(t, err)
	require.Equal(t, ob.IsActive, second.IsActive)
	require.Equal(t, ob.Name, second.Name)
	require.True(t, ob.Amount.Equal(second.Amount))
	require.True(t, ob.NextDueDate.Equal(second.NextDueDate))
}

func TestUpdateMergesOnlySuppliedFields(t *testing.T) {
	s := memStore()
	ctx := context.Background()
	ob, err := s.Create(ctx, "user-1", streaming(obligation.NewDate(2025, time.April, 3)))
	require.NoError(t, err)

	amt := decimal.RequireFromString("17.99")
	got, err := s.Update(ctx, "user-1", ob.ID, obligation.Patch{Amount: &amt})
	require.NoError(t, err)
	require.True(t, got.Amount.Equal(amt))
	require.Equal(t, ob.Name, got.Name)
	require.Equal(t, ob.Frequency, got.Frequency)

	bad := ""
	_, err = s.Update(ctx, "user-1", ob.ID, obligation.Patch{Name: &bad})
	require.ErrorIs(t, err, obligation.ErrValidation)

	_, err = s.Update(ctx, "user-1", ob.ID, obligation.Patch{})
	var ve *obligation.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "patch", ve.Field)
}

func TestHistoryFilterAndPaid(t *testing.T) {
	s := memStore()
	ctx := context.Background()
	ob, err := s.Create(ctx, "user-1", streaming(obligation.NewDate(2025, time.April, 3)))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = s.Execute(ctx, "user-1", ob.ID, ExecuteOptions{})
		require.NoError(t, err)
	}

	today := obligation.DateOf(fixedNow)
	hist, err := s.History(ctx, "user-1", history.Filter{From: today, To: today})
	require.NoError(t, err)
	require.Len(t, hist, 3)
	hist, err = s.History(ctx, "user-1", history.Filter{From: today.AddDays(1)})
	require.NoError(t, err)
	require.Empty(t, hist)

	_, err = s.History(ctx, "user-1", history.Filter{From: today, To: today.AddDays(-1)})
	require.ErrorIs(t, err, obligation.ErrValidation)

	paid, err := s.Paid(ctx, "user-1", history.Filter{ObligationID: ob.ID})
	require.NoError(t, err)
	require.Equal(t, 3, paid.Count)
	require.Equal(t, "45.00", paid.Total)
	require.Equal(t, obligation.CategorySubscriptions, paid.ByCategory[0].Category)
}

func TestMissingIDIsNotFound(t *testing.T) {
	s := memStore()
	ctx := context.Background()

	_, err := s.Update(ctx, "user-1", "nope", obligation.Patch{IsActive: ptr(false)})
	require.ErrorIs(t, err, obligation.ErrNotFound)
	_, err = s.ToggleActive(ctx, "user-1", "nope")
	require.ErrorIs(t, err, obligation.ErrNotFound)
	_, err = s.Execute(ctx, "user-1", "nope", ExecuteOptions{})
	require.ErrorIs(t, err, obligation.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, "user-1", "nope"), obligation.ErrNotFound)

	list, err := s.List(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestDeleteKeepsHistory(t *testing.T) {
	s := memStore()
	ctx := context.Background()
	ob, err := s.Create(ctx, "user-1", streaming(obligation.NewDate(2025, time.April, 3)))
	require.NoError(t, err)
	_, err = s.Execute(ctx, "user-1", ob.ID, ExecuteOptions{})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "user-1", ob.ID))
	hist, err := s.History(ctx, "user-1", history.Filter{ObligationID: ob.ID})
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestUpcomingAndCalendar(t *testing.T) {
	s := memStore()
	ctx := context.Background()
	asOf := obligation.NewDate(2025, time.April, 3)

	weekly, err := s.Create(ctx, "user-1", streaming(asOf.AddDays(2)))
	require.NoError(t, err)
	far := streaming(asOf.AddDays(30))
	far.Name = "Insurance"
	_, err = s.Create(ctx, "user-1", far)
	require.NoError(t, err)
	late := streaming(asOf.AddDays(-3))
	late.Name = "Late"
	_, err = s.Create(ctx, "user-1", late)
	require.NoError(t, err)

	up, err := s.Upcoming(ctx, "user-1", DefaultUpcomingDays, asOf)
	require.NoError(t, err)
	require.Len(t, up, 1)
	require.Equal(t, weekly.ID, up[0].ID)

	cal, err := s.Calendar(ctx, "user-1", 14, asOf)
	require.NoError(t, err)
	// streaming on +2 and +9, late projected to +4 and +11
	require.Len(t, cal, 4)
	require.Equal(t, "2025-04-05", cal[0].Date.String())
	require.Equal(t, "Streaming Service", cal[0].Name)
	require.Equal(t, "2025-04-07", cal[1].Date.String())
	require.Equal(t, "Late", cal[1].Name)
	require.Equal(t, "15.00", cal[0].Amount)

	_, err = s.Upcoming(ctx, "user-1", -1, asOf)
	require.ErrorIs(t, err, obligation.ErrValidation)
}

func TestReport(t *testing.T) {
	s := memStore()
	ctx := context.Background()
	_, err := s.Create(ctx, "user-1", streaming(obligation.NewDate(2025, time.April, 3)))
	require.NoError(t, err)

	r, err := s.Report(ctx, "user-1", obligation.NewDate(2025, time.April, 3))
	require.NoError(t, err)
	require.Equal(t, 1, r.ActiveCount)
	require.Equal(t, "64.95", r.TotalMonthly)
	require.Len(t, r.DueSoon, 1)
}

func TestExecuteAtCalendarEndKeepsListReadable(t *testing.T) {
	s := memStore()
	ctx := context.Background()

	d := streaming(obligation.NewDate(9999, time.December, 15))
	d.Frequency = obligation.Yearly
	last, err := s.Create(ctx, "user-1", d)
	require.NoError(t, err)
	other, err := s.Create(ctx, "user-1", streaming(obligation.NewDate(2025, time.April, 3)))
	require.NoError(t, err)

	_, err = s.Execute(ctx, "user-1", last.ID, ExecuteOptions{})
	require.ErrorIs(t, err, obligation.ErrValidation)

	list, err := s.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "9999-12-15", list[0].NextDueDate.String())
	_, err = s.ToggleActive(ctx, "user-1", other.ID)
	require.NoError(t, err)

	d.NextDueDate = obligation.NewDate(9999, time.December, 31).AddDays(1)
	_, err = s.Create(ctx, "user-1", d)
	require.ErrorIs(t, err, obligation.ErrValidation)
}

// downRepo fails every call, standing in for an unreachable remote.
type downRepo struct{}

var errRemoteDown = errors.New("server selection timeout")

func (downRepo) List(context.Context, string) ([]obligation.Obligation, error) {
	return nil, errRemoteDown
}
func (downRepo) Get(context.Context, string, string) (*obligation.Obligation, error) {
	return nil, errRemoteDown
}
func (downRepo) Create(context.Context, obligation.Obligation) error { return errRemoteDown }
func (downRepo) Mutate(context.Context, string, string, repository.MutateFunc) (*obligation.Obligation, error) {
	return nil, errRemoteDown
}
func (downRepo) Delete(context.Context, string, string) error { return errRemoteDown }
func (downRepo) Execute(context.Context, string, string, repository.ExecuteFunc) (*obligation.Obligation, *obligation.Occurrence, error) {
	return nil, nil, errRemoteDown
}
func (downRepo) ListOccurrences(context.Context, string) ([]obligation.Occurrence, error) {
	return nil, errRemoteDown
}

func TestRemoteDownFallsBackToLocal(t *testing.T) {
	local := repository.NewCacheRepo(repository.NewMemoryKV(), "")
	s := newTestStore(repository.NewFallback(downRepo{}, local))
	ctx := context.Background()

	ob, err := s.Create(ctx, "user-1", streaming(obligation.NewDate(2025, time.April, 3)))
	require.NoError(t, err)
	require.Equal(t, repository.TierLocal, s.Tier("user-1"))

	list, err := s.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, ob.ID, list[0].ID)

	_, err = s.Execute(ctx, "user-1", ob.ID, ExecuteOptions{})
	require.NoError(t, err)
	hist, err := local.ListOccurrences(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func ptr[T any](v T) *T { return &v }
