// Package recurrence advances due dates along a fixed cadence.
//
// Month and year steps keep the day of month when the target month has it
// and otherwise clamp to that month's last day, so Jan 31 becomes Feb 28
// (or 29) and Feb 29 becomes Feb 28 of the following year. The step is
// computed from the given date alone; a date that was clamped once stays on
// the shorter day afterwards.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
)

// Next returns the due date that follows due for the given cadence. A step
// past obligation.MaxDate is a validation error.
func Next(due obligation.Date, f obligation.Frequency) (obligation.Date, error) {
	var next obligation.Date
	switch f {
	case obligation.Daily:
		next = due.AddDays(1)
	case obligation.Weekly:
		next = due.AddDays(7)
	case obligation.Monthly:
		next = addMonths(due, 1)
	case obligation.Yearly:
		next = addMonths(due, 12)
	default:
		return obligation.Date{}, fmt.Errorf("%w: %q", obligation.ErrInvalidFrequency, string(f))
	}
	if next.After(obligation.MaxDate) {
		return obligation.Date{}, &obligation.ValidationError{
			Field:  "nextDueDate",
			Reason: fmt.Sprintf("advancing %s %s passes %s", due, f, obligation.MaxDate),
		}
	}
	return next, nil
}

// Until lists the due dates starting at first (inclusive) that fall on or
// before last, stopping after max entries or at obligation.MaxDate.
func Until(first obligation.Date, f obligation.Frequency, last obligation.Date, max int) ([]obligation.Date, error) {
	var out []obligation.Date
	d := first
	for len(out) < max && !d.After(last) {
		out = append(out, d)
		n, err := Next(d, f)
		if errors.Is(err, obligation.ErrValidation) {
			break
		}
		if err != nil {
			return nil, err
		}
		d = n
	}
	return out, nil
}

func addMonths(d obligation.Date, n int) obligation.Date {
	// day 1 never overflows, so time.Date normalises only the month/year
	first := time.Date(d.Year(), d.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	dd := d.Day()
	if last := daysIn(first.Year(), first.Month()); dd > last {
		dd = last
	}
	return obligation.NewDate(first.Year(), first.Month(), dd)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
