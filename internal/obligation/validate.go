package obligation

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const maxNameLen = 120

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(name) > maxNameLen {
		return &ValidationError{Field: "name", Reason: "too long"}
	}
	return nil
}

func validateAmount(a decimal.Decimal) error {
	if !a.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	return nil
}

func validateCategory(c Category) error {
	if !c.Valid() {
		return &ValidationError{Field: "category", Reason: "unknown category " + string(c)}
	}
	return nil
}

func validateFrequency(f Frequency) error {
	if !f.Valid() {
		return &ValidationError{Field: "frequency", Reason: "must be daily, weekly, monthly or yearly"}
	}
	return nil
}

func validateDue(d Date) error {
	if d.IsZero() {
		return &ValidationError{Field: "nextDueDate", Reason: "is required"}
	}
	if !d.InRange() {
		return &ValidationError{Field: "nextDueDate", Reason: "must be between " + MinDate.String() + " and " + MaxDate.String()}
	}
	return nil
}

// Validate checks every field of the draft and joins all failures.
func (d Draft) Validate() error {
	return errors.Join(
		validateName(d.Name),
		validateAmount(d.Amount),
		validateCategory(d.Category),
		validateFrequency(d.Frequency),
		validateDue(d.NextDueDate),
	)
}

// Validate checks only the fields present in the patch.
func (p Patch) Validate() error {
	var errs []error
	if p.Name != nil {
		errs = append(errs, validateName(*p.Name))
	}
	if p.Amount != nil {
		errs = append(errs, validateAmount(*p.Amount))
	}
	if p.Category != nil {
		errs = append(errs, validateCategory(*p.Category))
	}
	if p.Frequency != nil {
		errs = append(errs, validateFrequency(*p.Frequency))
	}
	if p.NextDueDate != nil {
		errs = append(errs, validateDue(*p.NextDueDate))
	}
	return errors.Join(errs...)
}
