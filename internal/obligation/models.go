package obligation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the cadence on which an obligation falls due.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Frequencies lists every supported cadence, shortest first.
var Frequencies = []Frequency{Daily, Weekly, Monthly, Yearly}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// ParseFrequency accepts any casing of the four cadence names.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return f, nil
}

func (f *Frequency) UnmarshalText(b []byte) error {
	v, err := ParseFrequency(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Category is one label of the fixed spending catalog.
type Category string

const (
	CategoryHousing        Category = "Housing"
	CategoryFood           Category = "Food & Dining"
	CategoryTransportation Category = "Transportation"
	CategoryShopping       Category = "Shopping"
	CategoryEntertainment  Category = "Entertainment"
	CategoryBills          Category = "Bills & Utilities"
	CategoryHealthcare     Category = "Healthcare"
	CategoryEducation      Category = "Education"
	CategoryTravel         Category = "Travel"
	CategoryInsurance      Category = "Insurance"
	CategorySubscriptions  Category = "Subscriptions"
	CategoryOther          Category = "Other"
)

// Categories is the catalog in display order.
var Categories = []Category{
	CategoryHousing,
	CategoryFood,
	CategoryTransportation,
	CategoryShopping,
	CategoryEntertainment,
	CategoryBills,
	CategoryHealthcare,
	CategoryEducation,
	CategoryTravel,
	CategoryInsurance,
	CategorySubscriptions,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// ParseCategory maps a label to its canonical catalog entry, ignoring case.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, k := range Categories {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrValidation, s)
}

// Obligation is a recurring financial commitment owned by a single user.
type Obligation struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"ownerId"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`
	Frequency   Frequency       `json:"frequency"`
	NextDueDate Date            `json:"nextDueDate"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Occurrence is one fulfilled instance of an obligation. Name, Amount and
// Category are copied at execution time and never change afterwards.
type Occurrence struct {
	ID            string          `json:"id"`
	ObligationID  string          `json:"obligationId"`
	OwnerID       string          `json:"ownerId"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	Category      Category        `json:"category"`
	ExecutedAt    time.Time       `json:"executedAt"`
	ScheduledDate Date            `json:"scheduledDate"`
}

// Draft carries the caller-supplied fields of a new obligation.
type Draft struct {
	Name        string
	Amount      decimal.Decimal
	Category    Category
	Frequency   Frequency
	NextDueDate Date
	IsActive    bool
}

// Patch holds the fields of a partial update; nil fields are left untouched.
type Patch struct {
	Name        *string
	Amount      *decimal.Decimal
	Category    *Category
	Frequency   *Frequency
	NextDueDate *Date
	IsActive    *bool
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Amount == nil && p.Category == nil &&
		p.Frequency == nil && p.NextDueDate == nil && p.IsActive == nil
}

// Apply returns ob with every supplied field of p merged in.
func (p Patch) Apply(ob Obligation) Obligation {
	if p.Name != nil {
		ob.Name = strings.TrimSpace(*p.Name)
	}
	if p.Amount != nil {
		ob.Amount = *p.Amount
	}
	if p.Category != nil {
		ob.Category = *p.Category
	}
	if p.Frequency != nil {
		ob.Frequency = *p.Frequency
	}
	if p.NextDueDate != nil {
		ob.NextDueDate = *p.NextDueDate
	}
	if p.IsActive != nil {
		ob.IsActive = *p.IsActive
	}
	return ob
}
