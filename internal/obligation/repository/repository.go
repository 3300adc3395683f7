package repository

import (
	"context"
	"errors"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
)

// ErrUnavailable is returned when neither storage tier could serve a call.
var ErrUnavailable = errors.New("storage unavailable")

// MutateFunc transforms the stored obligation into its new state. It must be
// deterministic: the fallback path may run it a second time against the
// local copy.
type MutateFunc func(cur obligation.Obligation) (obligation.Obligation, error)

// ExecuteFunc advances an obligation and yields the occurrence to append.
type ExecuteFunc func(cur obligation.Obligation) (obligation.Obligation, obligation.Occurrence, error)

// Repository is one persistence tier for an owner's obligations and their
// execution history. Implementations return obligation.ErrNotFound for
// unknown ids and pass errors from a MutateFunc/ExecuteFunc through as is.
type Repository interface {
	List(ctx context.Context, ownerID string) ([]obligation.Obligation, error)
	Get(ctx context.Context, ownerID, id string) (*obligation.Obligation, error)
	Create(ctx context.Context, ob obligation.Obligation) error
	Mutate(ctx context.Context, ownerID, id string, fn MutateFunc) (*obligation.Obligation, error)
	Delete(ctx context.Context, ownerID, id string) error
	Execute(ctx context.Context, ownerID, id string, fn ExecuteFunc) (*obligation.Obligation, *obligation.Occurrence, error)
	ListOccurrences(ctx context.Context, ownerID string) ([]obligation.Occurrence, error)
}

// rejected reports errors that describe the request rather than the tier;
// retrying them elsewhere cannot succeed.
func rejected(err error) bool {
	return errors.Is(err, obligation.ErrValidation) ||
		errors.Is(err, obligation.ErrStaleCycle) ||
		errors.Is(err, obligation.ErrInvalidFrequency)
}
