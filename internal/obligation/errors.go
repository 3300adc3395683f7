package obligation

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("obligation not found")
	ErrValidation       = errors.New("invalid obligation")
	ErrInvalidFrequency = errors.New("unknown frequency")
	// ErrStaleCycle is returned when an execute names a due date the
	// obligation has already moved past.
	ErrStaleCycle = errors.New("due cycle already executed")
)

// ValidationError reports the offending field of a rejected draft or patch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
