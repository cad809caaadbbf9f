package cpm

import (
	"errors"
	"fmt"
)

var (
	ErrAnchorRequired        = errors.New("anchorWorkItemId is required for cascade mode")
	ErrUnknownMode           = errors.New("unknown schedule mode")
	ErrUnknownDependencyType = errors.New("unknown dependency type")
	ErrDuplicateWorkItem     = errors.New("duplicate work item id")
	ErrNegativeDuration      = errors.New("durationDays must not be negative")
	ErrDayCountOutOfRange    = errors.New("day count out of range")
)

// ValidationError reports malformed ScheduleParams. It unwraps to one of the
// sentinel errors above. Field is empty when the sentinel already names it.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err was caused by invalid input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
