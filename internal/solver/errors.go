package solver

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMode         = errors.New("mode should be either standard or joint")
	ErrHorizonMismatch     = errors.New("the length of Q should be one less than T")
	ErrInvalidDistribution = errors.New("invalid demand distribution")
	ErrInvalidHorizon      = errors.New("invalid horizon")
	ErrOutOfRange          = errors.New("state out of range")
	ErrDepthExceeded       = errors.New("recursion depth exceeded")
)

// RangeError reports the state and the coordinate that fell outside the table.
type RangeError struct {
	State State
	Field string
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	v := 0
	switch e.Field {
	case "period":
		v = e.State.Period
	case "step":
		v = e.State.Step
	case "inventory":
		v = e.State.Inventory
	case "backlog":
		v = e.State.Backlog
	}
	return fmt.Sprintf("state %s out of range: %s=%d not in [%d, %d]", e.State, e.Field, v, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// IsConfigError reports whether err was raised while validating construction inputs.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrHorizonMismatch) ||
		errors.Is(err, ErrInvalidDistribution) ||
		errors.Is(err, ErrInvalidHorizon)
}
