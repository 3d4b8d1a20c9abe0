package timeseries

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is matched by every error caused by a series that is
// too short for the requested operation.
var ErrInsufficientData = errors.New("insufficient data")

// ErrUnsorted is returned when timestamps are not strictly increasing.
var ErrUnsorted = errors.New("timestamps must be strictly increasing")

// InsufficientDataError reports how many observations an operation needed.
type InsufficientDataError struct {
	Op   string
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need at least %d observations, have %d", e.Op, e.Need, e.Have)
}

// Is makes errors.Is(err, ErrInsufficientData) hold for any InsufficientDataError.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// Insufficient builds an InsufficientDataError for op.
func Insufficient(op string, need, have int) error {
	return &InsufficientDataError{Op: op, Need: need, Have: have}
}
