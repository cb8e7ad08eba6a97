package regression

import "errors"

// Sentinel kinds for model errors.
var (
	ErrNotFitted         = errors.New("model is not fitted")
	ErrEmptyTraining     = errors.New("training data is empty")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrNonFinite         = errors.New("non-finite value in input")
	ErrSingular          = errors.New("system is singular")
)
