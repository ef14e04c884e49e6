package analytics

import "errors"

var (
	// ErrMissingField is returned when a record lacks its vendor or description.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidNumber is returned when a quantity or dollar amount is NaN or infinite.
	ErrInvalidNumber = errors.New("quantity and dollars must be finite")
	// ErrInsufficientData signals that a component could not produce a result
	// because the population or history is too small. It is not a failure.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidWeights is returned by NewScorer for weights that are negative
	// or do not sum to 1.
	ErrInvalidWeights = errors.New("invalid scoring weights")
)
