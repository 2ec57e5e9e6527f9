package population

import "errors"

// Sentinel kinds for population generation errors.
var (
	ErrInvalidCount        = errors.New("population needs at least two competitors")
	ErrUnknownDistribution = errors.New("unknown tower distribution")
)
