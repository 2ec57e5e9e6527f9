package report

import "errors"

// Sentinel kinds for report errors.
var (
	ErrEmptyPopulation = errors.New("no competitors to report")
	ErrInconsistent    = errors.New("population counters are inconsistent")
)
