package outcome

import "errors"

// Sentinel kinds for outcome model errors.
var (
	ErrGatesNotAscending = errors.New("rating gates must be strictly ascending")
	ErrInvalidParams     = errors.New("invalid outcome parameters")
	ErrSelfMatch         = errors.New("competitor matched against itself")
)
