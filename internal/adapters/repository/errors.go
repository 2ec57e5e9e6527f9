package repository

import "errors"

// Sentinel kinds for queue store errors.
var (
	ErrNotFound       = errors.New("competitor not found in queue")
	ErrDuplicate      = errors.New("competitor already in queue")
	ErrAlreadyWaiting = errors.New("competitor already waiting in another queue")
	ErrSlotOutOfRange = errors.New("queue slot out of partition range")
	ErrInvariant      = errors.New("queue invariant violated")
)
