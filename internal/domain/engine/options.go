package engine

import (
	"github.com/okian/laddersim/pkg/logger"
)

const (
	defaultSeed             = 42
	defaultProgressSteps    = 10
	minStallLimit           = 1_000_000
	stallTicksPerCompetitor = 100
	snapshotRadius          = 3
)

type options struct {
	seed          int64
	cardCaps      []int
	absence       bool
	stallLimit    int
	progressSteps int
	checkEvery    int64
	runID         string
	log           logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*options)

// WithSeed seeds the engine's random source.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithCardCaps enables rating-banded card level caps. caps must be ascending.
func WithCardCaps(caps []int) Option {
	return func(o *options) {
		o.cardCaps = append([]int(nil), caps...)
	}
}

// WithAbsence makes sampled competitors decline to queue with their
// absence probability.
func WithAbsence(enabled bool) Option {
	return func(o *options) {
		o.absence = enabled
	}
}

// WithStallLimit sets how many consecutive ticks may pass without a match
// before Run gives up. Zero picks a limit from the population size.
func WithStallLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.stallLimit = n
		}
	}
}

// WithProgressSteps sets how many progress lines Run logs per budget.
func WithProgressSteps(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.progressSteps = n
		}
	}
}

// WithInvariantChecks verifies the queue store every n ticks. Zero checks
// only at the end of a run.
func WithInvariantChecks(every int64) Option {
	return func(o *options) {
		if every >= 0 {
			o.checkEvery = every
		}
	}
}

// WithRunID tags logs and stats with a run identifier.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
