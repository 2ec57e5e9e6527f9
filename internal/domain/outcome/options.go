package outcome

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithFloor sets the minimum rating.
func WithFloor(floor int) Option {
	return func(m *Model) {
		m.floor = floor
	}
}

// WithExchange sets the base exchange and the rating-gap divisor.
func WithExchange(base, divisor int) Option {
	return func(m *Model) {
		m.baseExchange = base
		m.divisor = divisor
	}
}

// WithLossTable replaces the loser retention table.
func WithLossTable(table []LossBand) Option {
	return func(m *Model) {
		if len(table) > 0 {
			m.lossTable = append([]LossBand(nil), table...)
		}
	}
}

// WithGates sets the checkpoint ratings. The slice must be strictly ascending.
func WithGates(gates []int) Option {
	return func(m *Model) {
		m.gates = append([]int(nil), gates...)
	}
}

// WithOverlevel overrides the linear overlevel win chance and its saturation cap.
func WithOverlevel(slope, intercept, maxChance float64) Option {
	return func(m *Model) {
		m.overlevelSlope = slope
		m.overlevelIntercept = intercept
		m.overlevelCap = maxChance
	}
}

// WithSkillDivisor sets the divisor applied to the skill gap on equal power.
func WithSkillDivisor(divisor float64) Option {
	return func(m *Model) {
		if divisor > 0 {
			m.skillDivisor = divisor
		}
	}
}

// WithSeasonDecay replaces the season reset bands.
func WithSeasonDecay(bands []DecayBand) Option {
	return func(m *Model) {
		if len(bands) > 0 {
			m.decay = append([]DecayBand(nil), bands...)
		}
	}
}
