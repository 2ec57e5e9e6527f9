// Package outcome models match results and the rating exchange that follows.
//
// The model is a set of immutable parameters plus pure functions over two
// competitors; the only mutable state it touches is the competitor records
// passed to Resolve and SeasonReset.
package outcome

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/laddersim/internal/domain/competitor"
)

// Default outcome parameters.
const (
	DefaultFloor        = 5000
	DefaultBaseExchange = 30
	DefaultDivisor      = 12

	defaultOverlevelSlope     = 0.0186
	defaultOverlevelIntercept = 0.521
	defaultOverlevelCap       = 0.99
	defaultSkillDivisor       = 2.5

	// lossEpsilon absorbs float artifacts such as 0.7*30 = 20.999...
	lossEpsilon = 1e-9

	cardCapBase = 8
	cardCapStep = 8
	percentBase = 100
)

// LossBand is one step of the loser retention table: a loser whose
// pre-match rating lies in [From, To) loses Percent of the exchange.
type LossBand struct {
	From    int     `koanf:"from"`
	To      int     `koanf:"to"`
	Percent float64 `koanf:"percent"`
}

// DecayBand applies to ratings >= From at a season boundary. Percent is the
// share of the distance to the floor that is removed; Cap, when positive,
// bounds the result.
type DecayBand struct {
	From    int `koanf:"from"`
	Percent int `koanf:"percent"`
	Cap     int `koanf:"cap"`
}

// DefaultLossTable returns the default retention table. Ratings outside
// every band lose the full exchange.
func DefaultLossTable() []LossBand {
	return []LossBand{
		{From: 4000, To: 5000, Percent: 1.0},
		{From: 5000, To: 5600, Percent: 0.7},
		{From: 5600, To: 6300, Percent: 0.8},
		{From: 6300, To: 7000, Percent: 0.9},
	}
}

// DefaultSeasonDecay returns the default season reset bands.
func DefaultSeasonDecay() []DecayBand {
	return []DecayBand{
		{From: 7000, Percent: 30, Cap: 6600},
		{From: 6000, Percent: 40},
		{From: 5000, Percent: 50},
	}
}

// Rand is the randomness the model draws from. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Result describes a resolved match.
type Result struct {
	Winner      *competitor.Competitor
	Loser       *competitor.Competitor
	Exchange    int
	Loss        int
	Mismatch    int
	GateClamped bool
}

// Model holds the outcome parameters.
type Model struct {
	floor        int
	baseExchange int
	divisor      int
	lossTable    []LossBand
	gates        []int
	decay        []DecayBand

	overlevelSlope     float64
	overlevelIntercept float64
	overlevelCap       float64
	skillDivisor       float64
}

// NewModel builds a model from defaults and options and validates it.
func NewModel(opts ...Option) (*Model, error) {
	m := &Model{
		floor:              DefaultFloor,
		baseExchange:       DefaultBaseExchange,
		divisor:            DefaultDivisor,
		lossTable:          DefaultLossTable(),
		decay:              DefaultSeasonDecay(),
		overlevelSlope:     defaultOverlevelSlope,
		overlevelIntercept: defaultOverlevelIntercept,
		overlevelCap:       defaultOverlevelCap,
		skillDivisor:       defaultSkillDivisor,
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	// Highest band first so SeasonReset can stop at the first match.
	sort.Slice(m.decay, func(i, j int) bool { return m.decay[i].From > m.decay[j].From })
	return m, nil
}

func (m *Model) validate() error {
	for i := 1; i < len(m.gates); i++ {
		if m.gates[i] <= m.gates[i-1] {
			return fmt.Errorf("%w: %v", ErrGatesNotAscending, m.gates)
		}
	}
	if m.divisor <= 0 {
		return fmt.Errorf("%w: exchange divisor must be positive, got %d", ErrInvalidParams, m.divisor)
	}
	if m.overlevelCap <= 0 || m.overlevelCap > 1 {
		return fmt.Errorf("%w: overlevel cap must be in (0,1], got %f", ErrInvalidParams, m.overlevelCap)
	}
	for i, b := range m.lossTable {
		if b.To <= b.From || b.Percent < 0 || b.Percent > 1 {
			return fmt.Errorf("%w: loss band %d %+v", ErrInvalidParams, i, b)
		}
		for _, other := range m.lossTable[:i] {
			if b.From < other.To && other.From < b.To {
				return fmt.Errorf("%w: loss bands overlap %+v %+v", ErrInvalidParams, other, b)
			}
		}
	}
	for i, b := range m.decay {
		if b.Percent < 0 || b.Percent > percentBase {
			return fmt.Errorf("%w: decay band %d %+v", ErrInvalidParams, i, b)
		}
	}
	return nil
}

// Floor returns the minimum rating.
func (m *Model) Floor() int { return m.floor }

// Gates returns a copy of the checkpoint ratings.
func (m *Model) Gates() []int { return append([]int(nil), m.gates...) }

// OverlevelWinChance is the probability that the side with the higher power
// wins when the power gap is d. It grows linearly and saturates at the cap.
func (m *Model) OverlevelWinChance(d int) float64 {
	return math.Min(m.overlevelCap, m.overlevelSlope*float64(d)+m.overlevelIntercept)
}

// LossPercent returns the share of the exchange a loser at rating loses.
func (m *Model) LossPercent(rating int) float64 {
	for _, b := range m.lossTable {
		if rating >= b.From && rating < b.To {
			return b.Percent
		}
	}
	return 1
}

// Exchange is the rating the winner gains. Upsets pay more.
func (m *Model) Exchange(winnerRating, loserRating int) int {
	e := m.baseExchange + floorDiv(loserRating-winnerRating, m.divisor)
	if e < 0 {
		return 0
	}
	return e
}

// Resolve plays a match between a and b and applies the result to both.
func (m *Model) Resolve(a, b *competitor.Competitor, rng Rand) (Result, error) {
	if a.Equal(b) {
		return Result{}, fmt.Errorf("%w: id %d", ErrSelfMatch, a.ID)
	}

	pa, pb := a.Power(), b.Power()
	d := pa - pb
	if d < 0 {
		d = -d
	}
	a.CumulativeMismatch += d
	b.CumulativeMismatch += d

	var winner, loser *competitor.Competitor
	switch {
	case pa != pb:
		strong, weak := a, b
		if pb > pa {
			strong, weak = b, a
		}
		winner, loser = weak, strong
		if rng.Float64() < m.OverlevelWinChance(d) {
			winner, loser = strong, weak
		}
	case a.Skill != nil && b.Skill != nil && *a.Skill != *b.Skill:
		better, worse := a, b
		if *b.Skill > *a.Skill {
			better, worse = b, a
		}
		chance := math.Min(1, 0.5+math.Abs(*a.Skill-*b.Skill)/m.skillDivisor)
		winner, loser = worse, better
		if rng.Float64() < chance {
			winner, loser = better, worse
		}
	default:
		winner, loser = b, a
		if rng.Float64() < 0.5 {
			winner, loser = a, b
		}
	}

	res := m.apply(winner, loser)
	res.Mismatch = d
	return res, nil
}

// apply moves rating from loser to winner and updates the counters.
func (m *Model) apply(winner, loser *competitor.Competitor) Result {
	loserPre := loser.Rating
	e := m.Exchange(winner.Rating, loserPre)

	winner.Wins++
	winner.Rating += e

	loser.Losses++
	loss := int(math.Floor(m.LossPercent(loserPre)*float64(e) + lossEpsilon))
	rating := loserPre - loss
	if rating < m.floor {
		rating = m.floor
	}

	clamped := false
	for i := len(m.gates) - 1; i >= 0; i-- {
		g := m.gates[i]
		if loserPre >= g && rating < g {
			rating = g
			clamped = true
			break
		}
	}
	loser.Rating = rating

	return Result{
		Winner:      winner,
		Loser:       loser,
		Exchange:    e,
		Loss:        loserPre - rating,
		GateClamped: clamped,
	}
}

// SeasonReset decays the competitor's rating toward the floor.
func (m *Model) SeasonReset(c *competitor.Competitor) {
	c.Rating = m.DecayedRating(c.Rating)
}

// DecayedRating returns the rating after a season boundary.
func (m *Model) DecayedRating(rating int) int {
	for _, b := range m.decay {
		if rating < b.From {
			continue
		}
		next := rating - ceilDiv(b.Percent*(rating-m.floor), percentBase)
		if b.Cap > 0 && next > b.Cap {
			next = b.Cap
		}
		if next < m.floor {
			next = m.floor
		}
		return next
	}
	return rating
}

// CardCap is the card level ceiling for a match played at rating: each cap
// the rating exceeds raises the ceiling by one tower's worth of levels.
func CardCap(caps []int, rating int) int {
	return (cardCapBase + sort.SearchInts(caps, rating)) * cardCapStep
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}
