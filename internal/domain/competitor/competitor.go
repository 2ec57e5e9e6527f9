// Package competitor contains the ladder entity record and its small
// behavioral helpers.
package competitor

import (
	"fmt"
)

// Permanent attribute ranges.
const (
	MinTowerTier = 8
	MaxTowerTier = 14
	MinCardLevel = 60
	MaxCardLevel = 112

	// DefaultRatingBand is the widest rating gap two competitors may be matched across.
	DefaultRatingBand = 40

	cardLevelsPerTower = 8
)

// cardLevelRanges is the creation distribution of card levels per tower tier.
var cardLevelRanges = [MaxTowerTier - MinTowerTier + 1][2]int{ //nolint:gochecknoglobals // fixed lookup table
	{60, 80},   // 8
	{68, 88},   // 9
	{76, 104},  // 10
	{84, 112},  // 11
	{92, 112},  // 12
	{96, 112},  // 13
	{104, 112}, // 14
}

// Competitor is a single ladder participant. Identity is the ID alone.
type Competitor struct {
	ID     int
	Rating int
	Wins   int
	Losses int

	TowerTier int
	CardLevel int

	// Skill breaks ties between equal-power competitors; nil when unused.
	Skill *float64
	// AbsencePct is the chance a sampled competitor declines to queue.
	AbsencePct float64

	CumulativeMismatch int
}

// Option applies an optional attribute at construction.
type Option func(*Competitor)

// WithSkill sets the tie-break skill attribute.
func WithSkill(skill float64) Option {
	return func(c *Competitor) {
		c.Skill = &skill
	}
}

// WithAbsence sets the probability of declining to queue.
func WithAbsence(p float64) Option {
	return func(c *Competitor) {
		c.AbsencePct = p
	}
}

// New builds a competitor and validates its permanent attributes.
func New(id, rating, towerTier, cardLevel int, opts ...Option) (*Competitor, error) {
	c := &Competitor{
		ID:        id,
		Rating:    rating,
		TowerTier: towerTier,
		CardLevel: cardLevel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the permanent attribute ranges.
func (c *Competitor) Validate() error {
	if c.TowerTier < MinTowerTier || c.TowerTier > MaxTowerTier {
		return fmt.Errorf("competitor %d: %w: %d", c.ID, ErrInvalidTowerTier, c.TowerTier)
	}
	if c.CardLevel < MinCardLevel || c.CardLevel > MaxCardLevel {
		return fmt.Errorf("competitor %d: %w: %d", c.ID, ErrInvalidCardLevel, c.CardLevel)
	}
	if c.Skill != nil && (*c.Skill < 0 || *c.Skill > 1) {
		return fmt.Errorf("competitor %d: %w: %f", c.ID, ErrInvalidSkill, *c.Skill)
	}
	if c.AbsencePct < 0 || c.AbsencePct > 1 {
		return fmt.Errorf("competitor %d: %w: %f", c.ID, ErrInvalidAbsence, c.AbsencePct)
	}
	return nil
}

// Power is the capability sum used by the outcome model.
func (c *Competitor) Power() int {
	return c.CardLevel + c.TowerTier
}

// Matches returns the number of resolved matches.
func (c *Competitor) Matches() int {
	return c.Wins + c.Losses
}

// MismatchPerMatch is the average capability gap faced, zero before the first match.
func (c *Competitor) MismatchPerMatch() float64 {
	if c.Matches() == 0 {
		return 0
	}
	return float64(c.CumulativeMismatch) / float64(c.Matches())
}

// Equal reports identity equality.
func (c *Competitor) Equal(other *Competitor) bool {
	return other != nil && c.ID == other.ID
}

// OverrideCardLevel lowers the card level to limit for the duration of a
// single match. The returned func restores the permanent value.
func (c *Competitor) OverrideCardLevel(limit int) (restore func()) {
	original := c.CardLevel
	if limit < c.CardLevel {
		c.CardLevel = limit
	}
	return func() { c.CardLevel = original }
}

// CapByTower permanently limits the card level to what the tower tier allows.
func (c *Competitor) CapByTower() {
	if limit := cardLevelsPerTower * c.TowerTier; c.CardLevel > limit {
		c.CardLevel = limit
	}
}

// Clone returns a deep copy.
func (c *Competitor) Clone() *Competitor {
	cp := *c
	if c.Skill != nil {
		s := *c.Skill
		cp.Skill = &s
	}
	return &cp
}

// String renders the competitor for logs.
func (c *Competitor) String() string {
	return fmt.Sprintf("competitor{id=%d rating=%d w=%d l=%d tower=%d card=%d mismatch=%d}",
		c.ID, c.Rating, c.Wins, c.Losses, c.TowerTier, c.CardLevel, c.CumulativeMismatch)
}

// MatchAllowed is the baseline eligibility filter applied before any policy filter.
func MatchAllowed(a, b *Competitor, band int) bool {
	d := a.Rating - b.Rating
	if d < 0 {
		d = -d
	}
	return d <= band
}

// CardLevelRange returns the inclusive card level range a new competitor of
// the given tower tier is drawn from.
func CardLevelRange(towerTier int) (lo, hi int, err error) {
	if towerTier < MinTowerTier || towerTier > MaxTowerTier {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidTowerTier, towerTier)
	}
	r := cardLevelRanges[towerTier-MinTowerTier]
	return r[0], r[1], nil
}
