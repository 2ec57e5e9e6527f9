// Package matchmaking picks opponents for arriving competitors under a
// configured policy.
package matchmaking

import (
	"fmt"
	"strings"

	"github.com/okian/laddersim/internal/domain/competitor"
)

// Policy is the eligibility rule layered on top of the rating band.
type Policy int

// Supported policies.
const (
	PolicyNone Policy = iota
	PolicyTower
	PolicyCard
	PolicyCombined
)

var policyNames = map[string]Policy{
	"none":         PolicyNone,
	"unrestricted": PolicyNone,
	"tower-tier":   PolicyTower,
	"rating-tier":  PolicyTower,
	"card-tier":    PolicyCard,
	"skill-tier":   PolicyCard,
	"combined":     PolicyCombined,
}

// ParsePolicy resolves a policy name or one of its aliases.
func ParsePolicy(name string) (Policy, error) {
	p, ok := policyNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return PolicyNone, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return p, nil
}

// String returns the canonical policy name.
func (p Policy) String() string {
	switch p {
	case PolicyTower:
		return "tower-tier"
	case PolicyCard:
		return "card-tier"
	case PolicyCombined:
		return "combined"
	default:
		return "none"
	}
}

// Tier identifies the attribute a policy partitions queues by.
type Tier int

// Partition attributes.
const (
	TierNone Tier = iota
	TierTower
	TierCard
)

// Tier returns the partition attribute for p. Combined partitions by tower
// and checks card levels in the eligibility predicate.
func (p Policy) Tier() Tier {
	switch p {
	case PolicyTower, PolicyCombined:
		return TierTower
	case PolicyCard:
		return TierCard
	default:
		return TierNone
	}
}

// Key returns c's bucket key under t.
func (t Tier) Key(c *competitor.Competitor) int {
	switch t {
	case TierTower:
		return c.TowerTier
	case TierCard:
		return c.CardLevel
	default:
		return 0
	}
}

// Rules are the numeric bounds of a policy. A nil tier bound means unset.
type Rules struct {
	RatingBand   int
	MaxTowerDiff *int
	TowerCutoff  int
	MaxCardDiff  *int
	CardCutoff   int
	// TryBucketsWhenGeneralEmpty lets a waived arrival probe its tier buckets
	// when the general queue has nobody in it.
	TryBucketsWhenGeneralEmpty bool
}

// DefaultRules returns the baseline band with no tier bounds.
func DefaultRules() Rules {
	return Rules{RatingBand: competitor.DefaultRatingBand}
}

// Bound returns a pointer to n for filling Rules tier bounds.
func Bound(n int) *int { return &n }

// Validate checks that the rules carry every bound p needs.
func (r Rules) Validate(p Policy) error {
	if r.RatingBand < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBand, r.RatingBand)
	}
	need := func(name string, bound *int) error {
		if bound == nil {
			return fmt.Errorf("%w: policy %s needs %s", ErrMissingTierBound, p, name)
		}
		if *bound < 0 {
			return fmt.Errorf("%w: %s=%d", ErrNegativeTierBound, name, *bound)
		}
		return nil
	}
	switch p {
	case PolicyNone:
		return nil
	case PolicyTower:
		return need("max_tower_diff", r.MaxTowerDiff)
	case PolicyCard:
		return need("max_card_diff", r.MaxCardDiff)
	case PolicyCombined:
		if err := need("max_tower_diff", r.MaxTowerDiff); err != nil {
			return err
		}
		return need("max_card_diff", r.MaxCardDiff)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownPolicy, int(p))
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
