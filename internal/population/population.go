// Package population builds the competitor sets a study runs against.
package population

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/okian/laddersim/internal/domain/competitor"
)

// Tower tier distributions.
const (
	DistributionUniform  = "uniform"
	DistributionGaussian = "gaussian"
)

// Generation parameters of the realistic population.
const (
	towerMean   = 11.0
	towerStdDev = 1.5

	skillMean   = 0.5
	skillStdDev = 0.16667

	absenceMean   = 0.2
	absenceStdDev = 0.15

	// maxRedraws bounds the gaussian tower retries before falling back to uniform.
	maxRedraws = 64
)

// Spec describes the population to generate.
type Spec struct {
	Count        int
	Rating       int
	Distribution string
	WithSkill    bool
	WithAbsence  bool
	CapByTower   bool
}

// Generate draws Count competitors with ids 1..Count. Every draw comes from
// rng, so a fixed seed yields the same population.
func Generate(rng *rand.Rand, spec Spec) ([]*competitor.Competitor, error) {
	if spec.Count < 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, spec.Count)
	}

	drawTower, err := towerSampler(spec.Distribution)
	if err != nil {
		return nil, err
	}

	pop := make([]*competitor.Competitor, 0, spec.Count)
	for id := 1; id <= spec.Count; id++ {
		tower := drawTower(rng)
		lo, hi, err := competitor.CardLevelRange(tower)
		if err != nil {
			return nil, err
		}
		card := lo + rng.Intn(hi-lo+1)

		var opts []competitor.Option
		if spec.WithSkill {
			opts = append(opts, competitor.WithSkill(clampedGauss(rng, skillMean, skillStdDev)))
		}
		if spec.WithAbsence {
			opts = append(opts, competitor.WithAbsence(clampedGauss(rng, absenceMean, absenceStdDev)))
		}

		c, err := competitor.New(id, spec.Rating, tower, card, opts...)
		if err != nil {
			return nil, fmt.Errorf("generate competitor %d: %w", id, err)
		}
		if spec.CapByTower {
			c.CapByTower()
		}
		pop = append(pop, c)
	}
	return pop, nil
}

func towerSampler(distribution string) (func(*rand.Rand) int, error) {
	switch strings.ToLower(strings.TrimSpace(distribution)) {
	case "", DistributionUniform:
		return uniformTower, nil
	case DistributionGaussian:
		return gaussianTower, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDistribution, distribution)
	}
}

func uniformTower(rng *rand.Rand) int {
	return competitor.MinTowerTier + rng.Intn(competitor.MaxTowerTier-competitor.MinTowerTier+1)
}

func gaussianTower(rng *rand.Rand) int {
	for i := 0; i < maxRedraws; i++ {
		t := int(math.Round(rng.NormFloat64()*towerStdDev + towerMean))
		if t >= competitor.MinTowerTier && t <= competitor.MaxTowerTier {
			return t
		}
	}
	return uniformTower(rng)
}

func clampedGauss(rng *rand.Rand, mean, stdDev float64) float64 {
	return math.Max(0, math.Min(1, rng.NormFloat64()*stdDev+mean))
}

// Clone deep-copies a population so independent runs never share records.
func Clone(pop []*competitor.Competitor) []*competitor.Competitor {
	out := make([]*competitor.Competitor, len(pop))
	for i, c := range pop {
		out[i] = c.Clone()
	}
	return out
}
