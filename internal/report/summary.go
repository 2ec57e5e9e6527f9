// Package report aggregates finished populations and hands run results to sinks.
package report

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/okian/laddersim/internal/domain/competitor"
)

// TierSummary aggregates the competitors of one tower tier.
type TierSummary struct {
	TowerTier    int     `json:"tower_tier"`
	Count        int     `json:"count"`
	MeanRating   float64 `json:"mean_rating"`
	MeanMismatch float64 `json:"mean_mismatch_per_match"`
}

// Summary describes a population after a run.
type Summary struct {
	Competitors  int           `json:"competitors"`
	TotalMatches int           `json:"total_matches"`
	MeanRating   float64       `json:"mean_rating"`
	MaxRating    int           `json:"max_rating"`
	Tiers        []TierSummary `json:"tiers"`
}

// Summarize aggregates pop per tower tier. Tiers are sorted ascending.
func Summarize(pop []*competitor.Competitor) Summary {
	if len(pop) == 0 {
		return Summary{}
	}

	byTier := lo.GroupBy(pop, func(c *competitor.Competitor) int { return c.TowerTier })
	tiers := lo.MapToSlice(byTier, func(tier int, cs []*competitor.Competitor) TierSummary {
		return TierSummary{
			TowerTier:    tier,
			Count:        len(cs),
			MeanRating:   meanRating(cs),
			MeanMismatch: lo.SumBy(cs, (*competitor.Competitor).MismatchPerMatch) / float64(len(cs)),
		}
	})
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].TowerTier < tiers[j].TowerTier })

	top := lo.MaxBy(pop, func(a, b *competitor.Competitor) bool { return a.Rating > b.Rating })

	return Summary{
		Competitors:  len(pop),
		TotalMatches: lo.SumBy(pop, func(c *competitor.Competitor) int { return c.Wins }),
		MeanRating:   meanRating(pop),
		MaxRating:    top.Rating,
		Tiers:        tiers,
	}
}

func meanRating(cs []*competitor.Competitor) float64 {
	return float64(lo.SumBy(cs, func(c *competitor.Competitor) int { return c.Rating })) / float64(len(cs))
}

// Verify checks the counters a finished run must satisfy: every match has
// one winner and one loser, the total equals matches, and nobody is below floor.
func Verify(pop []*competitor.Competitor, floor int, matches int64) error {
	if len(pop) == 0 {
		return ErrEmptyPopulation
	}

	wins := lo.SumBy(pop, func(c *competitor.Competitor) int { return c.Wins })
	losses := lo.SumBy(pop, func(c *competitor.Competitor) int { return c.Losses })
	if wins != losses {
		return fmt.Errorf("%w: wins %d != losses %d", ErrInconsistent, wins, losses)
	}
	if int64(wins) != matches {
		return fmt.Errorf("%w: %d wins recorded for %d matches", ErrInconsistent, wins, matches)
	}
	if c, found := lo.Find(pop, func(c *competitor.Competitor) bool { return c.Rating < floor }); found {
		return fmt.Errorf("%w: %s below floor %d", ErrInconsistent, c, floor)
	}
	return nil
}
