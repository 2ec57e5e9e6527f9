package matchmaking

import (
	"github.com/okian/laddersim/internal/domain/competitor"
	"github.com/okian/laddersim/internal/domain/membership"
)

// Queues is the read side of the waiting queues the resolver searches.
type Queues interface {
	// Nearest returns the nearest-by-rating waiting competitor in slot.
	Nearest(slot membership.Slot, c *competitor.Competitor) (*competitor.Competitor, bool)
	// InRange reports whether key names a bucket.
	InRange(key int) bool
}

// Lookup is the outcome of a resolve. When Found is false the arrival
// belongs in Slot.
type Lookup struct {
	Opponent *competitor.Competitor
	Found    bool
	Slot     membership.Slot
	// Probes counts the queues inspected.
	Probes int
}

// Resolver finds eligible opponents for one policy.
type Resolver struct {
	policy Policy
	rules  Rules
	tier   Tier
	radius int
	cutoff int
}

// NewResolver validates rules against policy.
func NewResolver(policy Policy, rules Rules) (*Resolver, error) {
	if err := rules.Validate(policy); err != nil {
		return nil, err
	}
	r := &Resolver{policy: policy, rules: rules, tier: policy.Tier()}
	switch policy {
	case PolicyTower:
		r.radius, r.cutoff = *rules.MaxTowerDiff, rules.TowerCutoff
	case PolicyCard:
		r.radius, r.cutoff = *rules.MaxCardDiff, rules.CardCutoff
	case PolicyCombined:
		r.radius, r.cutoff = *rules.MaxTowerDiff, max(rules.TowerCutoff, rules.CardCutoff)
	}
	return r, nil
}

// Policy returns the resolver's policy.
func (r *Resolver) Policy() Policy { return r.policy }

// Rules returns the resolver's rules.
func (r *Resolver) Rules() Rules { return r.rules }

// Eligible reports whether arrival a may play waiting competitor b.
func (r *Resolver) Eligible(a, b *competitor.Competitor) bool {
	if a.ID == b.ID {
		return false
	}
	if !competitor.MatchAllowed(a, b, r.rules.RatingBand) {
		return false
	}
	switch r.policy {
	case PolicyTower:
		return r.towerOK(a, b)
	case PolicyCard:
		return r.cardOK(a, b)
	case PolicyCombined:
		return r.towerOK(a, b) && r.cardOK(a, b)
	default:
		return true
	}
}

func (r *Resolver) towerOK(a, b *competitor.Competitor) bool {
	return absInt(a.TowerTier-b.TowerTier) <= *r.rules.MaxTowerDiff || a.Rating > r.rules.TowerCutoff
}

func (r *Resolver) cardOK(a, b *competitor.Competitor) bool {
	return absInt(a.CardLevel-b.CardLevel) <= *r.rules.MaxCardDiff || a.Rating > r.rules.CardCutoff
}

// Waived reports whether a is above the cutoff and searches the general queue.
func (r *Resolver) Waived(a *competitor.Competitor) bool {
	return r.tier != TierNone && a.Rating > r.cutoff
}

// Resolve searches q for an opponent for arrival. It never mutates q.
func (r *Resolver) Resolve(q Queues, arrival *competitor.Competitor) Lookup {
	if r.tier == TierNone || r.Waived(arrival) {
		l := Lookup{Slot: membership.General}
		empty := r.probe(q, &l, membership.General, arrival)
		if empty && r.tier != TierNone && r.rules.TryBucketsWhenGeneralEmpty {
			// The arrival still waits in the general queue on a miss.
			r.probeBuckets(q, &l, arrival)
		}
		return l
	}
	l := Lookup{Slot: membership.Slot(r.tier.Key(arrival))}
	r.probeBuckets(q, &l, arrival)
	return l
}

// probe inspects one queue and records an eligible candidate.
func (r *Resolver) probe(q Queues, l *Lookup, slot membership.Slot, a *competitor.Competitor) (empty bool) {
	l.Probes++
	cand, ok := q.Nearest(slot, a)
	if !ok {
		return true
	}
	if r.Eligible(a, cand) {
		l.Opponent, l.Found = cand, true
	}
	return false
}

// probeBuckets walks the arrival's own bucket and then key+d, key-d for
// d = 1..radius, skipping keys outside the partition.
func (r *Resolver) probeBuckets(q Queues, l *Lookup, a *competitor.Competitor) {
	key := r.tier.Key(a)
	for d := 0; d <= r.radius; d++ {
		for _, k := range probeKeys(key, d) {
			if !q.InRange(k) {
				continue
			}
			r.probe(q, l, membership.Slot(k), a)
			if l.Found {
				return
			}
		}
	}
}

func probeKeys(key, d int) []int {
	if d == 0 {
		return []int{key}
	}
	return []int{key + d, key - d}
}
