// Package engine drives the simulation tick loop: sample an arrival, look up
// an opponent, then either play the match or queue the arrival.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/okian/laddersim/internal/domain/competitor"
	"github.com/okian/laddersim/internal/domain/matchmaking"
	"github.com/okian/laddersim/internal/domain/membership"
	"github.com/okian/laddersim/internal/domain/outcome"
	"github.com/okian/laddersim/pkg/logger"
	"github.com/okian/laddersim/pkg/metrics"
)

// Queues is the waiting-queue store a run mutates.
type Queues interface {
	matchmaking.Queues
	Insert(c *competitor.Competitor, slot membership.Slot) error
	Remove(c *competitor.Competitor) error
	Waiting(id int) bool
	Len() int
	HighWater() int
	BucketLens() map[string]int
	CheckInvariants() error

	// Diagnostics captured when an invariant breaks.
	Holder(id int) (membership.Slot, bool)
	Snapshot(slot membership.Slot) []*competitor.Competitor
	Around(slot membership.Slot, rating, k int) []*competitor.Competitor
}

// QueueFactory builds an empty store. Every Run starts from a fresh one.
type QueueFactory func() Queues

// Kind is the branch a tick took.
type Kind int

// Tick branches.
const (
	KindIdle Kind = iota
	KindEnqueue
	KindMatch
)

func (k Kind) String() string {
	switch k {
	case KindEnqueue:
		return "enqueue"
	case KindMatch:
		return "match"
	default:
		return "idle"
	}
}

// Idle reasons.
const (
	IdleAbsent  = "absent"
	IdleWaiting = "waiting"
)

// TickResult describes one tick.
type TickResult struct {
	Kind     Kind
	Arrival  *competitor.Competitor
	Opponent *competitor.Competitor
	Outcome  outcome.Result
	// Slot is where an enqueued arrival went.
	Slot   membership.Slot
	Probes int
	Reason string
}

// Stats is a consistent snapshot of a run's counters.
type Stats struct {
	RunID      string         `json:"run_id,omitempty"`
	Policy     string         `json:"policy"`
	Season     int            `json:"season"`
	Matches    int64          `json:"matches"`
	Ticks      int64          `json:"ticks"`
	Enqueues   int64          `json:"enqueues"`
	Idles      int64          `json:"idles"`
	GateClamps int64          `json:"gate_clamps"`
	Waiting    int            `json:"waiting"`
	HighWater  int            `json:"high_water"`
	Buckets    map[string]int `json:"buckets,omitempty"`
}

// Engine runs matches over one population. Ticks are serialized by mu, so a
// concurrent Stats call always sees whole ticks.
type Engine struct {
	mu sync.Mutex

	pop       []*competitor.Competitor
	model     *outcome.Model
	resolver  *matchmaking.Resolver
	newQueues QueueFactory
	queues    Queues
	rng       *rand.Rand
	opts      options
	policy    string
	stats     Stats
	log       logger.Logger
}

// New validates the population and configuration and returns an engine
// ready to run. Nothing is mutated when validation fails.
func New(pop []*competitor.Competitor, model *outcome.Model, resolver *matchmaking.Resolver, newQueues QueueFactory, opts ...Option) (*Engine, error) {
	o := options{seed: defaultSeed, progressSteps: defaultProgressSteps}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Discard()
	}
	if model == nil || resolver == nil || newQueues == nil {
		return nil, ErrMissingComponent
	}
	if err := validatePopulation(pop, model.Floor()); err != nil {
		return nil, err
	}
	if !sort.IntsAreSorted(o.cardCaps) {
		return nil, fmt.Errorf("%w: %v", ErrCardCapsOrder, o.cardCaps)
	}
	if o.stallLimit == 0 {
		o.stallLimit = max(minStallLimit, stallTicksPerCompetitor*len(pop))
	}

	policy := resolver.Policy().String()
	return &Engine{
		pop:       pop,
		model:     model,
		resolver:  resolver,
		newQueues: newQueues,
		queues:    newQueues(),
		rng:       rand.New(rand.NewSource(o.seed)), //nolint:gosec // simulation randomness
		opts:      o,
		policy:    policy,
		stats:     Stats{RunID: o.runID, Policy: policy, Season: 1},
		log:       o.log.With(logger.String("run_id", o.runID), logger.String("policy", policy)),
	}, nil
}

func validatePopulation(pop []*competitor.Competitor, floor int) error {
	if len(pop) < 2 {
		return fmt.Errorf("%w: need at least 2 competitors, got %d", ErrInvalidPopulation, len(pop))
	}
	seen := make(map[int]struct{}, len(pop))
	for i, c := range pop {
		if c == nil {
			return fmt.Errorf("%w: nil competitor at %d", ErrInvalidPopulation, i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidPopulation, c.ID)
		}
		seen[c.ID] = struct{}{}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPopulation, err)
		}
		if c.Rating < floor {
			return fmt.Errorf("%w: competitor %d rating %d below floor %d", ErrInvalidPopulation, c.ID, c.Rating, floor)
		}
	}
	return nil
}

// Population returns the competitors the engine mutates.
func (e *Engine) Population() []*competitor.Competitor { return e.pop }

// Tick runs one step of the state machine.
func (e *Engine) Tick() (TickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick()
}

// Lookup resolves c against the current queues without changing them.
func (e *Engine) Lookup(c *competitor.Competitor) matchmaking.Lookup {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver.Resolve(e.queues, c)
}

func (e *Engine) tick() (TickResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordTickLatency(float64(time.Since(start).Nanoseconds()) / 1e3)
	}()

	e.stats.Ticks++
	a := e.pop[e.rng.Intn(len(e.pop))]
	res := TickResult{Arrival: a}

	if e.opts.absence && a.AbsencePct > 0 && e.rng.Float64() < a.AbsencePct {
		return e.idle(res, IdleAbsent), nil
	}
	if e.queues.Waiting(a.ID) {
		return e.idle(res, IdleWaiting), nil
	}

	l := e.resolver.Resolve(e.queues, a)
	res.Probes = l.Probes
	metrics.RecordProbeDepth(e.policy, l.Probes)

	if !l.Found {
		if err := e.queues.Insert(a, l.Slot); err != nil {
			return res, e.violation("enqueue", a, nil, err, l.Slot)
		}
		res.Kind, res.Slot = KindEnqueue, l.Slot
		e.stats.Enqueues++
		metrics.RecordEnqueue(e.policy)
		return res, nil
	}

	b := l.Opponent
	if b.ID == a.ID {
		return res, e.violation("lookup", a, b, outcome.ErrSelfMatch, l.Slot)
	}
	if err := e.queues.Remove(b); err != nil {
		return res, e.violation("dequeue", a, b, err, l.Slot)
	}
	out, err := e.play(a, b)
	if err != nil {
		return res, e.violation("resolve", a, b, err, l.Slot)
	}
	if a.Rating < e.model.Floor() || b.Rating < e.model.Floor() {
		return res, e.violation("resolve", a, b, ErrRatingBelowFloor, l.Slot)
	}

	e.stats.Matches++
	metrics.RecordMatch(e.policy)
	if out.GateClamped {
		e.stats.GateClamps++
		metrics.RecordGateClamp(e.policy)
	}
	res.Kind, res.Opponent, res.Outcome = KindMatch, b, out
	return res, nil
}

// play resolves a match with card levels capped for the rating band.
func (e *Engine) play(a, b *competitor.Competitor) (outcome.Result, error) {
	if len(e.opts.cardCaps) > 0 {
		limit := outcome.CardCap(e.opts.cardCaps, min(a.Rating, b.Rating))
		defer a.OverrideCardLevel(limit)()
		defer b.OverrideCardLevel(limit)()
	}
	return e.model.Resolve(a, b, e.rng)
}

func (e *Engine) idle(res TickResult, reason string) TickResult {
	res.Kind, res.Reason = KindIdle, reason
	e.stats.Idles++
	metrics.RecordIdleTick(e.policy, reason)
	return res
}

// violation captures the run state for an InvariantError. The queue
// snapshot is taken from the slot holding b, then a, then fallback.
func (e *Engine) violation(op string, a, b *competitor.Competitor, err error, fallback ...membership.Slot) error {
	ie := &InvariantError{
		Op:      op,
		Tick:    e.stats.Ticks,
		Waiting: e.queues.Len(),
		Buckets: e.queues.BucketLens(),
		Err:     err,
	}
	if a != nil {
		ie.Competitor = a.Clone()
	}
	if b != nil {
		ie.Opponent = b.Clone()
	}
	if slot, ok := e.offendingSlot(a, b, fallback); ok {
		ie.Queue = e.snapshot(slot, a, b)
	}
	metrics.RecordInvariantViolation(e.policy)
	return ie
}

func (e *Engine) offendingSlot(a, b *competitor.Competitor, fallback []membership.Slot) (membership.Slot, bool) {
	for _, c := range [...]*competitor.Competitor{b, a} {
		if c == nil {
			continue
		}
		if slot, ok := e.queues.Holder(c.ID); ok {
			return slot, true
		}
	}
	if len(fallback) > 0 {
		return fallback[0], true
	}
	return 0, false
}

func (e *Engine) snapshot(slot membership.Slot, a, b *competitor.Competitor) *QueueSnapshot {
	qs := &QueueSnapshot{Slot: slot}
	for _, c := range e.queues.Snapshot(slot) {
		qs.Entries = append(qs.Entries, c.Clone())
	}
	var focus *competitor.Competitor
	switch {
	case b != nil:
		focus = b
	case a != nil:
		focus = a
	default:
		return qs
	}
	qs.Rating = focus.Rating
	for _, c := range e.queues.Around(slot, focus.Rating, snapshotRadius) {
		qs.Nearby = append(qs.Nearby, c.Clone())
	}
	return qs
}

// Run ticks until budget more matches are resolved. Each call starts from
// empty queues. ctx is checked once per tick.
func (e *Engine) Run(ctx context.Context, budget int) (Stats, error) {
	if budget <= 0 {
		return e.Stats(), fmt.Errorf("%w: %d", ErrNonPositiveBudget, budget)
	}

	e.mu.Lock()
	e.stats.HighWater = max(e.stats.HighWater, e.queues.HighWater())
	e.queues = e.newQueues()
	first := e.stats.Matches
	target := first + int64(budget)
	season := e.stats.Season
	e.mu.Unlock()

	step := max(int64(budget/e.opts.progressSteps), 1)
	next := first + step
	stalled := 0

	e.log.Info(ctx, "run started",
		logger.Int("season", season),
		logger.Int("budget", budget),
		logger.Int("population", len(e.pop)))

	for {
		if err := ctx.Err(); err != nil {
			return e.Stats(), err
		}

		e.mu.Lock()
		if e.stats.Matches >= target {
			e.mu.Unlock()
			break
		}
		res, err := e.tick()
		if err == nil && e.opts.checkEvery > 0 && e.stats.Ticks%e.opts.checkEvery == 0 {
			if cerr := e.queues.CheckInvariants(); cerr != nil {
				err = e.violation("check", res.Arrival, nil, cerr)
			}
		}
		matches := e.stats.Matches
		e.mu.Unlock()

		if err != nil {
			e.log.Error(ctx, "run aborted", logger.Error(err))
			return e.Stats(), err
		}

		if res.Kind != KindMatch {
			stalled++
			if stalled >= e.opts.stallLimit {
				return e.Stats(), fmt.Errorf("%w: %d ticks since the last match", ErrStalled, stalled)
			}
			continue
		}
		stalled = 0

		if matches >= next {
			e.progress(ctx, matches-first, budget)
			next += step
		}
	}

	e.mu.Lock()
	err := e.queues.CheckInvariants()
	if err != nil {
		err = e.violation("check", nil, nil, err)
	}
	e.stats.HighWater = max(e.stats.HighWater, e.queues.HighWater())
	e.mu.Unlock()
	if err != nil {
		e.log.Error(ctx, "run aborted", logger.Error(err))
		return e.Stats(), err
	}

	stats := e.Stats()
	metrics.UpdateQueueSize(e.policy, stats.Waiting)
	metrics.UpdateQueueHighWater(e.policy, stats.HighWater)
	e.log.Info(ctx, "run finished",
		logger.Int("season", stats.Season),
		logger.Int64("matches", stats.Matches),
		logger.Int64("ticks", stats.Ticks),
		logger.Int("max_queue_size", stats.HighWater))
	return stats, nil
}

func (e *Engine) progress(ctx context.Context, done int64, budget int) {
	stats := e.Stats()
	metrics.UpdateQueueSize(e.policy, stats.Waiting)
	metrics.UpdateQueueHighWater(e.policy, stats.HighWater)
	e.log.Info(ctx, "progress",
		logger.Float64("done_pct", 100*float64(done)/float64(budget)),
		logger.Int("waiting", stats.Waiting),
		logger.Int("max_queue_size", stats.HighWater))
}

// RunSeasons plays seasons of perSeason matches each and decays ratings
// between seasons.
func (e *Engine) RunSeasons(ctx context.Context, seasons, perSeason int) (Stats, error) {
	if seasons <= 0 {
		return e.Stats(), fmt.Errorf("%w: seasons=%d", ErrNonPositiveBudget, seasons)
	}
	if perSeason <= 0 {
		return e.Stats(), fmt.Errorf("%w: matches per season=%d", ErrNonPositiveBudget, perSeason)
	}

	for s := 1; s <= seasons; s++ {
		e.mu.Lock()
		e.stats.Season = s
		e.mu.Unlock()
		metrics.UpdateSeason(e.policy, s)

		if _, err := e.Run(ctx, perSeason); err != nil {
			return e.Stats(), fmt.Errorf("season %d: %w", s, err)
		}
		if s < seasons {
			e.SeasonReset()
			e.log.Info(ctx, "season reset", logger.Int("season", s))
		}
	}
	return e.Stats(), nil
}

// SeasonReset decays every rating toward the floor. Queued entries are keyed
// by the old ratings, so the queues are dropped too.
func (e *Engine) SeasonReset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.HighWater = max(e.stats.HighWater, e.queues.HighWater())
	e.queues = e.newQueues()
	for _, c := range e.pop {
		e.model.SeasonReset(c)
	}
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Waiting = e.queues.Len()
	s.HighWater = max(e.stats.HighWater, e.queues.HighWater())
	s.Buckets = e.queues.BucketLens()
	return s
}
