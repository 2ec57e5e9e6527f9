// Package service runs a policy comparison study: one base population, one
// independent simulation per matchmaking policy.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/okian/laddersim/internal/adapters/mq/queue"
	"github.com/okian/laddersim/internal/adapters/mq/worker"
	"github.com/okian/laddersim/internal/adapters/repository"
	"github.com/okian/laddersim/internal/config"
	"github.com/okian/laddersim/internal/domain/competitor"
	"github.com/okian/laddersim/internal/domain/engine"
	"github.com/okian/laddersim/internal/domain/matchmaking"
	"github.com/okian/laddersim/internal/domain/outcome"
	"github.com/okian/laddersim/internal/population"
	"github.com/okian/laddersim/internal/report"
	"github.com/okian/laddersim/pkg/logger"
	"github.com/okian/laddersim/pkg/metrics"
)

// Run statuses reported to metrics.
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// ErrAlreadyRunning is returned when Run is called while a study is in progress.
var ErrAlreadyRunning = errors.New("study already running")

// Service owns a study and exposes its progress.
type Service struct {
	mu sync.RWMutex

	cfg   *config.Config
	sinks []report.Sink

	// State
	running  bool
	started  time.Time
	finished time.Time
	engines  map[string]*engine.Engine
	results  []report.RunResult

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSinks adds result sinks. They receive runs in policy order.
func WithSinks(sinks ...report.Sink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// New constructs a Service for cfg.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		engines: make(map[string]*engine.Engine),
		logger:  logger.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Policies parses and de-duplicates the configured policies, keeping their order.
func Policies(names []string) ([]matchmaking.Policy, error) {
	policies := make([]matchmaking.Policy, 0, len(names))
	for _, name := range names {
		p, err := matchmaking.ParsePolicy(name)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return lo.Uniq(policies), nil
}

// QueueFactory returns fresh stores partitioned the way policy probes them.
func QueueFactory(p matchmaking.Policy, capacity int) engine.QueueFactory {
	partition := Partition(p.Tier())
	return func() engine.Queues {
		return repository.NewStore(partition, repository.WithCapacity(capacity))
	}
}

// Partition maps a policy tier onto a store partition.
func Partition(t matchmaking.Tier) repository.Partition {
	switch t {
	case matchmaking.TierTower:
		return repository.PartitionTower
	case matchmaking.TierCard:
		return repository.PartitionCard
	default:
		return repository.PartitionNone
	}
}

// Run generates the base population and simulates every policy on its own
// clone. Runs execute on the worker pool; results are returned and handed to
// the sinks in policy order.
func (s *Service) Run(ctx context.Context) ([]report.RunResult, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	s.running = true
	s.started = time.Now()
	s.engines = make(map[string]*engine.Engine)
	s.results = nil
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.finished = time.Now()
		s.mu.Unlock()
	}()

	policies, err := Policies(s.cfg.Policies)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	model, err := outcome.NewModel(s.cfg.ModelOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed)) //nolint:gosec // simulation randomness
	base, err := population.Generate(rng, s.cfg.PopulationSpec())
	if err != nil {
		return nil, fmt.Errorf("generate population: %w", err)
	}

	s.logger.Info(ctx, "study started",
		logger.Int("players", len(base)),
		logger.Int("policies", len(policies)),
		logger.Int("seasons", s.cfg.Seasons),
		logger.Int("matches_per_season", s.cfg.MatchesPerSeason),
	)

	results := make([]report.RunResult, len(policies))
	jobs := make([]queue.Job, len(policies))
	for i, p := range policies {
		job, err := s.prepare(p, base, model, &results[i])
		if err != nil {
			return nil, err
		}
		jobs[i] = job
	}

	if err := s.execute(ctx, jobs, len(policies)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.results = results
	s.mu.Unlock()

	for _, r := range results {
		for _, sink := range s.sinks {
			if err := sink.Consume(ctx, r); err != nil {
				return results, fmt.Errorf("sink %T: %w", sink, err)
			}
		}
	}

	s.logger.Info(ctx, "study finished", logger.Duration("duration", time.Since(s.started)))
	return results, nil
}

// prepare builds the engine for one policy so every configuration error
// surfaces before any run starts.
func (s *Service) prepare(p matchmaking.Policy, base []*competitor.Competitor, model *outcome.Model, out *report.RunResult) (queue.Job, error) {
	resolver, err := matchmaking.NewResolver(p, s.cfg.Rules())
	if err != nil {
		return queue.Job{}, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	runID := uuid.NewString()
	opts := []engine.Option{
		engine.WithSeed(s.cfg.Seed),
		engine.WithAbsence(s.cfg.WithAbsence),
		engine.WithStallLimit(s.cfg.StallLimit),
		engine.WithInvariantChecks(s.cfg.InvariantEvery),
		engine.WithRunID(runID),
		engine.WithLogger(s.logger.Named(p.String())),
	}
	if len(s.cfg.CardCaps) > 0 {
		opts = append(opts, engine.WithCardCaps(s.cfg.CardCaps))
	}

	pop := population.Clone(base)
	eng, err := engine.New(pop, model, resolver, QueueFactory(p, len(pop)), opts...)
	if err != nil {
		return queue.Job{}, fmt.Errorf("policy %s: %w", p, err)
	}

	s.mu.Lock()
	s.engines[p.String()] = eng
	s.mu.Unlock()

	run := func(ctx context.Context) error {
		start := time.Now()
		stats, err := eng.RunSeasons(ctx, s.cfg.Seasons, s.cfg.MatchesPerSeason)
		if err == nil {
			err = report.Verify(pop, model.Floor(), stats.Matches)
		}
		if err != nil {
			metrics.RecordRun(p.String(), statusFailed, time.Since(start))
			return fmt.Errorf("policy %s: %w", p, err)
		}
		metrics.RecordRun(p.String(), statusCompleted, time.Since(start))

		*out = report.RunResult{
			RunID:      runID,
			Policy:     p.String(),
			Population: pop,
			Stats:      stats,
			Summary:    report.Summarize(pop),
		}
		return nil
	}

	return queue.Job{ID: runID, Name: p.String(), Run: run}, nil
}

func (s *Service) execute(ctx context.Context, jobs []queue.Job, capacity int) error {
	if s.cfg.QueueSize > capacity {
		capacity = s.cfg.QueueSize
	}
	pool := worker.NewPool(s.cfg.WorkerCount, queue.NewInMemoryQueue(queue.WithCapacity(capacity)),
		worker.WithLogger(s.logger.Named("worker")))

	for _, j := range jobs {
		if err := pool.Submit(ctx, j); err != nil {
			return err
		}
	}

	pool.Start(ctx)
	go pool.Wait()

	var errs []error
	for res := range pool.Results() {
		if res.Err != nil {
			errs = append(errs, res.Err)
			continue
		}
		s.logger.Debug(ctx, "run completed",
			logger.String("policy", res.Name),
			logger.String("run_id", res.JobID),
			logger.Duration("duration", res.Duration),
		)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Results returns the runs of the last finished study.
func (s *Service) Results() []report.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]report.RunResult(nil), s.results...)
}

// GetStats returns study progress for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make(map[string]engine.Stats, len(s.engines))
	for name, eng := range s.engines {
		runs[name] = eng.Stats()
	}

	stats := map[string]interface{}{
		"running":            s.running,
		"seed":               s.cfg.Seed,
		"players":            s.cfg.Players,
		"seasons":            s.cfg.Seasons,
		"matches_per_season": s.cfg.MatchesPerSeason,
		"runs":               runs,
	}
	if !s.started.IsZero() {
		stats["started_at"] = s.started.UTC().Format(time.RFC3339)
	}
	if !s.finished.IsZero() {
		stats["finished_at"] = s.finished.UTC().Format(time.RFC3339)
	}
	return stats
}
