// Package config defines the simulator configuration and its loading hooks.
package config

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/okian/laddersim/internal/domain/matchmaking"
	"github.com/okian/laddersim/internal/domain/outcome"
	"github.com/okian/laddersim/internal/population"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the telemetry listen address, e.g. ":9080". Empty disables it.
	Addr string `koanf:"addr"`

	Seed int64 `koanf:"seed"`

	// Population.
	Players           int    `koanf:"players"`
	InitialRating     int    `koanf:"initial_rating"`
	TowerDistribution string `koanf:"tower_distribution"`
	WithSkill         bool   `koanf:"with_skill"`
	WithAbsence       bool   `koanf:"with_absence"`
	CapByTower        bool   `koanf:"cap_by_tower"`

	// Study.
	Policies         []string `koanf:"policies"`
	Seasons          int      `koanf:"seasons"`
	MatchesPerSeason int      `koanf:"matches_per_season"`

	// Outcome model.
	RatingFloor     int                `koanf:"rating_floor"`
	BaseExchange    int                `koanf:"base_exchange"`
	ExchangeDivisor int                `koanf:"exchange_divisor"`
	LossTable       []outcome.LossBand `koanf:"loss_table"`
	Gates           []int              `koanf:"gates"`
	CardCaps        []int              `koanf:"card_caps"`

	// Matchmaking rules.
	RatingBand                 int  `koanf:"rating_band"`
	MaxTowerDiff               int  `koanf:"max_tower_diff"`
	TowerCutoff                int  `koanf:"tower_cutoff"`
	MaxCardDiff                int  `koanf:"max_card_diff"`
	CardCutoff                 int  `koanf:"card_cutoff"`
	TryBucketsWhenGeneralEmpty bool `koanf:"try_buckets_when_general_empty"`

	// Execution.
	StallLimit     int    `koanf:"stall_limit"`
	InvariantEvery int64  `koanf:"invariant_every"`
	WorkerCount    int    `koanf:"worker_count"`
	QueueSize      int    `koanf:"queue_size"`
	OutputDir      string `koanf:"output_dir"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Seed:              42,
		Players:           10_000,
		InitialRating:     outcome.DefaultFloor,
		TowerDistribution: population.DistributionUniform,
		Policies:          []string{"none", "tower-tier", "card-tier", "combined"},
		Seasons:           5,
		MatchesPerSeason:  200_000,
		RatingFloor:       outcome.DefaultFloor,
		BaseExchange:      outcome.DefaultBaseExchange,
		ExchangeDivisor:   outcome.DefaultDivisor,
		LossTable:         outcome.DefaultLossTable(),
		RatingBand:        matchmaking.DefaultRules().RatingBand,
		MaxTowerDiff:      1,
		TowerCutoff:       6000,
		MaxCardDiff:       8,
		CardCutoff:        6000,
		WorkerCount:       runtime.NumCPU(),
		QueueSize:         64,
	}
}

// Validate reports every configuration error that must stop the process
// before any simulation state is touched.
func (c *Config) Validate() error {
	switch {
	case c.Players < 2:
		return fmt.Errorf("%w: players must be at least 2, got %d", ErrInvalidConfig, c.Players)
	case c.InitialRating < c.RatingFloor:
		return fmt.Errorf("%w: initial_rating %d below rating_floor %d", ErrInvalidConfig, c.InitialRating, c.RatingFloor)
	case c.Seasons < 1:
		return fmt.Errorf("%w: seasons must be positive, got %d", ErrInvalidConfig, c.Seasons)
	case c.MatchesPerSeason < 1:
		return fmt.Errorf("%w: matches_per_season must be positive, got %d", ErrInvalidConfig, c.MatchesPerSeason)
	case c.ExchangeDivisor < 1:
		return fmt.Errorf("%w: exchange_divisor must be positive, got %d", ErrInvalidConfig, c.ExchangeDivisor)
	case c.RatingBand < 0:
		return fmt.Errorf("%w: rating_band must not be negative, got %d", ErrInvalidConfig, c.RatingBand)
	case c.StallLimit < 0 || c.WorkerCount < 0 || c.QueueSize < 0 || c.InvariantEvery < 0:
		return fmt.Errorf("%w: stall_limit, invariant_every, worker_count and queue_size must not be negative", ErrInvalidConfig)
	case len(c.Policies) == 0:
		return fmt.Errorf("%w: at least one policy is required", ErrInvalidConfig)
	}

	if !strictlyAscending(c.Gates) {
		return fmt.Errorf("%w: gates must be strictly ascending: %v", ErrInvalidConfig, c.Gates)
	}
	if !sort.IntsAreSorted(c.CardCaps) {
		return fmt.Errorf("%w: card_caps must be ascending: %v", ErrInvalidConfig, c.CardCaps)
	}

	switch c.TowerDistribution {
	case population.DistributionUniform, population.DistributionGaussian:
	default:
		return fmt.Errorf("%w: tower_distribution %q", ErrInvalidConfig, c.TowerDistribution)
	}

	rules := c.Rules()
	for _, name := range c.Policies {
		p, err := matchmaking.ParsePolicy(name)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if err := rules.Validate(p); err != nil {
			return fmt.Errorf("%w: policy %s: %w", ErrInvalidConfig, p, err)
		}
	}
	return nil
}

// Rules returns the matchmaking rules the config describes.
func (c *Config) Rules() matchmaking.Rules {
	return matchmaking.Rules{
		RatingBand:                 c.RatingBand,
		MaxTowerDiff:               matchmaking.Bound(c.MaxTowerDiff),
		TowerCutoff:                c.TowerCutoff,
		MaxCardDiff:                matchmaking.Bound(c.MaxCardDiff),
		CardCutoff:                 c.CardCutoff,
		TryBucketsWhenGeneralEmpty: c.TryBucketsWhenGeneralEmpty,
	}
}

// ModelOptions returns the outcome model options the config describes.
func (c *Config) ModelOptions() []outcome.Option {
	return []outcome.Option{
		outcome.WithFloor(c.RatingFloor),
		outcome.WithExchange(c.BaseExchange, c.ExchangeDivisor),
		outcome.WithLossTable(c.LossTable),
		outcome.WithGates(c.Gates),
	}
}

// PopulationSpec returns the generation parameters of the base population.
func (c *Config) PopulationSpec() population.Spec {
	return population.Spec{
		Count:        c.Players,
		Rating:       c.InitialRating,
		Distribution: c.TowerDistribution,
		WithSkill:    c.WithSkill,
		WithAbsence:  c.WithAbsence,
		CapByTower:   c.CapByTower,
	}
}

func strictlyAscending(xs []int) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return false
		}
	}
	return true
}
