package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/laddersim/internal/domain/competitor"
	"github.com/okian/laddersim/internal/domain/engine"
	"github.com/okian/laddersim/pkg/logger"
)

const directoryPermission = 0o750

// RunResult is the outcome of one policy run.
type RunResult struct {
	RunID      string                   `json:"run_id"`
	Policy     string                   `json:"policy"`
	Population []*competitor.Competitor `json:"-"`
	Stats      engine.Stats             `json:"stats"`
	Summary    Summary                  `json:"summary"`
}

// Sink consumes finished runs.
type Sink interface {
	Consume(ctx context.Context, r RunResult) error
}

// LogSink writes a summary of each run to the logger.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a sink logging through l.
func NewLogSink(l logger.Logger) *LogSink {
	return &LogSink{log: l}
}

func (s *LogSink) Consume(ctx context.Context, r RunResult) error {
	s.log.Info(ctx, "run summary",
		logger.String("run_id", r.RunID),
		logger.String("policy", r.Policy),
		logger.Int("competitors", r.Summary.Competitors),
		logger.Int("matches", r.Summary.TotalMatches),
		logger.Float64("mean_rating", r.Summary.MeanRating),
		logger.Int("max_rating", r.Summary.MaxRating),
		logger.Int("max_queue_size", r.Stats.HighWater),
	)
	for _, t := range r.Summary.Tiers {
		s.log.Info(ctx, "tier summary",
			logger.String("policy", r.Policy),
			logger.Int("tower_tier", t.TowerTier),
			logger.Int("count", t.Count),
			logger.Float64("mean_rating", t.MeanRating),
			logger.Float64("mean_mismatch", t.MeanMismatch),
		)
	}
	return nil
}

// CSVSink writes one CSV file per run into a directory.
type CSVSink struct {
	dir string
	log logger.Logger
}

// NewCSVSink creates a sink writing into dir, created on first use.
func NewCSVSink(dir string, l logger.Logger) *CSVSink {
	return &CSVSink{dir: dir, log: l}
}

// Path returns the file a run is written to.
func (s *CSVSink) Path(r RunResult) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", r.Policy, r.RunID))
}

func (s *CSVSink) Consume(ctx context.Context, r RunResult) (err error) {
	if err := os.MkdirAll(s.dir, directoryPermission); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	name := s.Path(r)
	f, err := os.Create(name) //nolint:gosec // path built from configured dir
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	if err := WriteCSV(f, r.Population); err != nil {
		return fmt.Errorf("run %s: %w", r.RunID, err)
	}

	s.log.Info(ctx, "population saved to file", logger.String("filename", name))
	return nil
}
