// Command laddersim runs a matchmaking policy study over a synthetic ladder.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/okian/laddersim/internal/adapters/http/api"
	"github.com/okian/laddersim/internal/adapters/http/swagger"
	service "github.com/okian/laddersim/internal/app"
	"github.com/okian/laddersim/internal/config"
	"github.com/okian/laddersim/internal/report"
	"github.com/okian/laddersim/pkg/logger"
	"github.com/okian/laddersim/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// logFormatEnv selects text or json log output.
const logFormatEnv = "LADDERSIM_LOG_FORMAT"

func main() {
	// Only the custom registry is served; drop the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(logger.WithFormat(os.Getenv(logFormatEnv))); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		logger.Get().Error(ctx, "laddersim failed", logger.Error(err))
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: logger is synced above
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "laddersim",
		Usage:  "compare ladder matchmaking policies on a synthetic population",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{config.EnvFile}},
			&cli.Int64Flag{Name: "seed", Usage: "random seed"},
			&cli.StringSliceFlag{Name: "policy", Aliases: []string{"p"}, Usage: "policy to run (repeatable)"},
			&cli.IntFlag{Name: "players", Usage: "population size"},
			&cli.IntFlag{Name: "seasons", Usage: "number of seasons"},
			&cli.IntFlag{Name: "matches", Usage: "matches per season"},
			&cli.StringFlag{Name: "addr", Usage: "telemetry listen address, empty disables"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "directory for per-run CSV files"},
			&cli.BoolFlag{Name: "linger", Usage: "keep serving telemetry after the study until interrupted"},
		},
		Action: runStudy,
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "print the effective configuration",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					enc := json.NewEncoder(c.App.Writer)
					enc.SetIndent("", "  ")
					return enc.Encode(cfg)
				},
			},
		},
	}
}

// loadConfig layers command line flags over the file and env configuration.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("seed") {
		cfg.Seed = c.Int64("seed")
	}
	if c.IsSet("policy") {
		cfg.Policies = c.StringSlice("policy")
	}
	if c.IsSet("players") {
		cfg.Players = c.Int("players")
	}
	if c.IsSet("seasons") {
		cfg.Seasons = c.Int("seasons")
	}
	if c.IsSet("matches") {
		cfg.MatchesPerSeason = c.Int("matches")
	}
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("output") {
		cfg.OutputDir = c.String("output")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runStudy(c *cli.Context) error {
	ctx := c.Context
	log := logger.Get()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	sinks := []report.Sink{report.NewLogSink(log.Named("report"))}
	if cfg.OutputDir != "" {
		sinks = append(sinks, report.NewCSVSink(cfg.OutputDir, log.Named("report")))
	}
	svc := service.New(cfg, service.WithLogger(log), service.WithSinks(sinks...))

	go startSystemMetricsUpdater(ctx)

	var srv *http.Server
	if cfg.Addr != "" {
		srv = startServer(ctx, cfg.Addr, svc, log)
		defer shutdownServer(srv, log)
	}

	results, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	if err := printResults(c.App.Writer, results); err != nil {
		return err
	}

	if srv != nil && c.Bool("linger") {
		log.Info(ctx, "study finished; serving telemetry until interrupted", logger.String("addr", cfg.Addr))
		<-ctx.Done()
	}
	return nil
}

func printResults(w io.Writer, results []report.RunResult) error {
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%-12s matches=%d mean_rating=%.1f max_rating=%d max_queue=%d\n",
			r.Policy, r.Stats.Matches, r.Summary.MeanRating, r.Summary.MaxRating, r.Stats.HighWater); err != nil {
			return fmt.Errorf("print results: %w", err)
		}
		for _, t := range r.Summary.Tiers {
			if _, err := fmt.Fprintf(w, "  tower %2d  n=%-6d rating=%.1f mismatch/match=%.3f\n",
				t.TowerTier, t.Count, t.MeanRating, t.MeanMismatch); err != nil {
				return fmt.Errorf("print results: %w", err)
			}
		}
	}
	return nil
}

func startServer(ctx context.Context, addr string, svc *service.Service, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc).Register(ctx, mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}()
	return srv
}

func shutdownServer(srv *http.Server, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// startSystemMetricsUpdater refreshes the process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.Global().RefreshInterval())
	defer ticker.Stop()

	for {
		updateSystemMetrics()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
