// Command optimize searches the strategy parameter space with a coordinate
// hill-climb over a fixed set of day files.
//
// Results are memoized in the configured store so an interrupted search can
// resume without re-simulating known configurations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cchevrot/backtest/internal/config"
	"github.com/cchevrot/backtest/internal/idhash"
	"github.com/cchevrot/backtest/internal/logging"
	"github.com/cchevrot/backtest/internal/observability"
	"github.com/cchevrot/backtest/internal/orchestrator"
	"github.com/cchevrot/backtest/internal/reporting"
	"github.com/cchevrot/backtest/internal/search"
	"github.com/cchevrot/backtest/internal/simulation"
)

func main() {
	configPath := flag.String("config", "", "YAML run configuration (defaults apply when empty)")
	dataDir := flag.String("data-dir", "", "Directory of day files (overrides data.dir)")
	driver := flag.String("storage", "", "Storage driver: file, sqlite, postgres, memory (overrides storage.driver)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides storage.postgres_dsn)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse DSN for the results mirror (overrides storage.clickhouse_dsn)")
	resume := flag.Bool("resume", false, "Start from the stored checkpoint")
	maxIterations := flag.Int("max-iterations", 0, "Iteration cap (overrides search.max_iterations)")
	workers := flag.Int("workers", 0, "Concurrent day simulations (overrides simulation.workers)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides metrics.listen)")
	reportPath := flag.String("report", "", "Write a markdown summary to this file")
	verifyTop := flag.Int("verify-top", 0, "Replay the N best stored results before searching and report divergences")
	logLevel := flag.String("log-level", "", "Log level (overrides logging.level)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "optimize: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
		cfg.Data.Days = nil
	}
	if *driver != "" {
		cfg.Storage.Driver = *driver
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}
	if *resume {
		cfg.Search.Resume = true
	}
	if *maxIterations > 0 {
		cfg.Search.MaxIterations = *maxIterations
	}
	if *workers > 0 {
		cfg.Simulation.Workers = *workers
	}
	if *metricsAddr != "" {
		cfg.Metrics.Listen = *metricsAddr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format).With().Str("cmd", "optimize").Logger()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := run(cfg, *reportPath, *verifyTop, logger); err != nil {
		logger.Fatal().Err(err).Msg("search failed")
	}
}

func run(cfg *config.Config, reportPath string, verifyTop int, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	files, err := cfg.DayFiles()
	if err != nil {
		return fmt.Errorf("list day files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no day files in %s", cfg.Data.Dir)
	}
	logger.Info().
		Int("days", len(files)).
		Str("dataset_id", idhash.ComputeDataSetID(files)).
		Msg("day files loaded")

	if cfg.Metrics.Listen != "" {
		srv := startMetricsServer(cfg.Metrics.Listen, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	st, err := openStores(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	runner := simulation.NewDayRunner(simulation.DayRunnerOptions{
		ResortEvery:   cfg.Simulation.ResortEvery,
		InitialCash:   cfg.Simulation.InitialCash,
		Logger:        &logger,
		RecordMetrics: true,
	})
	batch := simulation.NewBatch(simulation.BatchOptions{
		Days:          files,
		Workers:       cfg.Simulation.Workers,
		Runner:        runner,
		Logger:        &logger,
		RecordMetrics: true,
	})

	orch := orchestrator.New(orchestrator.Options{
		Simulator:        batch,
		Space:            cfg.SearchSpace(),
		Results:          st.results,
		Checkpoints:      st.checkpoints,
		Reporter:         st.reporter,
		Start:            cfg.StrategyParams(),
		Policy:           newPolicy(cfg.Search),
		Explore:          newExplorePolicy(cfg.Search),
		MaxIterations:    cfg.Search.MaxIterations,
		CandidateWorkers: cfg.Search.CandidateWorkers,
		Resume:           cfg.Search.Resume,
		TopN:             cfg.Search.BestResultsTop,
		VerifyTop:        verifyTop,
		BuildReport:      reportPath != "",
		Logger:           &logger,
		RecordMetrics:    true,
	})
	res, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	if res.Report != nil {
		if err := os.WriteFile(reportPath, []byte(reporting.RenderMarkdown(res.Report)), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info().Str("path", reportPath).Msg("report written")
	}
	return nil
}

func newPolicy(s config.SearchConfig) search.Policy {
	if s.Policy == "sweep" {
		return search.SweepPolicy{}
	}
	return search.LocalPolicy{MaxTests: s.MaxTestsPerParam}
}

// newExplorePolicy tries the offsets just beyond the local window.
func newExplorePolicy(s config.SearchConfig) search.Policy {
	if !s.Explore {
		return nil
	}
	return search.ExplorePolicy{From: s.MaxTestsPerParam + 1, To: s.MaxTestsPerParam + s.ExploreTests}
}

// startMetricsServer serves /metrics and /health until shut down.
func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return srv
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
