// Command simulate evaluates one strategy configuration over a set of day
// files and prints the aggregate metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cchevrot/backtest/internal/config"
	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/idhash"
	"github.com/cchevrot/backtest/internal/logging"
	"github.com/cchevrot/backtest/internal/reporting"
	"github.com/cchevrot/backtest/internal/simulation"
)

func main() {
	configPath := flag.String("config", "", "YAML run configuration (defaults apply when empty)")
	dataDir := flag.String("data-dir", "", "Directory of day files (overrides data.dir)")
	days := flag.String("days", "", "Comma-separated day files (overrides data.days)")
	workers := flag.Int("workers", 0, "Concurrent day simulations (0 = config or every CPU)")
	logLevel := flag.String("log-level", "", "Log level (overrides logging.level)")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	daysCSV := flag.String("days-csv", "", "Write per-day metrics to this CSV file")

	overrides := domain.Params{}
	flag.Func("set", "Override a strategy parameter, name=value (repeatable)", func(s string) error {
		name, raw, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return fmt.Errorf("expected name=value, got %q", s)
		}
		v, err := domain.ParseValue(raw)
		if err != nil {
			return err
		}
		overrides[strings.TrimSpace(name)] = v
		return nil
	})

	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
		cfg.Data.Days = nil
	}
	if *days != "" {
		cfg.Data.Days = strings.Split(*days, ",")
	}
	if *workers > 0 {
		cfg.Simulation.Workers = *workers
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if cfg.Strategy == nil {
		cfg.Strategy = map[string]config.ParamValue{}
	}
	for name, v := range overrides {
		cfg.Strategy[name] = config.Param(v)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format).With().Str("cmd", "simulate").Logger()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	files, err := cfg.DayFiles()
	if err != nil {
		logger.Fatal().Err(err).Msg("list day files")
	}
	if len(files) == 0 {
		logger.Fatal().Str("dir", cfg.Data.Dir).Msg("no day files")
	}

	params := cfg.StrategyParams()
	configID, _, err := idhash.ConfigID(params)
	if err != nil {
		logger.Fatal().Err(err).Msg("canonicalize configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := simulation.NewDayRunner(simulation.DayRunnerOptions{
		ResortEvery: cfg.Simulation.ResortEvery,
		InitialCash: cfg.Simulation.InitialCash,
		Logger:      &logger,
	})
	batch := simulation.NewBatch(simulation.BatchOptions{
		Days:    files,
		Workers: cfg.Simulation.Workers,
		Runner:  runner,
		Logger:  &logger,
	})

	logger.Info().Int("days", len(files)).Str("config_id", configID).Msg("running simulation")

	report, err := batch.Run(ctx, params)
	if err != nil {
		logger.Fatal().Err(err).Msg("simulation failed")
	}

	if *daysCSV != "" {
		if err := os.WriteFile(*daysCSV, []byte(reporting.RenderDaysCSV(report.Days)), 0o644); err != nil {
			logger.Fatal().Err(err).Msg("write days csv")
		}
	}

	if *outputJSON {
		out := struct {
			ConfigID  string                  `json:"config_id"`
			DataSetID string                  `json:"dataset_id"`
			Config    domain.Params           `json:"config"`
			Aggregate domain.AggregateMetrics `json:"aggregate"`
			Days      []domain.DayMetrics     `json:"days"`
		}{
			ConfigID:  configID,
			DataSetID: idhash.ComputeDataSetID(dayNames(report.Days)),
			Config:    params,
			Aggregate: report.Aggregate,
			Days:      report.Days,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			logger.Fatal().Err(err).Msg("encode result")
		}
		fmt.Println(string(data))
		return
	}
	printReport(configID, params, report)
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

func dayNames(days []domain.DayMetrics) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Day
	}
	return out
}

// printReport outputs human-readable metrics.
func printReport(configID string, params domain.Params, r *simulation.Report) {
	a := r.Aggregate

	fmt.Println()
	fmt.Println("=== Simulation Result ===")
	fmt.Printf("Config ID:          %s\n", configID)
	for _, name := range params.Names() {
		fmt.Printf("  %-28s %s\n", name, params[name])
	}
	fmt.Println()

	fmt.Println("Aggregate:")
	fmt.Printf("  Days:             %d\n", a.Days)
	fmt.Printf("  Total PnL:        %.2f\n", a.TotalPnL)
	fmt.Printf("  Invested:         %.2f\n", a.TotalInvestedCapital)
	if a.TotalROI != nil {
		fmt.Printf("  ROI:              %.2f%%\n", *a.TotalROI)
	} else {
		fmt.Println("  ROI:              n/a")
	}
	fmt.Printf("  Daily PnL Std:    %.2f\n", a.DailyPnLStd)
	fmt.Printf("  Days >= 0 / < 0:  %d / %d\n", a.PositiveOrZeroPnLDays, a.NegativePnLDays)
	fmt.Printf("  Win Rate:         %.1f%%\n", a.WinRate)
	fmt.Printf("  Drawdown:         %.2f\n", a.Drawdown)
	fmt.Printf("  Trades:           %d\n", a.TotalTrades)
	fmt.Println()

	fmt.Println("Days:")
	for _, d := range r.Days {
		status := ""
		if d.Failed {
			status = " (failed)"
		}
		fmt.Printf("  %-24s pnl=%10.2f trades=%3d tickers=%3d%s\n", d.Day, d.PnL, d.Trades, d.DistinctTickersTraded, status)
	}
}
