package config

import (
	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/ledger"
	"github.com/cchevrot/backtest/internal/ranking"
	"github.com/cchevrot/backtest/internal/search"
	"github.com/cchevrot/backtest/internal/strategy"
)

// Default values for optional configuration fields.
const (
	DefaultDataDir          = "data"
	DefaultPolicy           = "local"
	DefaultExploreTests     = 3
	DefaultDriver           = DriverFile
	DefaultResultsPath      = "results.csv"
	DefaultBestResultsPath  = "best_results.csv"
	DefaultCheckpointPath   = "best_config.json"
	DefaultSQLitePath       = "backtest.db"
	DefaultPostgresMaxConns = 4
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Data.Dir == "" && len(c.Data.Days) == 0 {
		c.Data.Dir = DefaultDataDir
	}

	if c.Simulation.ResortEvery == 0 {
		c.Simulation.ResortEvery = ranking.DefaultResortEvery
	}
	if c.Simulation.InitialCash == 0 {
		c.Simulation.InitialCash = ledger.DefaultInitialCash
	}

	s := &c.Search
	if s.MaxIterations == 0 {
		s.MaxIterations = search.DefaultMaxIterations
	}
	if s.MaxTestsPerParam == 0 {
		s.MaxTestsPerParam = search.DefaultMaxTests
	}
	if s.Policy == "" {
		s.Policy = DefaultPolicy
	}
	if s.ExploreTests == 0 {
		s.ExploreTests = DefaultExploreTests
	}
	if s.CandidateWorkers == 0 {
		s.CandidateWorkers = 1
	}
	if s.BestResultsTop == 0 {
		s.BestResultsTop = search.DefaultTopN
	}
	if len(s.Params) == 0 {
		s.Params = DefaultSearchSpace()
	}

	st := &c.Storage
	if st.Driver == "" {
		st.Driver = DefaultDriver
	}
	if st.ResultsPath == "" {
		st.ResultsPath = DefaultResultsPath
	}
	if st.BestResultsPath == "" {
		st.BestResultsPath = DefaultBestResultsPath
	}
	if st.CheckpointPath == "" {
		st.CheckpointPath = DefaultCheckpointPath
	}
	if st.SQLitePath == "" {
		st.SQLitePath = DefaultSQLitePath
	}
	if st.PostgresMaxConns == 0 {
		st.PostgresMaxConns = DefaultPostgresMaxConns
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// DefaultSearchSpace returns the stock parameter ranges. Disabled entries
// are held at their initial value.
func DefaultSearchSpace() map[string]RangeConfig {
	num := func(initial, lo, hi, step float64, priority int, enabled bool) RangeConfig {
		return RangeConfig{
			Initial:  Param(domain.Number(initial)),
			Min:      Param(domain.Number(lo)),
			Max:      Param(domain.Number(hi)),
			Step:     step,
			Priority: priority,
			Enabled:  &enabled,
		}
	}
	clock := func(initial, lo, hi int, step float64, priority int) RangeConfig {
		enabled := true
		return RangeConfig{
			Initial:  Param(domain.Clock(initial)),
			Min:      Param(domain.Clock(lo)),
			Max:      Param(domain.Clock(hi)),
			Step:     step,
			Priority: priority,
			Enabled:  &enabled,
		}
	}

	return map[string]RangeConfig{
		strategy.ParamMinMarketPnL:            num(43, 30, 60, 5, 1, true),
		strategy.ParamTakeProfitPnL:           num(70, 50, 100, 10, 2, true),
		strategy.ParamTrailStopPnL:            num(1040, 800, 1500, 100, 3, true),
		strategy.ParamTradeStartHour:          clock(9*60+30, 9*60, 10*60, 15, 4),
		strategy.ParamTradeCutoffHour:         clock(13*60+45, 13*60, 15*60, 15, 5),
		strategy.ParamMinEscapeTime:           num(83, 60, 120, 10, 6, true),
		strategy.ParamMaxTradesPerDay:         num(10, 5, 20, 2, 7, true),
		strategy.ParamStopMultiplier:          num(1, 1, 3, 0.5, 8, true),
		strategy.ParamStartMultiplier:         num(1.5, 1, 3, 0.5, 9, true),
		strategy.ParamTopNThreshold:           num(1, 1, 5, 1, 10, false),
		strategy.ParamTradeValue:              num(100, 50, 200, 25, 11, false),
		strategy.ParamTradeIntervalMinutes:    num(150000, 100000, 200000, 25000, 12, false),
		strategy.ParamMaxPnLTimeoutMinutes:    num(6000, 4000, 8000, 1000, 13, false),
		strategy.ParamMaxTradeDurationMinutes: num(60, 30, 120, 15, 14, false),
	}
}
