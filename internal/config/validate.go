package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/strategy"
)

// clockParams are the parameters expressed as HH:MM.
var clockParams = map[string]bool{
	strategy.ParamTradeStartHour:  true,
	strategy.ParamTradeCutoffHour: true,
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

// Validate checks every section. It also decodes the starting strategy
// configuration so a bad parameter set fails before any simulation.
func (c *Config) Validate() error {
	if c.Data.Dir == "" && len(c.Data.Days) == 0 {
		return invalid("data.dir or data.days is required")
	}

	sim := c.Simulation
	if sim.Workers < 0 {
		return invalid("simulation.workers must be >= 0")
	}
	if sim.ResortEvery < 1 {
		return invalid("simulation.resort_every must be >= 1")
	}
	if sim.InitialCash <= 0 {
		return invalid("simulation.initial_cash must be > 0")
	}
	if sim.UTCOffsetHours != nil && (*sim.UTCOffsetHours < -12 || *sim.UTCOffsetHours > 14) {
		return invalid("simulation.utc_offset_hours must be between -12 and 14, got %v", *sim.UTCOffsetHours)
	}

	for name, v := range c.Strategy {
		if err := checkKind("strategy."+name, name, v.Value); err != nil {
			return err
		}
	}

	if err := c.Search.validate(); err != nil {
		return err
	}
	if _, err := strategy.FromParams(c.StrategyParams()); err != nil {
		return invalid("strategy: %v", err)
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return invalid("logging.level %q is not a zerolog level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return invalid("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (s *SearchConfig) validate() error {
	if s.MaxIterations < 1 {
		return invalid("search.max_iterations must be >= 1")
	}
	if s.MaxTestsPerParam < 1 {
		return invalid("search.max_tests_per_param must be >= 1")
	}
	if s.ExploreTests < 1 {
		return invalid("search.explore_tests must be >= 1")
	}
	if s.CandidateWorkers < 1 {
		return invalid("search.candidate_workers must be >= 1")
	}
	if s.BestResultsTop < 1 {
		return invalid("search.best_results_top must be >= 1")
	}
	switch s.Policy {
	case "local", "sweep":
	default:
		return invalid("search.policy must be local or sweep, got %q", s.Policy)
	}

	enabled := 0
	for name, r := range s.Params {
		if err := r.validate(name); err != nil {
			return err
		}
		if r.Enabled == nil || *r.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return invalid("search.params has no enabled parameter")
	}
	return nil
}

func (r RangeConfig) validate(name string) error {
	prefix := "search.params." + name
	if !r.Initial.Set || !r.Min.Set || !r.Max.Set {
		return invalid("%s: initial, min and max are required", prefix)
	}
	for _, v := range []domain.Value{r.Initial.Value, r.Min.Value, r.Max.Value} {
		if err := checkKind(prefix, name, v); err != nil {
			return err
		}
	}
	if r.Min.Kind() != r.Max.Kind() || r.Min.Kind() != r.Initial.Kind() {
		return invalid("%s: initial, min and max must share a kind", prefix)
	}
	if r.Step <= 0 {
		return invalid("%s.step must be > 0", prefix)
	}
	if r.Min.Float() > r.Max.Float() {
		return invalid("%s: min %s is above max %s", prefix, r.Min, r.Max)
	}
	if r.Initial.Float() < r.Min.Float() || r.Initial.Float() > r.Max.Float() {
		return invalid("%s: initial %s is outside [%s, %s]", prefix, r.Initial, r.Min, r.Max)
	}
	return nil
}

func checkKind(field, name string, v domain.Value) error {
	if !v.Valid() {
		return invalid("%s: value is not finite", field)
	}
	if clockParams[name] && !v.IsClock() {
		return invalid("%s must be HH:MM, got %s", field, v)
	}
	if !clockParams[name] && v.IsClock() && isKnownNumber(name) {
		return invalid("%s must be a number, got %s", field, v)
	}
	return nil
}

func isKnownNumber(name string) bool {
	switch name {
	case strategy.ParamTakeProfitPnL, strategy.ParamTrailStopPnL, strategy.ParamMaxPnLTimeoutMinutes,
		strategy.ParamMaxTradeDurationMinutes, strategy.ParamStopMultiplier, strategy.ParamStartMultiplier,
		strategy.ParamMinEscapeTime, strategy.ParamTopNThreshold, strategy.ParamMinMarketPnL,
		strategy.ParamTradeValue, strategy.ParamTradeIntervalMinutes, strategy.ParamMaxTradesPerDay,
		strategy.ParamUTCOffsetHours, strategy.ParamNoiseFloor, strategy.ParamPeerGroupSize:
		return true
	}
	return false
}

func (s *StorageConfig) validate() error {
	switch s.Driver {
	case DriverFile:
		if s.ResultsPath == "" || s.CheckpointPath == "" {
			return invalid("storage.results_path and storage.checkpoint_path are required for the file driver")
		}
	case DriverSQLite:
		if s.SQLitePath == "" {
			return invalid("storage.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if s.PostgresDSN == "" {
			return invalid("storage.postgres_dsn is required for the postgres driver")
		}
		if s.PostgresMaxConns < 1 {
			return invalid("storage.postgres_max_conns must be >= 1")
		}
	case DriverMemory:
	default:
		return invalid("storage.driver must be file, sqlite, postgres or memory, got %q", s.Driver)
	}
	return nil
}
