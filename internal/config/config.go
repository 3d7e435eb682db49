// Package config loads the YAML run configuration shared by the simulate
// and optimize commands.
package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cchevrot/backtest/internal/domain"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root of a run configuration file.
type Config struct {
	Data       DataConfig            `yaml:"data"`
	Simulation SimulationConfig      `yaml:"simulation"`
	Strategy   map[string]ParamValue `yaml:"strategy"`
	Search     SearchConfig          `yaml:"search"`
	Storage    StorageConfig         `yaml:"storage"`
	Logging    LoggingConfig         `yaml:"logging"`
	Metrics    MetricsConfig         `yaml:"metrics"`
}

// DataConfig locates the day files.
type DataConfig struct {
	Dir        string   `yaml:"dir"`
	Days       []string `yaml:"days"`       // explicit files, used instead of listing Dir
	Extensions []string `yaml:"extensions"` // e.g. ".csv.lz4"; empty accepts every supported format
}

// SimulationConfig tunes the day and batch simulators.
type SimulationConfig struct {
	Workers        int      `yaml:"workers"` // 0 uses every CPU
	ResortEvery    int      `yaml:"resort_every"`
	InitialCash    float64  `yaml:"initial_cash"`
	UTCOffsetHours *float64 `yaml:"utc_offset_hours"` // applied when the strategy section omits it
}

// SearchConfig tunes the parameter search.
type SearchConfig struct {
	MaxIterations    int                    `yaml:"max_iterations"`
	MaxTestsPerParam int                    `yaml:"max_tests_per_param"`
	Policy           string                 `yaml:"policy"` // local or sweep
	Explore          bool                   `yaml:"explore"`
	ExploreTests     int                    `yaml:"explore_tests"`
	CandidateWorkers int                    `yaml:"candidate_workers"`
	Resume           bool                   `yaml:"resume"`
	BestResultsTop   int                    `yaml:"best_results_top"`
	Params           map[string]RangeConfig `yaml:"params"` // empty uses DefaultSearchSpace
}

// RangeConfig declares one tunable parameter. Step is in minutes for
// HH:MM parameters.
type RangeConfig struct {
	Initial  ParamValue `yaml:"initial"`
	Min      ParamValue `yaml:"min"`
	Max      ParamValue `yaml:"max"`
	Step     float64    `yaml:"step"`
	Priority int        `yaml:"priority"`
	Enabled  *bool      `yaml:"enabled"` // nil means true
}

// StorageConfig selects where results and checkpoints live.
type StorageConfig struct {
	Driver           string `yaml:"driver"` // file, sqlite, postgres or memory
	ResultsPath      string `yaml:"results_path"`
	BestResultsPath  string `yaml:"best_results_path"`
	CheckpointPath   string `yaml:"checkpoint_path"`
	SQLitePath       string `yaml:"sqlite_path"`
	PostgresDSN      string `yaml:"postgres_dsn"`
	PostgresMaxConns int32  `yaml:"postgres_max_conns"`
	ClickhouseDSN    string `yaml:"clickhouse_dsn"` // optional results mirror
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

// ParamValue is a YAML scalar holding a number or an HH:MM time.
type ParamValue struct {
	domain.Value
	Set bool
}

// UnmarshalYAML parses the scalar with domain.ParseValue.
func (v *ParamValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: parameter value must be a number or HH:MM", node.Line)
	}
	parsed, err := domain.ParseValue(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	v.Value = parsed
	v.Set = true
	return nil
}

// Param wraps a domain value.
func Param(v domain.Value) ParamValue {
	return ParamValue{Value: v, Set: true}
}
