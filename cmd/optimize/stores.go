package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cchevrot/backtest/internal/config"
	"github.com/cchevrot/backtest/internal/storage"
	chstore "github.com/cchevrot/backtest/internal/storage/clickhouse"
	"github.com/cchevrot/backtest/internal/storage/file"
	"github.com/cchevrot/backtest/internal/storage/memory"
	"github.com/cchevrot/backtest/internal/storage/migrations"
	pgstore "github.com/cchevrot/backtest/internal/storage/postgres"
	"github.com/cchevrot/backtest/internal/storage/sqlite"
)

// stores bundles the persistence used by one search.
type stores struct {
	results     storage.ResultStore
	checkpoints storage.CheckpointStore
	reporter    storage.Reporter
	closers     []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the configured driver, runs its migrations and adds
// the optional ClickHouse mirror. best_results.csv is written for every
// driver.
func openStores(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (*stores, error) {
	s := &stores{reporter: file.NewBestResults(cfg.BestResultsPath)}

	switch cfg.Driver {
	case config.DriverFile:
		results, err := file.NewResultStore(cfg.ResultsPath)
		if err != nil {
			return nil, fmt.Errorf("open results log: %w", err)
		}
		s.results = results
		s.checkpoints = file.NewCheckpointStore(cfg.CheckpointPath)

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		s.closers = append(s.closers, func() { db.Close() })
		s.results = db
		s.checkpoints = db

	case config.DriverPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		s.results = pgstore.NewResultStore(pool)
		s.checkpoints = pgstore.NewCheckpointStore(pool)

	case config.DriverMemory:
		s.results = memory.NewResultStore()
		s.checkpoints = memory.NewCheckpointStore()

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	s.results = storage.NewInstrumentedResultStore(cfg.Driver, s.results)
	s.checkpoints = storage.NewInstrumentedCheckpointStore(cfg.Driver, s.checkpoints)

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse mirror: %w", err)
		}
		s.closers = append(s.closers, func() { conn.Close() })
		mirror := storage.NewInstrumentedResultStore("clickhouse", chstore.NewResultStore(conn))
		s.results = storage.NewMultiResultStore(s.results, mirror)
		logger.Info().Msg("mirroring results to clickhouse")
	}

	logger.Info().Str("driver", cfg.Driver).Msg("storage ready")
	return s, nil
}
