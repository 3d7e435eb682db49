// Package sqlite implements the results log and checkpoint in a single
// SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite" // Pure-Go SQLite driver.
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/storage"
	"github.com/cchevrot/backtest/internal/storage/migrations"
)

// Compile-time interface checks.
var _ storage.ResultStore = (*Store)(nil)
var _ storage.CheckpointStore = (*Store)(nil)

// Store implements ResultStore and CheckpointStore backed by a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath and applies the schema.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One writer; WAL keeps readers unblocked.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// ResultStore implementation
// ---------------------------------------------------------------------------

const resultColumns = `
	config_id, config_key,
	total_pnl, total_invested_capital, total_roi, daily_pnl_std,
	positive_or_zero_pnl_days, negative_pnl_days, drawdown,
	total_trades, days, win_rate, created_at`

// Append adds a record. Returns ErrDuplicateKey if config_id exists.
func (s *Store) Append(ctx context.Context, r *domain.ResultRecord) error {
	if err := storage.Validate(r); err != nil {
		return err
	}

	m := r.Metrics
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO result_records (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ConfigID, r.Key,
		m.TotalPnL, m.TotalInvestedCapital, m.TotalROI, m.DailyPnLStd,
		m.PositiveOrZeroPnLDays, m.NegativePnLDays, m.Drawdown,
		m.TotalTrades, m.Days, m.WinRate, formatTime(r.CreatedAt),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert result record: %w", err)
	}
	return nil
}

// LoadAll returns every record in insertion order.
func (s *Store) LoadAll(ctx context.Context) ([]*domain.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultColumns+` FROM result_records ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query result records: %w", err)
	}
	defer rows.Close()
	return scanResultRecords(rows)
}

// Top returns the n records with the highest total pnl.
func (s *Store) Top(ctx context.Context, n int) ([]*domain.ResultRecord, error) {
	if n <= 0 {
		n = -1 // no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM result_records ORDER BY total_pnl DESC, config_id ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query top result records: %w", err)
	}
	defer rows.Close()
	return scanResultRecords(rows)
}

func scanResultRecords(rows *sql.Rows) ([]*domain.ResultRecord, error) {
	var records []*domain.ResultRecord
	for rows.Next() {
		var (
			r       domain.ResultRecord
			roi     sql.NullFloat64
			created string
		)
		m := &r.Metrics
		err := rows.Scan(
			&r.ConfigID, &r.Key,
			&m.TotalPnL, &m.TotalInvestedCapital, &roi, &m.DailyPnLStd,
			&m.PositiveOrZeroPnLDays, &m.NegativePnLDays, &m.Drawdown,
			&m.TotalTrades, &m.Days, &m.WinRate, &created,
		)
		if err != nil {
			return nil, fmt.Errorf("scan result record row: %w", err)
		}
		if roi.Valid {
			v := roi.Float64
			m.TotalROI = &v
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", r.ConfigID, err)
		}
		if err := json.Unmarshal([]byte(r.Key), &r.Params); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", r.ConfigID, err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result record rows: %w", err)
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// CheckpointStore implementation
// ---------------------------------------------------------------------------

// Save appends a checkpoint row; the latest row is the checkpoint.
func (s *Store) Save(ctx context.Context, c *domain.BestCheckpoint) error {
	if c == nil || len(c.Params) == 0 {
		return storage.ErrInvalidInput
	}
	params, err := json.Marshal(c.Params)
	if err != nil {
		return fmt.Errorf("encode checkpoint params: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO best_checkpoints (saved_at, pnl, params) VALUES (?, ?, ?)`,
		formatTime(c.Timestamp), c.PnL, string(params))
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Load returns the latest checkpoint. Returns ErrNotFound if none exists.
func (s *Store) Load(ctx context.Context) (*domain.BestCheckpoint, error) {
	var (
		c             domain.BestCheckpoint
		saved, params string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT saved_at, pnl, params FROM best_checkpoints ORDER BY id DESC LIMIT 1`,
	).Scan(&saved, &c.PnL, &params)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	if c.Timestamp, err = time.Parse(time.RFC3339Nano, saved); err != nil {
		return nil, fmt.Errorf("parse checkpoint time: %w", err)
	}
	if err := json.Unmarshal([]byte(params), &c.Params); err != nil {
		return nil, fmt.Errorf("decode checkpoint params: %w", err)
	}
	return &c, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
