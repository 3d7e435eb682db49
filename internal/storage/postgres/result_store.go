package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

const resultColumns = `
	config_id, config_key,
	total_pnl, total_invested_capital, total_roi, daily_pnl_std,
	positive_or_zero_pnl_days, negative_pnl_days, drawdown,
	total_trades, days, win_rate, created_at`

// Append adds a record. Returns ErrDuplicateKey if config_id exists.
func (s *ResultStore) Append(ctx context.Context, r *domain.ResultRecord) error {
	if err := storage.Validate(r); err != nil {
		return err
	}

	query := `
		INSERT INTO result_records (` + resultColumns + `, params)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	m := r.Metrics
	_, err := s.pool.Exec(ctx, query,
		r.ConfigID, r.Key,
		m.TotalPnL, m.TotalInvestedCapital, m.TotalROI, m.DailyPnLStd,
		m.PositiveOrZeroPnLDays, m.NegativePnLDays, m.Drawdown,
		m.TotalTrades, m.Days, m.WinRate, r.CreatedAt,
		[]byte(r.Key),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert result record: %w", err)
	}
	return nil
}

// LoadAll retrieves all records in insertion order.
func (s *ResultStore) LoadAll(ctx context.Context) ([]*domain.ResultRecord, error) {
	query := `SELECT ` + resultColumns + ` FROM result_records ORDER BY seq ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all result records: %w", err)
	}
	defer rows.Close()

	return scanResultRecords(rows)
}

// Top retrieves the n records with the highest total pnl.
func (s *ResultStore) Top(ctx context.Context, n int) ([]*domain.ResultRecord, error) {
	query := `SELECT ` + resultColumns + ` FROM result_records ORDER BY total_pnl DESC, config_id ASC`
	args := []any{}
	if n > 0 {
		query += ` LIMIT $1`
		args = append(args, n)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get top result records: %w", err)
	}
	defer rows.Close()

	return scanResultRecords(rows)
}

// scanResultRecords scans multiple rows into a slice of ResultRecord.
// Params are decoded from the canonical key.
func scanResultRecords(rows pgx.Rows) ([]*domain.ResultRecord, error) {
	var records []*domain.ResultRecord

	for rows.Next() {
		var r domain.ResultRecord
		m := &r.Metrics

		err := rows.Scan(
			&r.ConfigID, &r.Key,
			&m.TotalPnL, &m.TotalInvestedCapital, &m.TotalROI, &m.DailyPnLStd,
			&m.PositiveOrZeroPnLDays, &m.NegativePnLDays, &m.Drawdown,
			&m.TotalTrades, &m.Days, &m.WinRate, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan result record row: %w", err)
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
