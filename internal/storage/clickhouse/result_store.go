package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/storage"
)

// ResultStore implements storage.ResultStore using ClickHouse.
type ResultStore struct {
	conn *Conn
}

// NewResultStore creates a new ResultStore.
func NewResultStore(conn *Conn) *ResultStore {
	return &ResultStore{conn: conn}
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
	return s.AppendBulk(ctx, []*domain.ResultRecord{r})
}

// AppendBulk adds multiple records in one batch. Fails the entire batch on
// any duplicate.
func (s *ResultStore) AppendBulk(ctx context.Context, records []*domain.ResultRecord) error {
	if len(records) == 0 {
		return nil
	}

	// ReplacingMergeTree would silently replace, so duplicates are checked first.
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if err := storage.Validate(r); err != nil {
			return err
		}
		if _, dup := seen[r.ConfigID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[r.ConfigID] = struct{}{}

		exists, err := s.exists(ctx, r.ConfigID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO result_records (`+resultColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		m := r.Metrics
		err = batch.Append(
			r.ConfigID, r.Key,
			m.TotalPnL, m.TotalInvestedCapital, m.TotalROI, m.DailyPnLStd,
			uint32(m.PositiveOrZeroPnLDays), uint32(m.NegativePnLDays), m.Drawdown,
			uint32(m.TotalTrades), uint32(m.Days), m.WinRate, r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// LoadAll retrieves all records ordered by creation time.
func (s *ResultStore) LoadAll(ctx context.Context) ([]*domain.ResultRecord, error) {
	query := `SELECT ` + resultColumns + `
		FROM result_records FINAL
		ORDER BY created_at ASC, config_id ASC`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanResultRecords(rows)
}

// Top retrieves the n records with the highest total pnl.
func (s *ResultStore) Top(ctx context.Context, n int) ([]*domain.ResultRecord, error) {
	query := `SELECT ` + resultColumns + `
		FROM result_records FINAL
		ORDER BY total_pnl DESC, config_id ASC`
	args := []any{}
	if n > 0 {
		query += ` LIMIT ?`
		args = append(args, uint64(n))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top: %w", err)
	}
	defer rows.Close()

	return scanResultRecords(rows)
}

// exists checks if a record with the given config_id exists.
func (s *ResultStore) exists(ctx context.Context, configID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM result_records FINAL WHERE config_id = ?`, configID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanResultRecords scans multiple rows into a slice.
func scanResultRecords(rows chRows) ([]*domain.ResultRecord, error) {
	var records []*domain.ResultRecord

	for rows.Next() {
		var (
			r                                domain.ResultRecord
			positive, negative, trades, days uint32
		)
		m := &r.Metrics
		err := rows.Scan(
			&r.ConfigID, &r.Key,
			&m.TotalPnL, &m.TotalInvestedCapital, &m.TotalROI, &m.DailyPnLStd,
			&positive, &negative, &m.Drawdown,
			&trades, &days, &m.WinRate, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		m.PositiveOrZeroPnLDays = int(positive)
		m.NegativePnLDays = int(negative)
		m.TotalTrades = int(trades)
		m.Days = int(days)

		if err := json.Unmarshal([]byte(r.Key), &r.Params); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", r.ConfigID, err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}

	return records, nil
}
