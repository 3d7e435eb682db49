// Package file implements the results log, best-results report and
// checkpoint as plain files.
package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/idhash"
	"github.com/cchevrot/backtest/internal/storage"
)

// Metric columns written before the parameter columns. Any other header
// column is a parameter.
const (
	colPnL          = "pnl"
	colInvested     = "total_invested_capital"
	colROI          = "total_roi"
	colStd          = "daily_pnl_std"
	colPositiveDays = "positive_or_zero_pnl_days"
	colNegativeDays = "negative_pnl_days"
	colDrawdown     = "drawdown"
	colTotalTrades  = "total_trades"
	colDays         = "days"
	colWinRate      = "win_rate"
	colCreatedAt    = "created_at"
)

var metricColumns = []string{
	colPnL, colInvested, colROI, colStd, colPositiveDays, colNegativeDays,
	colDrawdown, colTotalTrades, colDays, colWinRate, colCreatedAt,
}

// ResultStore is an append-only CSV results log: one row per evaluated
// configuration, metric columns followed by one column per parameter.
// Config IDs are recomputed from the parameters on load.
type ResultStore struct {
	mu        sync.RWMutex
	path      string
	params    []string // parameter columns, nil until the header is known
	records   []*domain.ResultRecord
	ids       map[string]struct{}
	hasHeader bool
}

// NewResultStore opens path, loading any existing rows.
func NewResultStore(path string) (*ResultStore, error) {
	s := &ResultStore{
		path: path,
		ids:  make(map[string]struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var _ storage.ResultStore = (*ResultStore)(nil)

// Append writes one row and syncs the file.
// Returns ErrDuplicateKey if config_id exists and ErrSchemaMismatch if the
// record's parameter names differ from the file's columns.
func (s *ResultStore) Append(_ context.Context, r *domain.ResultRecord) error {
	if err := storage.Validate(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[r.ConfigID]; exists {
		return storage.ErrDuplicateKey
	}
	names := r.Params.Names()
	if s.params == nil {
		s.params = names
	} else if !sameNames(s.params, names) {
		return fmt.Errorf("%w: have %v, got %v", storage.ErrSchemaMismatch, s.params, names)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open results log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !s.hasHeader {
		if err := w.Write(append(append([]string{}, metricColumns...), s.params...)); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(s.row(r)); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush results log: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync results log: %w", err)
	}

	s.hasHeader = true
	s.ids[r.ConfigID] = struct{}{}
	s.records = append(s.records, copyRecord(r))
	return nil
}

// LoadAll returns every record in file order.
func (s *ResultStore) LoadAll(_ context.Context) ([]*domain.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ResultRecord, len(s.records))
	for i, r := range s.records {
		out[i] = copyRecord(r)
	}
	return out, nil
}

// Top returns the n best records by total pnl.
func (s *ResultStore) Top(ctx context.Context, n int) ([]*domain.ResultRecord, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return storage.RankByPnL(all, n), nil
}

func (s *ResultStore) row(r *domain.ResultRecord) []string {
	m := r.Metrics
	roi := ""
	if m.TotalROI != nil {
		roi = formatFloat(*m.TotalROI)
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	row := []string{
		formatFloat(m.TotalPnL),
		formatFloat(m.TotalInvestedCapital),
		roi,
		formatFloat(m.DailyPnLStd),
		strconv.Itoa(m.PositiveOrZeroPnLDays),
		strconv.Itoa(m.NegativePnLDays),
		formatFloat(m.Drawdown),
		strconv.Itoa(m.TotalTrades),
		strconv.Itoa(m.Days),
		formatFloat(m.WinRate),
		created.UTC().Format(time.RFC3339),
	}
	for _, name := range s.params {
		row = append(row, r.Params[name].String())
	}
	return row
}

func (s *ResultStore) load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open results log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	s.hasHeader = true

	known := make(map[string]bool, len(metricColumns))
	for _, c := range metricColumns {
		known[c] = true
	}
	var params []string
	for _, c := range header {
		if !known[c] {
			params = append(params, c)
		}
	}
	s.params = params

	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("results log line %d: %w", line, err)
		}
		res, err := parseRow(header, rec)
		if err != nil {
			return fmt.Errorf("results log line %d: %w", line, err)
		}
		if _, dup := s.ids[res.ConfigID]; dup {
			continue
		}
		s.ids[res.ConfigID] = struct{}{}
		s.records = append(s.records, res)
	}
}

func parseRow(header, rec []string) (*domain.ResultRecord, error) {
	if len(rec) != len(header) {
		return nil, fmt.Errorf("%w: %d fields, header has %d", storage.ErrInvalidInput, len(rec), len(header))
	}
	res := &domain.ResultRecord{Params: make(domain.Params)}
	m := &res.Metrics

	var err error
	for i, col := range header {
		cell := rec[i]
		switch col {
		case colPnL:
			m.TotalPnL, err = strconv.ParseFloat(cell, 64)
		case colInvested:
			m.TotalInvestedCapital, err = parseOptionalFloat(cell)
		case colROI:
			if cell != "" {
				var roi float64
				roi, err = strconv.ParseFloat(cell, 64)
				m.TotalROI = &roi
			}
		case colStd:
			m.DailyPnLStd, err = parseOptionalFloat(cell)
		case colPositiveDays:
			m.PositiveOrZeroPnLDays, err = parseOptionalInt(cell)
		case colNegativeDays:
			m.NegativePnLDays, err = parseOptionalInt(cell)
		case colDrawdown:
			m.Drawdown, err = parseOptionalFloat(cell)
		case colTotalTrades:
			m.TotalTrades, err = parseOptionalInt(cell)
		case colDays:
			m.Days, err = parseOptionalInt(cell)
		case colWinRate:
			m.WinRate, err = parseOptionalFloat(cell)
		case colCreatedAt:
			if cell != "" {
				res.CreatedAt, err = time.Parse(time.RFC3339, cell)
			}
		default:
			if cell == "" {
				continue
			}
			var v domain.Value
			v, err = domain.ParseValue(cell)
			res.Params[col] = v
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
	}

	res.ConfigID, res.Key, err = idhash.ConfigID(res.Params)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func parseOptionalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseOptionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	have := make(map[string]struct{}, len(a))
	for _, n := range a {
		have[n] = struct{}{}
	}
	for _, n := range b {
		if _, ok := have[n]; !ok {
			return false
		}
	}
	return true
}

func copyRecord(r *domain.ResultRecord) *domain.ResultRecord {
	c := *r
	c.Params = r.Params.Clone()
	if r.Metrics.TotalROI != nil {
		roi := *r.Metrics.TotalROI
		c.Metrics.TotalROI = &roi
	}
	return &c
}
