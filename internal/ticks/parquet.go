package ticks

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/cchevrot/backtest/internal/domain"
)

// TickRecord is the Parquet schema for tick files.
type TickRecord struct {
	Timestamp int64   `parquet:"timestamp"` // epoch seconds
	Symbol    string  `parquet:"symbol"`
	Price     float64 `parquet:"price"`
}

// parquetSource serves a fully decoded file. Day files are small enough to
// hold in memory.
type parquetSource struct {
	rows []TickRecord
	pos  int
}

func openParquet(path string) (*parquetSource, error) {
	rows, err := parquet.ReadFile[TickRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet tick file: %w", err)
	}
	return &parquetSource{rows: rows}, nil
}

func (s *parquetSource) Next() (domain.Tick, error) {
	if s.pos >= len(s.rows) {
		return domain.Tick{}, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	if r.Symbol == "" {
		return domain.Tick{}, fmt.Errorf("%w: row %d: empty symbol", ErrMalformedTick, s.pos)
	}
	return domain.Tick{Timestamp: r.Timestamp, Symbol: r.Symbol, Price: r.Price}, nil
}

func (s *parquetSource) Close() error {
	s.rows = nil
	return nil
}

func writeParquet(path string, ticks []domain.Tick) error {
	rows := make([]TickRecord, len(ticks))
	for i, t := range ticks {
		rows[i] = TickRecord{Timestamp: t.Timestamp, Symbol: t.Symbol, Price: t.Price}
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write parquet tick file: %w", err)
	}
	return nil
}
