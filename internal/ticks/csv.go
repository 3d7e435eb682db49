package ticks

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/cchevrot/backtest/internal/domain"
)

type csvSource struct {
	file *os.File
	r    *csv.Reader
	line int
}

func openCSV(path string, compressed bool) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tick file: %w", err)
	}
	var in io.Reader = bufio.NewReader(f)
	if compressed {
		in = lz4.NewReader(in)
	}
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	return &csvSource{file: f, r: r}, nil
}

func (s *csvSource) Next() (domain.Tick, error) {
	for {
		rec, err := s.r.Read()
		s.line++
		if err == io.EOF {
			return domain.Tick{}, io.EOF
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return domain.Tick{}, fmt.Errorf("%w: line %d: %v", ErrMalformedTick, s.line, err)
			}
			// Corrupt compressed stream or I/O failure.
			return domain.Tick{}, fmt.Errorf("read tick file: %w", err)
		}
		if s.line == 1 && isHeader(rec) {
			continue
		}
		return parseRecord(rec, s.line)
	}
}

func (s *csvSource) Close() error {
	return s.file.Close()
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "timestamp")
}

func parseRecord(rec []string, line int) (domain.Tick, error) {
	if len(rec) != 3 {
		return domain.Tick{}, fmt.Errorf("%w: line %d: want 3 fields, got %d", ErrMalformedTick, line, len(rec))
	}
	ts, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return domain.Tick{}, fmt.Errorf("%w: line %d: bad timestamp %q", ErrMalformedTick, line, rec[0])
	}
	symbol := strings.TrimSpace(rec[1])
	if symbol == "" {
		return domain.Tick{}, fmt.Errorf("%w: line %d: empty symbol", ErrMalformedTick, line)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("%w: line %d: bad price %q", ErrMalformedTick, line, rec[2])
	}
	return domain.Tick{Timestamp: int64(ts), Symbol: symbol, Price: price}, nil
}

func writeCSV(path string, ticks []domain.Tick, compressed bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create tick file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	var out io.Writer = f
	var zw *lz4.Writer
	if compressed {
		zw = lz4.NewWriter(f)
		out = zw
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"timestamp", "symbol", "price"}); err != nil {
		return err
	}
	for _, t := range ticks {
		row := []string{
			strconv.FormatInt(t.Timestamp, 10),
			t.Symbol,
			strconv.FormatFloat(t.Price, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close lz4 frame: %w", err)
		}
	}
	return nil
}
