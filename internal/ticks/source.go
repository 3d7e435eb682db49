// Package ticks reads and writes per-day tick files.
//
// Supported layouts, chosen by file extension:
//
//	.csv.lz4  LZ4-framed CSV rows "timestamp,symbol,price"
//	.csv      the same rows uncompressed
//	.parquet  columns timestamp, symbol, price
package ticks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cchevrot/backtest/internal/domain"
)

// Tick file errors.
var (
	// ErrMalformedTick marks a single unreadable record. The stream stays
	// usable and the caller may skip it.
	ErrMalformedTick = errors.New("malformed tick")

	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported tick file format")
)

// Format identifies a tick file layout.
type Format string

const (
	FormatCSVLZ4  Format = "csv.lz4"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// Source yields ticks in file order. Next returns io.EOF at the end of the
// stream and an error wrapping ErrMalformedTick for a bad record.
type Source interface {
	Next() (domain.Tick, error)
	Close() error
}

// DetectFormat infers the layout from a file name.
func DetectFormat(path string) (Format, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".csv.lz4"), strings.HasSuffix(name, ".lz4"):
		return FormatCSVLZ4, nil
	case strings.HasSuffix(name, ".csv"):
		return FormatCSV, nil
	case strings.HasSuffix(name, ".parquet"):
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Open opens a tick file for reading.
func Open(path string) (Source, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatParquet:
		return openParquet(path)
	default:
		return openCSV(path, format == FormatCSVLZ4)
	}
}

// Write stores ticks in the layout implied by path.
func Write(path string, ticks []domain.Tick) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	switch format {
	case FormatParquet:
		return writeParquet(path, ticks)
	default:
		return writeCSV(path, ticks, format == FormatCSVLZ4)
	}
}

// ListDays returns the tick files in dir, sorted by name. Files with an
// unsupported extension are ignored.
func ListDays(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := DetectFormat(e.Name()); err != nil {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
