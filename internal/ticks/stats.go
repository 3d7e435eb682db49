package ticks

import (
	"errors"
	"io"

	"github.com/cchevrot/backtest/internal/domain"
)

// FileStats summarizes a tick file.
type FileStats struct {
	Ticks     int   `json:"ticks"`
	Malformed int   `json:"malformed"`
	Symbols   int   `json:"symbols"`
	FirstTime int64 `json:"first_time"`
	LastTime  int64 `json:"last_time"`
}

// Stat reads a whole tick file and reports its contents.
func Stat(path string) (FileStats, error) {
	src, err := Open(path)
	if err != nil {
		return FileStats{}, err
	}
	defer src.Close()

	var st FileStats
	symbols := make(map[string]struct{})
	for {
		t, err := src.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrMalformedTick) {
			st.Malformed++
			continue
		}
		if err != nil {
			return st, err
		}
		if st.Ticks == 0 || t.Timestamp < st.FirstTime {
			st.FirstTime = t.Timestamp
		}
		if t.Timestamp > st.LastTime {
			st.LastTime = t.Timestamp
		}
		symbols[t.Symbol] = struct{}{}
		st.Ticks++
	}
	st.Symbols = len(symbols)
	return st, nil
}

// ReadAll loads every well-formed tick of a file.
func ReadAll(path string) ([]domain.Tick, error) {
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var out []domain.Tick
	for {
		t, err := src.Next()
		if err == io.EOF {
			return out, nil
		}
		if errors.Is(err, ErrMalformedTick) {
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
}
