package ticks

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pierrec/lz4/v4"

	"github.com/cchevrot/backtest/internal/domain"
)

var sample = []domain.Tick{
	{Timestamp: 1704189600, Symbol: "AAA", Price: 10},
	{Timestamp: 1704189601, Symbol: "BBB", Price: 20.5},
	{Timestamp: 1704189602, Symbol: "AAA", Price: 10.25},
}

func TestWriteOpen_AllFormats(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"day.csv", "day.csv.lz4", "day.parquet"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Write(path, sample); err != nil {
				t.Fatalf("write: %v", err)
			}
			got, err := ReadAll(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(got) != len(sample) {
				t.Fatalf("read %d ticks, want %d", len(got), len(sample))
			}
			for i := range sample {
				if got[i] != sample[i] {
					t.Errorf("tick %d = %+v, want %+v", i, got[i], sample[i])
				}
			}
		})
	}
}

func TestCSV_SkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "day.csv.lz4")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := lz4.NewWriter(f)
	_, _ = zw.Write([]byte("timestamp,symbol,price\n" +
		"1704189600,AAA,10\n" +
		"1704189601,BBB,n/a\n" +
		"1704189602,CCC\n" +
		"1704189603.7,AAA,11\n"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	src, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	var good []domain.Tick
	malformed := 0
	for {
		tk, err := src.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrMalformedTick) {
			malformed++
			continue
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		good = append(good, tk)
	}

	if malformed != 2 {
		t.Errorf("malformed = %d, want 2", malformed)
	}
	if len(good) != 2 || good[1].Timestamp != 1704189603 {
		t.Errorf("unexpected ticks: %+v", good)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.csv.lz4"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	if _, err := DetectFormat("prices.json"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if f, _ := DetectFormat("/data/2024-01-02.CSV.LZ4"); f != FormatCSVLZ4 {
		t.Errorf("format = %s, want %s", f, FormatCSVLZ4)
	}
}

func TestListDaysAndStat(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv.lz4", "a.parquet", "notes.txt"} {
		path := filepath.Join(dir, name)
		if name == "notes.txt" {
			_ = os.WriteFile(path, []byte("x"), 0o644)
			continue
		}
		if err := Write(path, sample); err != nil {
			t.Fatal(err)
		}
	}

	days, err := ListDays(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 2 || filepath.Base(days[0]) != "a.parquet" {
		t.Fatalf("days = %v", days)
	}

	st, err := Stat(days[1])
	if err != nil {
		t.Fatal(err)
	}
	if st.Ticks != 3 || st.Symbols != 2 || st.FirstTime != 1704189600 || st.LastTime != 1704189602 {
		t.Errorf("stats = %+v", st)
	}
}
