// Command ticks converts day files between formats and prints their
// statistics.
//
// Usage:
//
//	ticks convert -to parquet [-out dir] FILE...
//	ticks stat [-json] FILE...
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cchevrot/backtest/internal/logging"
	"github.com/cchevrot/backtest/internal/ticks"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	logger := logging.New("info", "console").With().Str("cmd", "ticks").Logger()

	var err error
	switch os.Args[1] {
	case "convert":
		err = convert(os.Args[2:], logger)
	case "stat":
		err = stat(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg(os.Args[1] + " failed")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  ticks convert -to csv.lz4|csv|parquet [-out dir] FILE...")
	fmt.Fprintln(os.Stderr, "  ticks stat [-json] FILE...")
}

func convert(args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	to := fs.String("to", string(ticks.FormatParquet), "Target format: csv.lz4, csv, parquet")
	outDir := fs.String("out", "", "Output directory (default: next to the input)")
	_ = fs.Parse(args)

	target := ticks.Format(*to)
	switch target {
	case ticks.FormatCSVLZ4, ticks.FormatCSV, ticks.FormatParquet:
	default:
		return fmt.Errorf("unknown target format %q", *to)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no input files")
	}

	for _, in := range fs.Args() {
		out, err := convertedPath(in, target, *outDir)
		if err != nil {
			return err
		}
		if out == in {
			logger.Warn().Str("file", in).Msg("already in target format, skipped")
			continue
		}
		all, err := ticks.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read %s: %w", in, err)
		}
		if err := ticks.Write(out, all); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		logger.Info().Str("from", in).Str("to", out).Int("ticks", len(all)).Msg("converted")
	}
	return nil
}

// convertedPath swaps the tick extension of in for the target's.
func convertedPath(in string, target ticks.Format, outDir string) (string, error) {
	format, err := ticks.DetectFormat(in)
	if err != nil {
		return "", err
	}
	base := filepath.Base(in)
	lower := strings.ToLower(base)
	switch {
	case strings.HasSuffix(lower, ".csv.lz4"):
		base = base[:len(base)-len(".csv.lz4")]
	default:
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	dir := filepath.Dir(in)
	if outDir != "" {
		dir = outDir
	}
	if format == target && outDir == "" {
		return in, nil
	}
	return filepath.Join(dir, base+"."+string(target)), nil
}

func stat(args []string) error {
	fs := flag.NewFlagSet("stat", flag.ExitOnError)
	outputJSON := fs.Bool("json", false, "Output as JSON")
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("no input files")
	}

	type fileStats struct {
		File string `json:"file"`
		ticks.FileStats
	}
	var all []fileStats
	for _, path := range fs.Args() {
		st, err := ticks.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		all = append(all, fileStats{File: path, FileStats: st})
	}

	if *outputJSON {
		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for _, s := range all {
		fmt.Printf("%s\n", s.File)
		fmt.Printf("  Ticks:      %d (%d malformed)\n", s.Ticks, s.Malformed)
		fmt.Printf("  Symbols:    %d\n", s.Symbols)
		if s.Ticks > 0 {
			first := time.Unix(s.FirstTime, 0).UTC()
			last := time.Unix(s.LastTime, 0).UTC()
			fmt.Printf("  Span:       %s .. %s (%s)\n", first.Format(time.RFC3339), last.Format(time.RFC3339), last.Sub(first))
		}
	}
	return nil
}
