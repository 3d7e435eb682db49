// Package replay feeds a tick stream through a handler.
package replay

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/ticks"
)

// checkEvery is how many ticks pass between context checks.
const checkEvery = 4096

// Stats counts what a replay saw.
type Stats struct {
	Ticks      int   // delivered to the handler
	Malformed  int   // unreadable records
	Skipped    int   // rejected by the handler
	OutOfOrder int   // timestamp lower than its predecessor
	LastTime   int64 // timestamp of the last delivered tick
}

// Runner replays sources in file order.
type Runner struct {
	logger zerolog.Logger
}

// NewRunner creates a runner. Malformed and skipped ticks are logged at
// debug level.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run drains src into h. It returns the handler's first hard error, a read
// error from the source, or ctx.Err() if the context is cancelled.
func (r *Runner) Run(ctx context.Context, src ticks.Source, h Handler) (Stats, error) {
	var st Stats
	var prev int64

	for n := 0; ; n++ {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return st, err
			}
		}

		tick, err := src.Next()
		if err == io.EOF {
			return st, nil
		}
		if errors.Is(err, ticks.ErrMalformedTick) {
			st.Malformed++
			r.logger.Debug().Err(err).Msg("malformed tick skipped")
			continue
		}
		if err != nil {
			return st, err
		}

		if st.Ticks > 0 && tick.Timestamp < prev {
			st.OutOfOrder++
		}

		if err := h.OnTick(ctx, tick); err != nil {
			if errors.Is(err, ErrSkipTick) {
				st.Skipped++
				r.logger.Debug().Err(err).Str("symbol", tick.Symbol).Msg("tick skipped")
				continue
			}
			return st, err
		}
		st.Ticks++
		prev = tick.Timestamp
		st.LastTime = tick.Timestamp
	}
}

// RunAll replays an in-memory tick slice.
func (r *Runner) RunAll(ctx context.Context, ts []domain.Tick, h Handler) (Stats, error) {
	return r.Run(ctx, &sliceSource{ticks: ts}, h)
}

type sliceSource struct {
	ticks []domain.Tick
	pos   int
}

func (s *sliceSource) Next() (domain.Tick, error) {
	if s.pos >= len(s.ticks) {
		return domain.Tick{}, io.EOF
	}
	t := s.ticks[s.pos]
	s.pos++
	return t, nil
}

func (s *sliceSource) Close() error { return nil }
