package replay

import (
	"context"

	"github.com/cchevrot/backtest/internal/domain"
)

// Handler processes ticks in stream order.
type Handler interface {
	// OnTick is called once per well-formed tick. Returning an error that
	// wraps ErrSkipTick drops the tick; any other error stops the replay.
	OnTick(ctx context.Context, tick domain.Tick) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, tick domain.Tick) error

// OnTick calls f.
func (f HandlerFunc) OnTick(ctx context.Context, tick domain.Tick) error {
	return f(ctx, tick)
}
