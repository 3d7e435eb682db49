// Package strategy implements the breakout strategy: exits in fixed
// priority order, then breakout entries, then a periodic fallback entry.
package strategy

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/ledger"
	"github.com/cchevrot/backtest/internal/ranking"
)

// Engine evaluates one strategy cycle at a time against a table and ledger
// it shares with its day run.
type Engine struct {
	params Params
	table  *ranking.Table
	ledger *ledger.Ledger
	state  *RunState
	logger zerolog.Logger
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Params Params
	Table  *ranking.Table
	Ledger *ledger.Ledger
	State  *RunState       // nil creates a fresh state
	Logger *zerolog.Logger // nil disables logging
}

// NewEngine creates an engine.
func NewEngine(opts EngineOptions) *Engine {
	state := opts.State
	if state == nil {
		state = NewRunState()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Engine{
		params: opts.Params,
		table:  opts.Table,
		ledger: opts.Ledger,
		state:  state,
		logger: logger,
	}
}

// CycleResult reports what one cycle did.
type CycleResult struct {
	Skipped  bool // no ranked symbols yet
	Closed   int
	Opened   int
	Periodic bool // the fallback entry fired
}

// State returns the engine's run state.
func (e *Engine) State() *RunState {
	return e.state
}

// Evaluate runs exits, breakout entries and the periodic entry at time now.
// The ledger must have been refreshed with current prices beforehand.
func (e *Engine) Evaluate(now int64) CycleResult {
	var res CycleResult

	peers := e.table.TopN(e.params.PeerGroupSize)
	if len(peers) == 0 {
		res.Skipped = true
		return res
	}
	e.state.startSession(now)

	pnls := make([]float64, len(peers))
	for i, p := range peers {
		pnls[i] = p.CurrentPnL
	}
	mean, std := peerStats(pnls)

	res.Closed = e.evaluateExits(now, mean, std)

	if std >= e.params.NoiseFloor && e.canOpen(now) {
		threshold := mean + e.params.StartMultiplier*std
		for _, symbol := range e.updateTimers(peers, threshold, now) {
			if !e.canOpen(now) {
				break
			}
			if e.state.traded(symbol) || e.ledger.HasOpen(symbol) {
				continue
			}
			entry, _ := e.table.Entry(symbol)
			if entry.CurrentPnL <= e.params.MinMarketPnL {
				continue
			}
			if e.open(symbol, now, "breakout") {
				res.Opened++
			}
		}
	}

	if e.periodicDue(now) && e.canOpen(now) {
		for _, entry := range e.table.Snapshot() {
			if e.ledger.HasOpen(entry.Symbol) {
				continue
			}
			if e.open(entry.Symbol, now, "periodic") {
				res.Opened++
				res.Periodic = true
			}
			break
		}
	}

	return res
}

// evaluateExits applies the exit rules to every open ticker. The first
// matching rule closes all of the ticker's trades.
func (e *Engine) evaluateExits(now int64, mean, std float64) int {
	closed := 0
	breakoutFloor := mean - e.params.StopMultiplier*std

	for _, symbol := range e.ledger.OpenTickers() {
		entry, ok := e.table.Entry(symbol)
		if !ok {
			// No price yet: retry next cycle.
			continue
		}

		reason := e.exitReason(entry, now, breakoutFloor)
		if reason == "" {
			continue
		}
		n := e.ledger.Close(symbol, entry.LastPrice, now, reason)
		closed += n
		e.logger.Debug().
			Str("symbol", symbol).
			Str("reason", reason).
			Float64("price", entry.LastPrice).
			Float64("pnl_pct", entry.CurrentPnL).
			Int64("ts", now).
			Msg("closed position")
	}
	return closed
}

func (e *Engine) exitReason(entry *ranking.Entry, now int64, breakoutFloor float64) string {
	p := e.params

	if entry.CurrentPnL >= p.TakeProfitPnL {
		return domain.ExitReasonTakeProfit
	}
	if entry.GlobalMaxPnL > 0 && entry.GlobalMaxPnL-entry.CurrentPnL >= p.TrailStopPnL {
		return domain.ExitReasonTrailingStop
	}
	if float64(now-entry.GlobalMaxTime) >= p.MaxPnLTimeoutMinutes*60 {
		return domain.ExitReasonStagnation
	}
	maxHold := p.MaxTradeDurationMinutes * 60
	for _, t := range e.ledger.Trades() {
		if t.IsOpen() && t.Ticker == entry.Symbol && float64(now-t.EntryTime) >= maxHold {
			return domain.ExitReasonMaxDuration
		}
	}
	if entry.CurrentPnL <= breakoutFloor {
		return domain.ExitReasonBreakoutLost
	}
	return ""
}

// updateTimers maintains the breakout and top-N timers for the peer group
// and returns symbols whose timers both reached MinEscapeTime, in rank
// order. Symbols outside the peer group lose both timers.
func (e *Engine) updateTimers(peers []*ranking.Entry, threshold float64, now int64) []string {
	s := e.state
	inGroup := make(map[string]struct{}, len(peers))
	var qualified []string

	for rank, entry := range peers {
		symbol := entry.Symbol
		inGroup[symbol] = struct{}{}

		if rank < e.params.TopNThreshold {
			if _, ok := s.TopNStart[symbol]; !ok {
				s.TopNStart[symbol] = now
			}
		} else {
			delete(s.TopNStart, symbol)
		}

		if entry.CurrentPnL <= threshold {
			delete(s.EscapeStart, symbol)
			continue
		}
		if _, ok := s.EscapeStart[symbol]; !ok {
			s.EscapeStart[symbol] = now
		}

		topSince, inTop := s.TopNStart[symbol]
		if !inTop {
			continue
		}
		if float64(now-s.EscapeStart[symbol]) >= e.params.MinEscapeTime &&
			float64(now-topSince) >= e.params.MinEscapeTime {
			qualified = append(qualified, symbol)
		}
	}

	for symbol := range s.EscapeStart {
		if _, ok := inGroup[symbol]; !ok {
			delete(s.EscapeStart, symbol)
		}
	}
	for symbol := range s.TopNStart {
		if _, ok := inGroup[symbol]; !ok {
			delete(s.TopNStart, symbol)
		}
	}
	return qualified
}

func (e *Engine) periodicDue(now int64) bool {
	return float64(now-e.state.LastTradeTime) >= e.params.TradeIntervalMinutes*60
}

// canOpen checks the trading window and the daily cap.
func (e *Engine) canOpen(now int64) bool {
	p := e.params
	minute := localMinute(now, p.UTCOffsetSeconds)
	if minute < p.TradeStartMinute || minute >= p.TradeCutoffMinute {
		return false
	}
	return e.state.TradesToday[localDate(now, p.UTCOffsetSeconds)] < p.MaxTradesPerDay
}

func (e *Engine) open(symbol string, now int64, kind string) bool {
	price, ok := e.table.LastPrice(symbol)
	if !ok || price <= 0 {
		return false
	}
	qty := int64(math.Floor(e.params.TradeValue / price))
	if qty <= 0 {
		return false
	}
	if _, err := e.ledger.Open(symbol, qty, price, now); err != nil {
		e.logger.Debug().Err(err).Str("symbol", symbol).Msg("open rejected")
		return false
	}

	date := localDate(now, e.params.UTCOffsetSeconds)
	e.state.recordOpen(symbol, date, now)
	e.logger.Debug().
		Str("symbol", symbol).
		Str("kind", kind).
		Int64("qty", qty).
		Float64("price", price).
		Int("trades_today", e.state.TradesToday[date]).
		Int64("ts", now).
		Msg("opened position")
	return true
}
