// Package ledger tracks cash and simulated positions for one trading day.
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cchevrot/backtest/internal/domain"
)

// DefaultInitialCash is the starting balance of a new ledger.
const DefaultInitialCash = 1_000_000

// Ledger errors.
var (
	// ErrInsufficientFunds is returned when a position costs more than the
	// available cash. The ledger is left unchanged.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidQuantity is returned for non-positive quantities or prices.
	ErrInvalidQuantity = errors.New("invalid quantity or price")
)

// PriceSource provides the latest known price of a symbol.
type PriceSource interface {
	LastPrice(symbol string) (float64, bool)
}

// Ledger holds cash and an ordered list of trades. Cash and realized PnL are
// kept as decimals so repeated open/close cycles do not drift.
// Not safe for concurrent use.
type Ledger struct {
	cash     decimal.Decimal
	realized decimal.Decimal
	trades   []*domain.Trade
	open     map[string]int // ticker -> number of open trades
}

// New creates a ledger with the given starting cash.
func New(initialCash float64) *Ledger {
	return &Ledger{
		cash: decimal.NewFromFloat(initialCash),
		open: make(map[string]int),
	}
}

// Open buys quantity units of symbol at price.
func (l *Ledger) Open(symbol string, quantity int64, price float64, ts int64) (*domain.Trade, error) {
	if quantity <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: %d x %v", ErrInvalidQuantity, quantity, price)
	}

	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))
	if cost.GreaterThan(l.cash) {
		return nil, fmt.Errorf("%w: %s costs %s, cash %s", ErrInsufficientFunds, symbol, cost.StringFixed(2), l.cash.StringFixed(2))
	}

	t := &domain.Trade{
		Ticker:         symbol,
		Quantity:       quantity,
		EntryPrice:     price,
		EntryTime:      ts,
		Status:         domain.TradeOpen,
		InvestedAmount: cost.InexactFloat64(),
	}
	l.cash = l.cash.Sub(cost)
	l.trades = append(l.trades, t)
	l.open[symbol]++
	return t, nil
}

// Close closes every open trade on symbol at price and returns how many
// trades were closed.
func (l *Ledger) Close(symbol string, price float64, ts int64, reason string) int {
	if l.open[symbol] == 0 {
		return 0
	}

	exit := decimal.NewFromFloat(price)
	closed := 0
	for _, t := range l.trades {
		if t.Ticker != symbol || !t.IsOpen() {
			continue
		}
		qty := decimal.NewFromInt(t.Quantity)
		pnl := exit.Sub(decimal.NewFromFloat(t.EntryPrice)).Mul(qty)

		l.cash = l.cash.Add(exit.Mul(qty))
		l.realized = l.realized.Add(pnl)

		t.Status = domain.TradeClosed
		t.ExitPrice = price
		t.ExitTime = ts
		t.RealizedPnL = pnl.InexactFloat64()
		t.ExitReason = reason
		closed++
	}
	delete(l.open, symbol)
	return closed
}

// CloseAll liquidates every open trade at its last known price. Symbols
// without a price stay open and are returned.
func (l *Ledger) CloseAll(prices PriceSource, ts int64) []string {
	var unpriced []string
	for _, symbol := range l.OpenTickers() {
		price, ok := prices.LastPrice(symbol)
		if !ok {
			unpriced = append(unpriced, symbol)
			continue
		}
		l.Close(symbol, price, ts, domain.ExitReasonEndOfDay)
	}
	return unpriced
}

// RefreshPrices recomputes unrealized pnl of open trades from the latest
// prices. Cash is not touched.
func (l *Ledger) RefreshPrices(prices PriceSource) {
	if len(l.open) == 0 {
		return
	}
	for _, t := range l.trades {
		if !t.IsOpen() {
			continue
		}
		price, ok := prices.LastPrice(t.Ticker)
		if !ok {
			continue
		}
		t.UnrealizedPnL = (price - t.EntryPrice) * float64(t.Quantity)
		if t.UnrealizedPnL > t.UnrealizedPnLMax {
			t.UnrealizedPnLMax = t.UnrealizedPnL
		}
	}
}

// HasOpen reports whether symbol carries an open position.
func (l *Ledger) HasOpen(symbol string) bool {
	return l.open[symbol] > 0
}

// OpenTickers returns symbols with open positions, sorted.
func (l *Ledger) OpenTickers() []string {
	out := make([]string, 0, len(l.open))
	for s := range l.open {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// OpenCount returns the number of open trades.
func (l *Ledger) OpenCount() int {
	n := 0
	for _, c := range l.open {
		n += c
	}
	return n
}

// Trades returns all trades in opening order. Callers must not modify them.
func (l *Ledger) Trades() []*domain.Trade {
	return l.trades
}

// Cash returns available cash.
func (l *Ledger) Cash() float64 {
	return l.cash.InexactFloat64()
}

// TotalRealizedPnL returns the realized pnl of all closed trades.
func (l *Ledger) TotalRealizedPnL() float64 {
	return l.realized.InexactFloat64()
}

// ClosedSummary returns invested capital, trade count and distinct tickers
// over closed trades.
func (l *Ledger) ClosedSummary() (invested float64, trades int, tickers int) {
	sum := decimal.Zero
	seen := make(map[string]struct{})
	for _, t := range l.trades {
		if t.IsOpen() {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(t.EntryPrice).Mul(decimal.NewFromInt(t.Quantity)))
		seen[t.Ticker] = struct{}{}
		trades++
	}
	return sum.InexactFloat64(), trades, len(seen)
}
