package domain

// TradeStatus is the lifecycle state of a position.
type TradeStatus string

// Trade states. CLOSED is terminal.
const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// Trade represents one simulated position held in the ledger.
// Closed trades are immutable.
type Trade struct {
	Ticker         string
	Quantity       int64
	EntryPrice     float64
	EntryTime      int64 // epoch seconds
	Status         TradeStatus
	InvestedAmount float64 // entry_price * quantity

	UnrealizedPnL    float64
	UnrealizedPnLMax float64

	// Set on close
	ExitPrice   float64
	ExitTime    int64
	RealizedPnL float64
	ExitReason  string
}

// IsOpen reports whether the trade is still open.
func (t *Trade) IsOpen() bool {
	return t.Status == TradeOpen
}

// Exit reason codes
const (
	ExitReasonTakeProfit   = "TAKE_PROFIT"
	ExitReasonTrailingStop = "TRAILING_STOP"
	ExitReasonStagnation   = "STAGNATION"
	ExitReasonMaxDuration  = "MAX_DURATION"
	ExitReasonBreakoutLost = "BREAKOUT_LOST"
	ExitReasonEndOfDay     = "END_OF_DAY"
)
