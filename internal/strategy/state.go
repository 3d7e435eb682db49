package strategy

// RunState is the mutable per-day state of one engine. It is owned by a
// single day run and never shared.
type RunState struct {
	EscapeStart   map[string]int64 // first cycle above the entry threshold
	TopNStart     map[string]int64 // first cycle inside the top-N window
	TradesToday   map[string]int   // local date -> opens
	TradedTickers map[string]struct{}

	// LastTradeTime is the last open of any kind, or the first cycle of
	// the day until a trade happens.
	LastTradeTime int64
	started       bool
}

// NewRunState creates an empty state.
func NewRunState() *RunState {
	return &RunState{
		EscapeStart:   make(map[string]int64),
		TopNStart:     make(map[string]int64),
		TradesToday:   make(map[string]int),
		TradedTickers: make(map[string]struct{}),
	}
}

func (s *RunState) startSession(now int64) {
	if !s.started {
		s.LastTradeTime = now
		s.started = true
	}
}

func (s *RunState) recordOpen(symbol, date string, now int64) {
	s.TradedTickers[symbol] = struct{}{}
	s.TradesToday[date]++
	s.LastTradeTime = now
}

func (s *RunState) traded(symbol string) bool {
	_, ok := s.TradedTickers[symbol]
	return ok
}
