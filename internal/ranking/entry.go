package ranking

// Entry holds one symbol's statistics for the current day.
// All pnl values are percentages relative to FirstPrice.
type Entry struct {
	Symbol     string
	FirstPrice float64
	LastPrice  float64
	FirstTime  int64
	LastTime   int64
	CurrentPnL float64

	// All-time high of the day. Starts at 0 at the first tick and only
	// moves when CurrentPnL exceeds it.
	GlobalMaxPnL   float64
	GlobalMaxPrice float64
	GlobalMaxTime  int64

	HighestPnLSoFar float64
	highestPrice    float64
	highestTime     int64

	// Deepest retracement from the running high (<= 0) and the
	// peak/trough that produced it.
	MaxDrawdown float64
	PeakPnL     float64
	PeakPrice   float64
	PeakTime    int64
	TroughPnL   float64
	TroughPrice float64
	TroughTime  int64
}

func newEntry(symbol string, price float64, ts int64) *Entry {
	return &Entry{
		Symbol:         symbol,
		FirstPrice:     price,
		LastPrice:      price,
		FirstTime:      ts,
		LastTime:       ts,
		GlobalMaxPrice: price,
		GlobalMaxTime:  ts,
		highestPrice:   price,
		highestTime:    ts,
		PeakPrice:      price,
		PeakTime:       ts,
		TroughPrice:    price,
		TroughTime:     ts,
	}
}

func (e *Entry) update(price float64, ts int64) {
	e.LastPrice = price
	e.LastTime = ts
	e.CurrentPnL = (price - e.FirstPrice) / e.FirstPrice * 100

	if e.CurrentPnL > e.GlobalMaxPnL {
		e.GlobalMaxPnL = e.CurrentPnL
		e.GlobalMaxPrice = price
		e.GlobalMaxTime = ts
	}

	if e.CurrentPnL > e.HighestPnLSoFar {
		e.HighestPnLSoFar = e.CurrentPnL
		e.highestPrice = price
		e.highestTime = ts
	}

	if dd := e.CurrentPnL - e.HighestPnLSoFar; dd < e.MaxDrawdown {
		e.MaxDrawdown = dd
		e.PeakPnL = e.HighestPnLSoFar
		e.PeakPrice = e.highestPrice
		e.PeakTime = e.highestTime
		e.TroughPnL = e.CurrentPnL
		e.TroughPrice = price
		e.TroughTime = ts
	}
}
