package domain

// Tick is a single price observation from a day's replay stream.
type Tick struct {
	Timestamp int64   // epoch seconds
	Symbol    string  // ticker symbol
	Price     float64 // last traded price
}
