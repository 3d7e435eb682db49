package domain

import (
	"sort"
	"time"
)

// ParamRange declares how the search may move one parameter.
// Step is expressed in minutes for clock parameters.
type ParamRange struct {
	Name     string
	Initial  Value
	Min      Value
	Max      Value
	Step     float64
	Priority int  // lower is visited first
	Enabled  bool // disabled parameters stay at Initial
}

// SearchSpace is the set of tunable parameters.
type SearchSpace []ParamRange

// Ordered returns enabled ranges sorted by priority, then name.
func (s SearchSpace) Ordered() []ParamRange {
	out := make([]ParamRange, 0, len(s))
	for _, r := range s {
		if r.Enabled {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// InitialParams returns the configuration built from every range's initial value.
func (s SearchSpace) InitialParams() Params {
	p := make(Params, len(s))
	for _, r := range s {
		p[r.Name] = r.Initial
	}
	return p
}

// ResultRecord is one evaluated configuration in the results log.
type ResultRecord struct {
	ConfigID  string // SHA-256 of Key
	Key       string // canonical key
	Params    Params
	Metrics   AggregateMetrics
	CreatedAt time.Time
}

// BestCheckpoint is the resumable best-known configuration.
type BestCheckpoint struct {
	Timestamp time.Time `json:"timestamp"`
	PnL       float64   `json:"pnl"`
	Params    Params    `json:"config"`
}
