package search

import (
	"github.com/cchevrot/backtest/internal/domain"
)

// History answers whether a configuration was already evaluated.
type History interface {
	Seen(p domain.Params) bool
}

// Policy proposes the configurations to try when the search visits one
// parameter. Every proposal differs from center in r.Name only.
type Policy interface {
	Name() string
	Propose(center domain.Params, r domain.ParamRange, h History) []domain.Params
}

// LocalPolicy tries the nearest MaxTests offsets on each side of the
// current value.
type LocalPolicy struct {
	MaxTests int
}

// Name implements Policy.
func (LocalPolicy) Name() string { return "local" }

// Propose implements Policy.
func (l LocalPolicy) Propose(center domain.Params, r domain.ParamRange, _ History) []domain.Params {
	return withValues(center, r.Name, candidateValues(centerValue(center, r), r, 1, l.MaxTests))
}

// ExplorePolicy tries offsets From..To on each side, skipping
// configurations already evaluated.
type ExplorePolicy struct {
	From int
	To   int
}

// Name implements Policy.
func (ExplorePolicy) Name() string { return "explore" }

// Propose implements Policy.
func (e ExplorePolicy) Propose(center domain.Params, r domain.ParamRange, h History) []domain.Params {
	return unseen(withValues(center, r.Name, candidateValues(centerValue(center, r), r, e.From, e.To)), h)
}

// SweepPolicy tries every grid value of the range that was not evaluated yet.
type SweepPolicy struct{}

// Name implements Policy.
func (SweepPolicy) Name() string { return "sweep" }

// Propose implements Policy.
func (SweepPolicy) Propose(center domain.Params, r domain.ParamRange, h History) []domain.Params {
	cur := centerValue(center, r)
	var vals []domain.Value
	for _, v := range gridValues(r) {
		if !v.Equal(cur) {
			vals = append(vals, v)
		}
	}
	return unseen(withValues(center, r.Name, vals), h)
}

func centerValue(center domain.Params, r domain.ParamRange) domain.Value {
	if v, ok := center[r.Name]; ok {
		return v
	}
	return r.Initial
}

func withValues(center domain.Params, name string, vals []domain.Value) []domain.Params {
	out := make([]domain.Params, 0, len(vals))
	for _, v := range vals {
		out = append(out, center.With(name, v))
	}
	return out
}

func unseen(cands []domain.Params, h History) []domain.Params {
	if h == nil {
		return cands
	}
	out := cands[:0]
	for _, c := range cands {
		if !h.Seen(c) {
			out = append(out, c)
		}
	}
	return out
}
