package search

import (
	"math"

	"github.com/cchevrot/backtest/internal/domain"
)

// valuePrecision is the rounding grid of numeric candidates.
const valuePrecision = 1e6

// offsetValue moves center by k steps of r. It reports false when the
// result falls outside [r.Min, r.Max]. Clock values move in whole minutes.
func offsetValue(center domain.Value, r domain.ParamRange, k int) (domain.Value, bool) {
	if center.IsClock() {
		m := center.Minutes() + k*int(math.Round(r.Step))
		if m < 0 || m >= 24*60 || m < r.Min.Minutes() || m > r.Max.Minutes() {
			return domain.Value{}, false
		}
		return domain.Clock(m), true
	}

	v := roundValue(center.Float() + float64(k)*r.Step)
	if v < roundValue(r.Min.Float()) || v > roundValue(r.Max.Float()) {
		return domain.Value{}, false
	}
	return domain.Number(v), true
}

// candidateValues returns center+k·step and center-k·step for k in
// [from, to], nearest offsets first and the upward move before the
// downward one. Out-of-range offsets are dropped.
func candidateValues(center domain.Value, r domain.ParamRange, from, to int) []domain.Value {
	if r.Step <= 0 || from < 1 || to < from {
		return nil
	}
	var out []domain.Value
	for k := from; k <= to; k++ {
		for _, sign := range [2]int{1, -1} {
			if v, ok := offsetValue(center, r, sign*k); ok && !v.Equal(center) {
				out = append(out, v)
			}
		}
	}
	return out
}

// gridValues returns every value Min + k·step up to Max.
func gridValues(r domain.ParamRange) []domain.Value {
	if r.Step <= 0 {
		return nil
	}
	var out []domain.Value
	for k := 0; ; k++ {
		v, ok := offsetValue(r.Min, r, k)
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func roundValue(v float64) float64 {
	return math.Round(v*valuePrecision) / valuePrecision
}
