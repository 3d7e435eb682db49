package strategy

import (
	"math"
	"time"
)

// peerStats returns mean and population stddev of pnls. The stddev is 0
// for fewer than three samples, which keeps tiny peer groups below any
// sensible noise floor.
func peerStats(pnls []float64) (mean, std float64) {
	n := len(pnls)
	if n == 0 {
		return 0, 0
	}
	for _, v := range pnls {
		mean += v
	}
	mean /= float64(n)
	if n <= 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range pnls {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(n))
}

// localMinute returns minutes since local midnight for an epoch timestamp.
func localMinute(ts, offset int64) int {
	sec := (ts + offset) % 86400
	if sec < 0 {
		sec += 86400
	}
	return int(sec / 60)
}

// localDate returns the local calendar date as YYYY-MM-DD.
func localDate(ts, offset int64) string {
	return time.Unix(ts+offset, 0).UTC().Format("2006-01-02")
}
