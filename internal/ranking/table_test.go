package ranking

import (
	"errors"
	"math"
	"testing"
)

func TestTable_CurrentPnLFollowsFirstPrice(t *testing.T) {
	tbl := NewTable()
	prices := []float64{10, 12, 9, 15.5, 10, 7.25}

	for i, p := range prices {
		if err := tbl.Update("AAA", p, int64(i)); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		e, _ := tbl.Entry("AAA")
		want := (p - prices[0]) / prices[0] * 100
		if math.Abs(e.CurrentPnL-want) > 1e-9 {
			t.Fatalf("tick %d: CurrentPnL = %v, want %v", i, e.CurrentPnL, want)
		}
	}
}

func TestTable_GlobalMaxNonDecreasing(t *testing.T) {
	tbl := NewTable()
	prices := []float64{100, 105, 103, 110, 90, 110, 111, 50}

	prevMax := math.Inf(-1)
	for i, p := range prices {
		_ = tbl.Update("AAA", p, int64(100+i))
		e, _ := tbl.Entry("AAA")
		if e.GlobalMaxPnL < prevMax {
			t.Fatalf("tick %d: global max decreased from %v to %v", i, prevMax, e.GlobalMaxPnL)
		}
		prevMax = e.GlobalMaxPnL
	}

	e, _ := tbl.Entry("AAA")
	if e.GlobalMaxPrice != 111 || e.GlobalMaxTime != 106 {
		t.Errorf("global max at price %v time %d, want 111 at 106", e.GlobalMaxPrice, e.GlobalMaxTime)
	}
	// Equal high at tick 5 (110) must not move the max time.
	if e.HighestPnLSoFar != e.GlobalMaxPnL {
		t.Errorf("highest so far %v != global max %v", e.HighestPnLSoFar, e.GlobalMaxPnL)
	}
}

func TestTable_Drawdown(t *testing.T) {
	tbl := NewTable()
	for i, p := range []float64{100, 120, 90, 130, 117} {
		_ = tbl.Update("AAA", p, int64(i))
	}

	e, _ := tbl.Entry("AAA")
	// Deepest retracement: peak +20% at t=1 to trough -10% at t=2.
	if math.Abs(e.MaxDrawdown-(-30)) > 1e-9 {
		t.Errorf("MaxDrawdown = %v, want -30", e.MaxDrawdown)
	}
	if e.PeakTime != 1 || e.TroughTime != 2 {
		t.Errorf("peak/trough times = %d/%d, want 1/2", e.PeakTime, e.TroughTime)
	}
}

func TestTable_RejectsInvalidPrice(t *testing.T) {
	tbl := NewTable()
	for _, p := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := tbl.Update("AAA", p, 1); !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("price %v: expected ErrInvalidPrice, got %v", p, err)
		}
	}
	if tbl.Len() != 0 {
		t.Errorf("table has %d entries after rejected ticks", tbl.Len())
	}
	if tbl.ShouldResort(1) {
		t.Error("rejected ticks must not count as updates")
	}
}

func TestTable_ResortThreshold(t *testing.T) {
	tbl := NewTable()

	_ = tbl.Update("AAA", 10, 1)
	_ = tbl.Update("BBB", 10, 1)
	if tbl.ShouldResort(3) {
		t.Fatal("resort before threshold")
	}
	if len(tbl.TopN(5)) != 0 {
		t.Fatal("snapshot must stay empty until the first resort")
	}

	_ = tbl.Update("BBB", 12, 2)
	if !tbl.ShouldResort(3) {
		t.Fatal("expected resort at threshold")
	}
	tbl.Resort()
	if tbl.ShouldResort(3) {
		t.Fatal("counter not reset by Resort")
	}

	top := tbl.TopN(5)
	if len(top) != 2 || top[0].Symbol != "BBB" || top[1].Symbol != "AAA" {
		t.Fatalf("unexpected leaderboard: %+v", top)
	}

	// Stale order until the next resort.
	_ = tbl.Update("AAA", 20, 3)
	if tbl.TopN(1)[0].Symbol != "BBB" {
		t.Error("snapshot changed without a resort")
	}
}

func TestTable_TieBreakBySymbol(t *testing.T) {
	tbl := NewTable()
	for _, s := range []string{"CCC", "AAA", "BBB"} {
		_ = tbl.Update(s, 5, 1)
	}
	tbl.Resort()

	top := tbl.TopN(3)
	for i, want := range []string{"AAA", "BBB", "CCC"} {
		if top[i].Symbol != want {
			t.Errorf("rank %d = %s, want %s", i, top[i].Symbol, want)
		}
	}
}

func TestTable_LastPrice(t *testing.T) {
	tbl := NewTable()
	if _, ok := tbl.LastPrice("AAA"); ok {
		t.Fatal("unseen symbol reported a price")
	}
	_ = tbl.Update("AAA", 3, 1)
	_ = tbl.Update("AAA", 4, 2)
	if p, ok := tbl.LastPrice("AAA"); !ok || p != 4 {
		t.Errorf("LastPrice = %v,%v want 4,true", p, ok)
	}
}
