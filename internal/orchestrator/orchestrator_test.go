package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/idhash"
	"github.com/cchevrot/backtest/internal/search"
	"github.com/cchevrot/backtest/internal/simulation"
	"github.com/cchevrot/backtest/internal/storage/memory"
)

// peakSimulator scores x by -(x-peak)^2 over a single fake day.
type peakSimulator struct {
	peak  float64
	calls atomic.Int64
}

func (s *peakSimulator) score(p domain.Params) float64 {
	d := p["x"].Float() - s.peak
	return -d * d
}

func (s *peakSimulator) Evaluate(_ context.Context, p domain.Params) (*domain.AggregateMetrics, error) {
	s.calls.Add(1)
	return &domain.AggregateMetrics{TotalPnL: s.score(p), Days: 1}, nil
}

func (s *peakSimulator) Run(ctx context.Context, p domain.Params) (*simulation.Report, error) {
	agg, err := s.Evaluate(ctx, p)
	if err != nil {
		return nil, err
	}
	return &simulation.Report{
		Days:      []domain.DayMetrics{{Day: "2024-01-02", PnL: agg.TotalPnL}},
		Aggregate: *agg,
	}, nil
}

func (s *peakSimulator) Days() []string { return []string{"2024-01-02.csv.lz4"} }

func space() domain.SearchSpace {
	return domain.SearchSpace{{
		Name:    "x",
		Initial: domain.Number(0),
		Min:     domain.Number(0),
		Max:     domain.Number(10),
		Step:    1,
		Enabled: true,
	}}
}

func TestOrchestrator_Run_FindsPeakAndReports(t *testing.T) {
	ctx := context.Background()
	sim := &peakSimulator{peak: 4}
	results := memory.NewResultStore()
	checkpoints := memory.NewCheckpointStore()

	orch := New(Options{
		Simulator:   sim,
		Space:       space(),
		Results:     results,
		Checkpoints: checkpoints,
		Policy:      search.LocalPolicy{MaxTests: 2},
		BuildReport: true,
	})

	res, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Warmed != 0 || res.Verification != nil || res.Interrupted {
		t.Errorf("unexpected session state: %+v", res)
	}
	if got := res.Search.Best["x"].Float(); got != 4 {
		t.Errorf("best x = %v, want 4", got)
	}
	if !res.Search.Converged {
		t.Error("search did not converge")
	}

	cp, err := checkpoints.Load(ctx)
	if err != nil || cp.Params["x"].Float() != 4 {
		t.Errorf("checkpoint = %+v, %v", cp, err)
	}

	if res.Report == nil {
		t.Fatal("report not built")
	}
	wantID, _, _ := idhash.ConfigID(domain.Params{"x": domain.Number(4)})
	if res.Report.Best.ConfigID != wantID {
		t.Errorf("report best = %s, want %s", res.Report.Best.ConfigID, wantID)
	}
	if len(res.Report.Days) != 1 || res.Report.DayCount != 1 {
		t.Errorf("report days = %v (count %d)", res.Report.Days, res.Report.DayCount)
	}
	if int64(res.Report.Evaluations) != res.Stats.Simulated {
		t.Errorf("report evaluations %d, stats %d", res.Report.Evaluations, res.Stats.Simulated)
	}
}

func TestOrchestrator_Run_ResumesWithoutResimulating(t *testing.T) {
	ctx := context.Background()
	results := memory.NewResultStore()
	checkpoints := memory.NewCheckpointStore()

	first := &peakSimulator{peak: 4}
	if _, err := New(Options{Simulator: first, Space: space(), Results: results, Checkpoints: checkpoints}).Run(ctx); err != nil {
		t.Fatal(err)
	}

	second := &peakSimulator{peak: 4}
	res, err := New(Options{
		Simulator:   second,
		Space:       space(),
		Results:     results,
		Checkpoints: checkpoints,
		Resume:      true,
		VerifyTop:   3,
	}).Run(ctx)
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if !res.Search.Resumed || res.Warmed == 0 {
		t.Errorf("resumed=%v warmed=%d", res.Search.Resumed, res.Warmed)
	}
	if res.Verification == nil || res.Verification.Matched != 3 {
		t.Errorf("verification = %+v", res.Verification)
	}
	// Only the three verification replays ran; the search itself was served
	// from the warmed cache.
	if got := second.calls.Load(); got != 3 {
		t.Errorf("second session simulated %d times, want 3", got)
	}
	if res.Stats.Simulated != 0 {
		t.Errorf("cache simulated %d configurations, want 0", res.Stats.Simulated)
	}
}

func TestOrchestrator_Run_StopsOnDivergentResults(t *testing.T) {
	ctx := context.Background()
	results := memory.NewResultStore()

	if _, err := New(Options{Simulator: &peakSimulator{peak: 4}, Space: space(), Results: results}).Run(ctx); err != nil {
		t.Fatal(err)
	}

	// The data changed: the peak moved.
	_, err := New(Options{
		Simulator: &peakSimulator{peak: 6},
		Space:     space(),
		Results:   results,
		VerifyTop: 1,
	}).Run(ctx)
	if !errors.Is(err, ErrDivergentResults) {
		t.Fatalf("got %v, want ErrDivergentResults", err)
	}
}

func TestOrchestrator_Run_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sim := &cancellingSimulator{peakSimulator: peakSimulator{peak: 4}, cancel: cancel, after: 2}

	res, err := New(Options{Simulator: sim, Space: space(), BuildReport: true}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Interrupted || res.Search == nil || res.Report == nil {
		t.Errorf("interrupted=%v search=%v report=%v", res.Interrupted, res.Search, res.Report)
	}
}

// cancellingSimulator cancels the session after a number of evaluations.
type cancellingSimulator struct {
	peakSimulator
	cancel context.CancelFunc
	after  int64
}

func (s *cancellingSimulator) Evaluate(ctx context.Context, p domain.Params) (*domain.AggregateMetrics, error) {
	if s.calls.Load()+1 >= s.after {
		s.cancel()
	}
	return s.peakSimulator.Evaluate(ctx, p)
}

func (s *cancellingSimulator) Run(ctx context.Context, p domain.Params) (*simulation.Report, error) {
	return s.peakSimulator.Run(ctx, p)
}

var _ Simulator = (*cancellingSimulator)(nil)

