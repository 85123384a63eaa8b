package feeestimator

import (
	"math"
	"testing"
)

func testConfig() Config {
	return Config{
		Params: [scaleCount]ScaleParams{
			Small:  {BinCount: 10, TargetSpan: 4, MinRate: 1, Step: 1.5},
			Medium: {BinCount: 10, TargetSpan: 4, MinRate: 10, Step: 1.5},
			Large:  {BinCount: 10, TargetSpan: 4, MinRate: 100, Step: 1.5},
		},
		HalfLife: 24,
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}

// TestPushPopRoundTrip checks that pop(push(s)) restores s within floating
// point tolerance.
func TestPushPopRoundTrip(t *testing.T) {
	cfg := testConfig()
	h := New(cfg)

	tally := NewBlockTally(cfg)
	tally.Observe(Small, 3)
	tally.Confirm(Small, 3, 0)
	tally.Observe(Medium, 5)

	before := make([]float64, cfg.Params[Small].BinCount)
	for i := range before {
		before[i] = h.Total(Small, i)
	}

	h.Push(tally)
	h.Pop(tally)

	for i := range before {
		got := h.Total(Small, i)
		if !almostEqual(got, before[i]) {
			t.Fatalf("bin %d: total after push/pop = %v, want %v", i, got, before[i])
		}
	}
	if h.TopHeight() != 0 {
		t.Fatalf("TopHeight after push/pop = %d, want 0", h.TopHeight())
	}
}

// TestConfirmedNeverExceedsTotal exercises the invariant across a run of
// pushes with randomized-by-index but deterministic tallies.
func TestConfirmedNeverExceedsTotal(t *testing.T) {
	cfg := testConfig()
	h := New(cfg)

	for block := 0; block < 50; block++ {
		tally := NewBlockTally(cfg)
		for bin := 0; bin < cfg.Params[Small].BinCount; bin++ {
			tally.Observe(Small, bin)
			if bin%2 == 0 {
				tally.Confirm(Small, bin, 0)
			}
		}
		h.Push(tally)

		for bin := 0; bin < cfg.Params[Small].BinCount; bin++ {
			for target := 0; target < cfg.Params[Small].TargetSpan; target++ {
				if h.Confirmed(Small, bin, target) > h.Total(Small, bin)+1e-9 {
					t.Fatalf("block %d bin %d target %d: confirmed %v > total %v",
						block, bin, target, h.Confirmed(Small, bin, target), h.Total(Small, bin))
				}
			}
		}
	}
}

// TestEstimateDecayScenario mirrors the documented decay scenario: a single
// populated bin decayed by one push of an empty tally should scale by d and
// be floored, i.e. floor(100*d).
func TestEstimateDecayScenario(t *testing.T) {
	cfg := testConfig()
	h := New(cfg)
	h.SetBin(Small, 0, 100.0, make([]float64, cfg.Params[Small].TargetSpan))

	h.Push(NewBlockTally(cfg))

	want := math.Floor(100.0 * h.decay)
	if got := h.Total(Small, 0); got != want {
		t.Fatalf("Total(Small,0) after decay push = %v, want %v", got, want)
	}
}

// TestEstimateUnavailableBelowMinimumTotal mirrors the documented
// insufficient-data scenario: a bin with total 1.0 can never satisfy the
// minimum-total-of-2 guard, so Estimate must report Unavailable even though
// its confirmed/total ratio is 1.0.
func TestEstimateUnavailableBelowMinimumTotal(t *testing.T) {
	cfg := testConfig()
	h := New(cfg)
	confirmed := make([]float64, cfg.Params[Small].TargetSpan)
	confirmed[0] = 1.0
	h.SetBin(Small, 0, 1.0, confirmed)

	got := h.Estimate(Small, 0, ConfidenceHigh, false)
	if got != Unavailable {
		t.Fatalf("Estimate = %d, want Unavailable (%d)", got, Unavailable)
	}
}

// TestEstimateQualifiesAtThreshold checks that once cumulative total clears
// the minimum and the ratio meets the confidence threshold, Estimate returns
// the fee rate of that bin rather than Unavailable.
func TestEstimateQualifiesAtThreshold(t *testing.T) {
	cfg := testConfig()
	h := New(cfg)
	confirmed := make([]float64, cfg.Params[Small].TargetSpan)
	confirmed[0] = 10.0
	h.SetBin(Small, 7, 10.0, confirmed)

	got := h.Estimate(Small, 0, ConfidenceHigh, false)
	if got == Unavailable {
		t.Fatal("Estimate returned Unavailable, want a qualifying rate")
	}
	want := uint64(cfg.Params[Small].MinRate * pow(cfg.Params[Small].Step, 7))
	if got != want {
		t.Fatalf("Estimate = %d, want %d", got, want)
	}
}

// TestEstimateGeometricRelaxesThreshold checks that the geometric confidence
// curve accepts a lower single-bin ratio than the basic curve for the same
// target, since 1-(1-p)^(target+1) >= p for target > 0.
func TestEstimateGeometricRelaxesThreshold(t *testing.T) {
	cfg := testConfig()
	h := New(cfg)
	confirmed := make([]float64, cfg.Params[Small].TargetSpan)
	confirmed[2] = 7.0
	h.SetBin(Small, 4, 10.0, confirmed)

	basic := h.Estimate(Small, 2, ConfidenceHigh, false)
	geometric := h.Estimate(Small, 2, ConfidenceHigh, true)
	if basic != Unavailable {
		t.Fatalf("basic Estimate = %d, want Unavailable at p=0.7 under 0.95 threshold", basic)
	}
	if geometric == Unavailable {
		t.Fatal("geometric Estimate = Unavailable, want a qualifying rate")
	}
}

// TestInitializeReplaysAgeWeightedHistory checks that Initialize applies
// heavier decay to older entries in the replayed sequence.
func TestInitializeReplaysAgeWeightedHistory(t *testing.T) {
	cfg := testConfig()
	h := New(cfg)

	oldest := NewBlockTally(cfg)
	oldest.Observe(Small, 0)
	newest := NewBlockTally(cfg)
	newest.Observe(Small, 0)

	if err := h.Initialize([]BlockTally{oldest, newest}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if h.TopHeight() != 2 {
		t.Fatalf("TopHeight = %d, want 2", h.TopHeight())
	}
	want := h.decay + 1.0
	if got := h.Total(Small, 0); !almostEqual(got, want) {
		t.Fatalf("Total(Small,0) = %v, want %v", got, want)
	}
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
