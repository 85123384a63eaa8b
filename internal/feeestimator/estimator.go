// Package feeestimator implements C6: an exponentially-decayed histogram
// over a fee-rate-bin × confirmation-delay grid, producing fee quotes for
// a requested target confirmation depth and confidence level.
package feeestimator

import "math"

// Scale names one of the three rate-bin scales.
type Scale int

const (
	Small Scale = iota
	Medium
	Large
	scaleCount
)

// Confidence selects the threshold curve Estimate applies.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) threshold() float64 {
	switch c {
	case ConfidenceLow:
		return 0.50
	case ConfidenceHigh:
		return 0.95
	default:
		return 0.80
	}
}

// Unavailable is the "no bin qualifies" sentinel, max_uint64.
const Unavailable uint64 = math.MaxUint64

// Bin is one rate-bin's weighted accumulators, exported so callers can
// build BlockTally values directly. All counts are real-valued because of
// exponential decay.
type Bin struct {
	Total     float64
	Confirmed []float64 // indexed by t in [0, T)
}

// ScaleParams describes one scale's bin layout: fixed at compile time per
// the histogram's monotone-structure invariant.
type ScaleParams struct {
	BinCount   int
	TargetSpan int // T, the number of confirmation-delay targets tracked
	MinRate    float64
	Step       float64
}

// Config parameterizes a History: per-scale bin layout and the decay
// half-life in blocks.
type Config struct {
	Params   [scaleCount]ScaleParams
	HalfLife int // H, in blocks
}

// History is the persistent sliding histogram. The bin layout is fixed at construction; only the real-valued
// weights change thereafter.
type History struct {
	cfg       Config
	decay     float64 // d = 0.5^(1/H)
	topHeight uint64
	bins      [scaleCount][]Bin
}

// New allocates an empty History from cfg.
func New(cfg Config) *History {
	h := &History{
		cfg:   cfg,
		decay: math.Pow(0.5, 1.0/float64(cfg.HalfLife)),
	}
	for s := Scale(0); s < scaleCount; s++ {
		p := cfg.Params[s]
		bins := make([]Bin, p.BinCount)
		for i := range bins {
			bins[i].Confirmed = make([]float64, p.TargetSpan)
		}
		h.bins[s] = bins
	}
	return h
}

// BlockTally is one block's worth of rate-bin observations at unit
// (undecayed) weight, shaped identically to a History's bin layout so it
// can be added/subtracted directly.
type BlockTally struct {
	Bins [scaleCount][]Bin
}

// NewBlockTally allocates a zero tally matching cfg's bin layout.
func NewBlockTally(cfg Config) BlockTally {
	var t BlockTally
	for s := Scale(0); s < scaleCount; s++ {
		p := cfg.Params[s]
		bins := make([]Bin, p.BinCount)
		for i := range bins {
			bins[i].Confirmed = make([]float64, p.TargetSpan)
		}
		t.Bins[s] = bins
	}
	return t
}

// Observe records a transaction seen at (scale, bin) with unit weight.
func (t *BlockTally) Observe(scale Scale, binIdx int) {
	t.Bins[scale][binIdx].Total++
}

// Confirm records a confirmation within target+1 blocks for a transaction
// observed at (scale, bin).
func (t *BlockTally) Confirm(scale Scale, binIdx, target int) {
	t.Bins[scale][binIdx].Confirmed[target]++
}

// Initialize replays a sequence of per-block tallies, oldest first,
// applying age-dependent scale d^(len-1-i) to each. It refuses
// if top_height would overflow.
func (h *History) Initialize(blocks []BlockTally) error {
	n := uint64(len(blocks))
	if h.topHeight > math.MaxUint64-n {
		return errOverflow{}
	}
	for i, tally := range blocks {
		age := len(blocks) - 1 - i
		h.applyWeighted(tally, math.Pow(h.decay, float64(age)))
	}
	h.topHeight += n
	return nil
}

// Push decays every accumulator by d, then adds the new tally at unit
// weight; increments top_height.
func (h *History) Push(tally BlockTally) {
	h.decayAll(h.decay)
	h.applyWeighted(tally, 1.0)
	h.topHeight++
}

// Pop is the inverse of Push: subtracts tally, then scales by d^-1. Never
// reduces top_height below zero. Needed to support chain reorganizations.
func (h *History) Pop(tally BlockTally) {
	h.applyWeighted(tally, -1.0)
	h.decayAll(1.0 / h.decay)
	if h.topHeight > 0 {
		h.topHeight--
	}
}

// TopHeight returns the highest block height included in the history.
func (h *History) TopHeight() uint64 { return h.topHeight }

// decayAll scales every accumulator by factor and floors the result, matching
// the original's size_t-accumulator semantics (scenario S4: floor(100*d)).
func (h *History) decayAll(factor float64) {
	for s := Scale(0); s < scaleCount; s++ {
		for i := range h.bins[s] {
			b := &h.bins[s][i]
			b.Total = math.Floor(b.Total * factor)
			for t := range b.Confirmed {
				b.Confirmed[t] = math.Floor(b.Confirmed[t] * factor)
			}
		}
	}
}

func (h *History) applyWeighted(tally BlockTally, weight float64) {
	for s := Scale(0); s < scaleCount; s++ {
		for i := range tally.Bins[s] {
			if i >= len(h.bins[s]) {
				continue
			}
			b := &h.bins[s][i]
			d := tally.Bins[s][i]
			b.Total += d.Total * weight
			for t, v := range d.Confirmed {
				if t < len(b.Confirmed) {
					b.Confirmed[t] += v * weight
				}
			}
		}
	}
}

// Total returns the weighted total for (scale, bin).
func (h *History) Total(scale Scale, binIdx int) float64 {
	return h.bins[scale][binIdx].Total
}

// Confirmed returns the weighted confirmed count for (scale, bin, target).
func (h *History) Confirmed(scale Scale, binIdx, target int) float64 {
	return h.bins[scale][binIdx].Confirmed[target]
}

// SetBin overwrites a bin's raw state; used by tests to set up concrete
// scenarios without replaying a push/pop sequence.
func (h *History) SetBin(scale Scale, binIdx int, total float64, confirmed []float64) {
	b := &h.bins[scale][binIdx]
	b.Total = total
	copy(b.Confirmed, confirmed)
}

// Estimate scans bins from highest fee to lowest within scale, accumulating
// total and confirmed[target], returning the fee rate of the first bin
// whose confirmation probability meets the confidence threshold. If no bin qualifies, returns Unavailable.
func (h *History) Estimate(scale Scale, target int, confidence Confidence, geometric bool) uint64 {
	p := h.cfg.Params[scale]
	if target < 0 || target >= p.TargetSpan {
		return Unavailable
	}
	threshold := confidence.threshold()

	var cumTotal, cumConfirmed float64
	for binIdx := p.BinCount - 1; binIdx >= 0; binIdx-- {
		b := h.bins[scale][binIdx]
		cumTotal += b.Total
		cumConfirmed += b.Confirmed[target]

		if cumTotal < 2 {
			continue // insufficient data to trust the ratio
		}
		prob := cumConfirmed / cumTotal
		if geometric {
			prob = 1 - math.Pow(1-prob, float64(target+1))
		}
		if prob >= threshold {
			rate := p.MinRate * math.Pow(p.Step, float64(binIdx))
			return uint64(rate)
		}
	}
	return Unavailable
}

type errOverflow struct{}

func (errOverflow) Error() string { return "feeestimator: top_height would overflow" }
