package oracle

import (
	"math"
	"sync"

	"github.com/mExOms/sor/pkg/types"
)

// outcomeWindow bounds the retained execution history per venue.
const outcomeWindow = 1000

// HeuristicScorer is the deterministic Scorer used in production. Impact
// grows with the square root of order size plus spread and latency
// penalties; fill probability blends liquidity, historical fill rate and
// latency/spread/fee discounts.
//
// It also implements FeedbackSink, retaining a bounded window of recent
// outcomes per venue for operator introspection. The window never feeds
// Score: scoring stays pure.
type HeuristicScorer struct {
	mu       sync.RWMutex
	outcomes map[string][]outcome
}

type outcome struct {
	success    bool
	execMillis float64
}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{
		outcomes: make(map[string][]outcome),
	}
}

// Score implements Scorer.
func (s *HeuristicScorer) Score(f types.VenueFeatures, orderSize float64) (float64, float64, error) {
	rawImpact := 0.001*math.Sqrt(orderSize/1000) +
		0.002*f.Spread +
		0.0001*f.LatencyMS
	impact := clip(rawImpact*100, 0, 0.99)

	successProb := 0.3*f.Liquidity +
		0.2*f.HistFillRate +
		0.1*(1-math.Tanh(f.LatencyMS/20)) +
		0.2*(1-math.Tanh(f.Spread*100)) +
		0.2*(1-f.FeePct*100)

	return impact, clip(successProb, 0, 1), nil
}

// RecordOutcome implements FeedbackSink.
func (s *HeuristicScorer) RecordOutcome(venueID string, success bool, execMillis float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.outcomes[venueID], outcome{success: success, execMillis: execMillis})
	if len(window) > outcomeWindow {
		window = window[len(window)-outcomeWindow:]
	}
	s.outcomes[venueID] = window
}

// SuccessRate reports the observed fill rate for a venue over the retained
// window, along with the sample count.
func (s *HeuristicScorer) SuccessRate(venueID string) (float64, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := s.outcomes[venueID]
	if len(window) == 0 {
		return 0, 0
	}

	filled := 0
	for _, o := range window {
		if o.success {
			filled++
		}
	}
	return float64(filled) / float64(len(window)), len(window)
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
