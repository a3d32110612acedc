package oracle

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mExOms/sor/pkg/types"
)

func baseFeatures() types.VenueFeatures {
	return types.VenueFeatures{
		VenueID:        "NYSE",
		LatencyMS:      3.0,
		Liquidity:      0.85,
		Spread:         0.25,
		Imbalance:      0.1,
		HistFillRate:   0.95,
		FeePct:         0.002,
		ImpactEstimate: 0.001,
	}
}

func TestScoreBounds(t *testing.T) {
	s := NewHeuristicScorer()

	cases := []struct {
		name string
		f    types.VenueFeatures
		size float64
	}{
		{"typical", baseFeatures(), 1000},
		{"tiny order", baseFeatures(), 1},
		{"huge order", baseFeatures(), 50_000_000},
		{"slow venue", types.VenueFeatures{LatencyMS: 500, Liquidity: 0.7, HistFillRate: 0.95, FeePct: 0.003, Spread: 0.5}, 1000},
		{"zero features", types.VenueFeatures{}, 1000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			impact, successProb, err := s.Score(tc.f, tc.size)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, impact, 0.0)
			assert.Less(t, impact, 1.0)
			assert.GreaterOrEqual(t, successProb, 0.0)
			assert.LessOrEqual(t, successProb, 1.0)
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	s := NewHeuristicScorer()
	f := baseFeatures()

	i1, p1, err := s.Score(f, 1000)
	require.NoError(t, err)
	i2, p2, err := s.Score(f, 1000)
	require.NoError(t, err)

	assert.Equal(t, i1, i2)
	assert.Equal(t, p1, p2)

	// Recording outcomes must not change scoring.
	s.RecordOutcome("NYSE", false, 12.5)
	i3, p3, err := s.Score(f, 1000)
	require.NoError(t, err)
	assert.Equal(t, i1, i3)
	assert.Equal(t, p1, p3)
}

func TestImpactMonotonicInSize(t *testing.T) {
	s := NewHeuristicScorer()
	f := baseFeatures()

	prev := -1.0
	for _, size := range []float64{100, 1000, 10_000, 100_000} {
		impact, _, err := s.Score(f, size)
		require.NoError(t, err)
		assert.Greater(t, impact, prev, "impact should grow with order size")
		prev = impact
	}
}

func TestSuccessProbPenalizesLatency(t *testing.T) {
	s := NewHeuristicScorer()

	fast := baseFeatures()
	fast.LatencyMS = 2.5
	slow := baseFeatures()
	slow.LatencyMS = 50

	_, fastProb, err := s.Score(fast, 1000)
	require.NoError(t, err)
	_, slowProb, err := s.Score(slow, 1000)
	require.NoError(t, err)

	assert.Greater(t, fastProb, slowProb)
}

func TestRecordOutcomeWindowBounded(t *testing.T) {
	s := NewHeuristicScorer()

	for i := 0; i < outcomeWindow+250; i++ {
		s.RecordOutcome("BATS", i%2 == 0, 5)
	}

	rate, n := s.SuccessRate("BATS")
	assert.Equal(t, outcomeWindow, n)
	assert.InDelta(t, 0.5, rate, 0.01)
}

func TestSuccessRateEmpty(t *testing.T) {
	s := NewHeuristicScorer()
	rate, n := s.SuccessRate("IEX")
	assert.Zero(t, rate)
	assert.Zero(t, n)
}

func TestRecordOutcomeConcurrent(t *testing.T) {
	s := NewHeuristicScorer()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				s.RecordOutcome(fmt.Sprintf("V%d", g%2), true, float64(i))
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	rate, n := s.SuccessRate("V0")
	assert.Equal(t, 1.0, rate)
	assert.Equal(t, 800, n)
}
