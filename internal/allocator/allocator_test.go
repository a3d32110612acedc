package allocator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mExOms/sor/internal/oracle"
	"github.com/mExOms/sor/pkg/types"
)

// fixedScorer returns the same estimates for every venue.
type fixedScorer struct {
	impact float64
	prob   float64
}

func (s fixedScorer) Score(types.VenueFeatures, float64) (float64, float64, error) {
	return s.impact, s.prob, nil
}

// failingScorer simulates an unavailable oracle.
type failingScorer struct{}

func (failingScorer) Score(types.VenueFeatures, float64) (float64, float64, error) {
	return 0, 0, errors.New("model offline")
}

func TestAllocateWeightsByScore(t *testing.T) {
	engine := New(fixedScorer{impact: 0.2, prob: 0.8})

	features := []types.VenueFeatures{
		{VenueID: "FAST", LatencyMS: 0, Liquidity: 1.0, FeePct: 0},
		{VenueID: "SLOW", LatencyMS: 1_000_000, Liquidity: 0.5, FeePct: 0.01},
	}

	allocs, err := engine.Allocate(decimal.NewFromInt(1000), features)
	require.NoError(t, err)
	require.Len(t, allocs, 2)

	// FAST: 0.3*0.8 + 0.2*1.0 + 0.2*(1-0.2) + 0.15*1 + 0.15*1 = 0.90
	// SLOW: 0.24 + 0.10 + 0.16 + 0 + 0 = 0.50
	assert.InDelta(t, 0.90, allocs[0].Score, 1e-9)
	assert.InDelta(t, 0.50, allocs[1].Score, 1e-9)
	assert.InDelta(t, 0.90/1.40, allocs[0].Weight, 1e-9)

	sum := allocs[0].Quantity.Add(allocs[1].Quantity)
	assert.True(t, sum.Equal(decimal.NewFromInt(1000)), "sum = %s", sum)
	assert.True(t, allocs[0].Quantity.GreaterThan(allocs[1].Quantity))
	assert.Equal(t, "FAST", allocs[0].VenueID)
}

func TestAllocateEmptyCandidates(t *testing.T) {
	engine := New(fixedScorer{impact: 0.1, prob: 0.9})

	allocs, err := engine.Allocate(decimal.NewFromInt(100), nil)
	assert.Nil(t, allocs)
	assert.ErrorIs(t, err, types.ErrNoViableVenue)
}

func TestAllocateDegenerateScores(t *testing.T) {
	engine := New(fixedScorer{impact: 1.0, prob: 0})

	// Every score term collapses to zero: no liquidity, saturated fee,
	// latency far past tanh saturation.
	features := []types.VenueFeatures{
		{VenueID: "A", LatencyMS: 1000, Liquidity: 0, FeePct: 0.01},
		{VenueID: "B", LatencyMS: 2000, Liquidity: 0, FeePct: 0.02},
	}

	_, err := engine.Allocate(decimal.NewFromInt(100), features)
	assert.ErrorIs(t, err, types.ErrNoViableVenue)
}

func TestAllocateOracleFallback(t *testing.T) {
	engine := New(failingScorer{})

	features := make([]types.VenueFeatures, 4)
	for i := range features {
		features[i] = types.VenueFeatures{VenueID: fmt.Sprintf("V%d", i)}
	}

	allocs, err := engine.Allocate(decimal.NewFromInt(1000), features)
	require.NoError(t, err, "oracle failure must not fail the cycle")
	require.Len(t, allocs, 4)

	want := decimal.NewFromInt(250)
	for _, a := range allocs {
		assert.True(t, a.Quantity.Equal(want), "%s got %s", a.VenueID, a.Quantity)
		assert.InDelta(t, 0.25, a.Weight, 1e-9)
	}
}

func TestAllocateSingleVenueTakesAll(t *testing.T) {
	engine := New(oracle.NewHeuristicScorer())

	qty := decimal.RequireFromString("123.456")
	allocs, err := engine.Allocate(qty, []types.VenueFeatures{{
		VenueID:      "IEX",
		LatencyMS:    10,
		Liquidity:    0.8,
		HistFillRate: 0.95,
		FeePct:       0.002,
	}})
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.True(t, allocs[0].Quantity.Equal(qty))
	assert.InDelta(t, 1.0, allocs[0].Weight, 1e-9)
}

func TestAllocateDriftLandsOnLargest(t *testing.T) {
	engine := New(oracle.NewHeuristicScorer())

	features := make([]types.VenueFeatures, 3)
	for i := range features {
		features[i] = types.VenueFeatures{
			VenueID:      fmt.Sprintf("V%d", i),
			LatencyMS:    float64(i+1) * 3,
			Liquidity:    0.9 - float64(i)*0.2,
			HistFillRate: 0.95,
			FeePct:       0.002,
		}
	}

	// 1000 into three unequal weights cannot split evenly at any scale;
	// the drift correction must absorb the residue.
	qty := decimal.NewFromInt(1000)
	allocs, err := engine.Allocate(qty, features)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, a := range allocs {
		sum = sum.Add(a.Quantity)
	}
	assert.True(t, sum.Equal(qty), "sum = %s", sum)
}

func TestAllocationProperties(t *testing.T) {
	engine := New(oracle.NewHeuristicScorer())

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "venues")
		qty := decimal.NewFromInt(rapid.Int64Range(1, 1_000_000_000).Draw(t, "qty"))

		features := make([]types.VenueFeatures, n)
		for i := range features {
			features[i] = types.VenueFeatures{
				VenueID:      fmt.Sprintf("V%d", i),
				LatencyMS:    rapid.Float64Range(0.1, 100).Draw(t, fmt.Sprintf("latency%d", i)),
				Liquidity:    rapid.Float64Range(0.1, 1).Draw(t, fmt.Sprintf("liquidity%d", i)),
				Spread:       rapid.Float64Range(0, 1).Draw(t, fmt.Sprintf("spread%d", i)),
				HistFillRate: 0.95,
				FeePct:       rapid.Float64Range(0.0005, 0.005).Draw(t, fmt.Sprintf("fee%d", i)),
			}
		}

		allocs, err := engine.Allocate(qty, features)
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		if len(allocs) != n {
			t.Fatalf("got %d allocations for %d venues", len(allocs), n)
		}

		sum := decimal.Zero
		for i, a := range allocs {
			if a.VenueID != features[i].VenueID {
				t.Fatalf("allocation order changed: %s at %d", a.VenueID, i)
			}
			if a.Quantity.IsNegative() {
				t.Fatalf("negative allocation %s for %s", a.Quantity, a.VenueID)
			}
			sum = sum.Add(a.Quantity)
		}
		if !sum.Equal(qty) {
			t.Fatalf("allocations sum to %s, parent is %s", sum, qty)
		}
	})
}

func TestAllocateDeterministic(t *testing.T) {
	engine := New(oracle.NewHeuristicScorer())

	features := []types.VenueFeatures{
		{VenueID: "NYSE", LatencyMS: 3, Liquidity: 0.9, HistFillRate: 0.95, FeePct: 0.002},
		{VenueID: "IEX", LatencyMS: 10, Liquidity: 0.7, HistFillRate: 0.95, FeePct: 0.001},
	}

	first, err := engine.Allocate(decimal.NewFromInt(777), features)
	require.NoError(t, err)
	second, err := engine.Allocate(decimal.NewFromInt(777), features)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
