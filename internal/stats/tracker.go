package stats

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mExOms/sor/pkg/types"
)

// DefaultHistorySize bounds the retained routing history.
const DefaultHistorySize = 1000

// Tracker aggregates routing outcomes. Order and volume totals are lifetime
// counters; success rate, average execution time and per-venue shares are
// computed over the retained history window.
type Tracker struct {
	mu          sync.RWMutex
	history     *ring
	totalOrders int64
	totalVolume decimal.Decimal
}

// NewTracker creates a tracker retaining up to historySize completed results.
// A non-positive historySize falls back to DefaultHistorySize.
func NewTracker(historySize int) *Tracker {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Tracker{
		history:     newRing(historySize),
		totalVolume: decimal.Zero,
	}
}

// Record folds one completed routing cycle into the aggregates.
func (t *Tracker) Record(result *types.RoutingResult) {
	if result == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalOrders++
	t.totalVolume = t.totalVolume.Add(result.ExecutedQty)
	t.history.push(*result)
}

// Snapshot returns the current aggregates. A tracker that has seen no
// orders reports zero values with an empty venue map.
func (t *Tracker) Snapshot() types.RoutingStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := types.RoutingStats{
		TotalOrders: t.totalOrders,
		TotalVolume: t.totalVolume,
		VenueStats:  make(map[string]types.VenueShare),
	}

	window := t.history.items()
	if len(window) == 0 {
		return stats
	}

	successes := 0
	sumExecMS := 0.0
	routed := make(map[string]int64)
	totalRouted := int64(0)

	for _, result := range window {
		if !result.Success {
			continue
		}
		successes++
		sumExecMS += result.ExecutionMS
		for _, exec := range result.Executions {
			if exec.Success {
				routed[exec.VenueID]++
				totalRouted++
			}
		}
	}

	stats.SuccessRate = float64(successes) / float64(len(window))
	if successes > 0 {
		stats.AvgExecutionMS = sumExecMS / float64(successes)
	}
	for venueID, count := range routed {
		share := types.VenueShare{TotalRouted: count}
		if totalRouted > 0 {
			share.Percentage = float64(count) / float64(totalRouted) * 100
		}
		stats.VenueStats[venueID] = share
	}
	return stats
}

// Recent returns up to limit retained results, newest first. A non-positive
// limit returns the whole window.
func (t *Tracker) Recent(limit int) []types.RoutingResult {
	t.mu.RLock()
	defer t.mu.RUnlock()

	window := t.history.items()
	if limit <= 0 || limit > len(window) {
		limit = len(window)
	}
	out := make([]types.RoutingResult, 0, limit)
	for i := len(window) - 1; i >= len(window)-limit; i-- {
		out = append(out, window[i])
	}
	return out
}
