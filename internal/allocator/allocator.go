package allocator

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mExOms/sor/internal/oracle"
	"github.com/mExOms/sor/pkg/types"
)

// Score weights. They are fixed: tuning them is a model change, not a
// config change.
const (
	weightSuccessProb = 0.30
	weightLiquidity   = 0.20
	weightImpact      = 0.20
	weightFee         = 0.15
	weightLatency     = 0.15
)

// quantityPrecision is the decimal scale for child order quantities.
const quantityPrecision = 8

// Engine turns venue features into per-venue quantity allocations.
type Engine struct {
	scorer oracle.Scorer
	logger *logrus.Entry
}

func New(scorer oracle.Scorer) *Engine {
	return &Engine{
		scorer: scorer,
		logger: logrus.WithField("component", "allocator"),
	}
}

// Allocate splits orderQty across the candidate venues in proportion to
// their scores, in input order. The allocations always sum to orderQty
// exactly: rounding drift is folded into the largest allocation.
//
// An empty candidate set, or one where every score degenerates to zero,
// returns ErrNoViableVenue. A scorer failure does not fail the cycle:
// allocation falls back to equal weights.
func (e *Engine) Allocate(orderQty decimal.Decimal, features []types.VenueFeatures) ([]types.VenueAllocation, error) {
	if len(features) == 0 {
		return nil, types.ErrNoViableVenue
	}

	scores := e.scoreAll(orderQty.InexactFloat64(), features)

	total := 0.0
	for _, s := range scores {
		total += s
	}
	if total <= 0 {
		return nil, types.ErrNoViableVenue
	}

	allocations := make([]types.VenueAllocation, len(features))
	allocated := decimal.Zero
	largest := 0
	for i, f := range features {
		weight := scores[i] / total
		qty := orderQty.Mul(decimal.NewFromFloat(weight)).Round(quantityPrecision)
		allocations[i] = types.VenueAllocation{
			VenueID:  f.VenueID,
			Quantity: qty,
			Score:    scores[i],
			Weight:   weight,
		}
		allocated = allocated.Add(qty)
		if qty.GreaterThan(allocations[largest].Quantity) {
			largest = i
		}
	}

	// Pin rounding drift on the largest allocation so the children sum
	// back to the parent exactly.
	if diff := orderQty.Sub(allocated); !diff.IsZero() {
		allocations[largest].Quantity = allocations[largest].Quantity.Add(diff)
	}

	return allocations, nil
}

// scoreAll runs the oracle over every candidate. On oracle failure it
// degrades to equal weighting rather than failing the cycle.
func (e *Engine) scoreAll(orderSize float64, features []types.VenueFeatures) []float64 {
	scores := make([]float64, len(features))
	for i, f := range features {
		impact, successProb, err := e.scorer.Score(f, orderSize)
		if err != nil {
			e.logger.Warnf("%v: %v; falling back to equal weights", types.ErrOracleUnavailable, err)
			for j := range scores {
				scores[j] = 1
			}
			return scores
		}
		scores[i] = venueScore(f, impact, successProb)
	}
	return scores
}

// venueScore combines the oracle outputs with the venue's own features.
// Fee enters scaled by 100 so the usual 0.1%-0.3% range spans [0.1, 0.3];
// impact arrives already normalized to [0, 1).
func venueScore(f types.VenueFeatures, impact, successProb float64) float64 {
	latency := f.LatencyMS
	if latency < 0 {
		latency = 0
	}

	return weightSuccessProb*clip01(successProb) +
		weightLiquidity*clip01(f.Liquidity) +
		weightImpact*(1-clip01(impact)) +
		weightFee*(1-clip01(f.FeePct*100)) +
		weightLatency*(1-math.Tanh(latency/20))
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
