package oracle

import "github.com/mExOms/sor/pkg/types"

// Scorer estimates market impact and fill probability for routing an order
// of a given size to one venue. Implementations must be pure: the same
// inputs always produce the same outputs, with no side effects the router
// can observe, and must return promptly.
//
// Contract: impact is normalized to [0, 1), successProb to [0, 1].
type Scorer interface {
	Score(features types.VenueFeatures, orderSize float64) (impact, successProb float64, err error)
}

// FeedbackSink receives execution outcomes after each routing cycle. The
// router delivers feedback fire-and-forget; implementations must be safe
// for concurrent use and must never block on the caller.
type FeedbackSink interface {
	RecordOutcome(venueID string, success bool, execMillis float64)
}
