package nats

import (
	"time"

	"github.com/mExOms/sor/pkg/types"
)

// RoutingResultMessage carries a completed routing cycle.
type RoutingResultMessage struct {
	Result    types.RoutingResult `json:"result"`
	Timestamp time.Time           `json:"timestamp"`
}

// RejectionMessage carries an order that never produced executions.
type RejectionMessage struct {
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// MarketSnapshotMessage carries one venue's top of book.
type MarketSnapshotMessage struct {
	Snapshot  types.MarketSnapshot `json:"snapshot"`
	Timestamp time.Time            `json:"timestamp"`
}

// VenueStatusMessage carries the status board for every registered venue.
type VenueStatusMessage struct {
	Venues    []types.VenueStatus `json:"venues"`
	Timestamp time.Time           `json:"timestamp"`
}

// SystemMessage represents system-wide messages
type SystemMessage struct {
	Type      string                 `json:"type"` // info, warning, error
	Component string                 `json:"component"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
