package types

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Venue is the capability surface the router needs from an execution venue.
type Venue interface {
	ID() string
	IsActive() bool
	// MarketData returns the top-of-book snapshot for symbol. The second
	// return is false when the venue does not trade the symbol.
	MarketData(symbol string) (MarketSnapshot, bool)
	// Execute fills a child order against the venue's book. Business
	// failures (inactive venue, unknown symbol, unsupported order type,
	// unmarketable limit) come back as an unsuccessful result; the error
	// is reserved for context cancellation.
	Execute(ctx context.Context, order *Order) (*ExecutionResult, error)
	Status() VenueStatus
}

// VenueFeatures is the per-venue feature vector collected before allocation.
type VenueFeatures struct {
	VenueID        string  `json:"venue_id"`
	LatencyMS      float64 `json:"latency_ms"`
	Liquidity      float64 `json:"liquidity"`
	Spread         float64 `json:"spread"`
	Imbalance      float64 `json:"imbalance"`
	HistFillRate   float64 `json:"hist_fill_rate"`
	FeePct         float64 `json:"fee_pct"`
	ImpactEstimate float64 `json:"impact_estimate"`
}

// VenueAllocation is one venue's share of a parent order.
type VenueAllocation struct {
	VenueID  string          `json:"venue_id"`
	Quantity decimal.Decimal `json:"quantity"`
	Score    float64         `json:"score"`
	Weight   float64         `json:"weight"`
}

// ExecutionResult is a single venue's response to a child order.
type ExecutionResult struct {
	OrderID    string          `json:"order_id"`
	VenueID    string          `json:"venue_id"`
	Symbol     string          `json:"symbol"`
	Side       OrderSide       `json:"side"`
	Success    bool            `json:"success"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Fee        decimal.Decimal `json:"fee"`
	LatencyMS  float64         `json:"latency_ms"`
	Reason     string          `json:"reason,omitempty"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// RoutingDecision records one child allocation for audit.
type RoutingDecision struct {
	VenueID    string          `json:"venue_id"`
	Allocated  decimal.Decimal `json:"allocated_quantity"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale"`
}

// RoutingResult is the terminal outcome of one routing cycle. Failures are
// reported here, not as errors: Success is false and Reason says why.
type RoutingResult struct {
	OrderID      string            `json:"order_id"`
	Symbol       string            `json:"symbol"`
	Side         OrderSide         `json:"side"`
	Success      bool              `json:"success"`
	Reason       string            `json:"reason,omitempty"`
	RequestedQty decimal.Decimal   `json:"requested_qty"`
	ExecutedQty  decimal.Decimal   `json:"executed_qty"`
	AvgPrice     decimal.Decimal   `json:"avg_price"`
	TotalFees    decimal.Decimal   `json:"total_fees"`
	FillRate     float64           `json:"fill_rate"`
	ExecutionMS  float64           `json:"execution_time_ms"`
	Decisions    []RoutingDecision `json:"decisions"`
	Executions   []ExecutionResult `json:"executions,omitempty"`
	CompletedAt  time.Time         `json:"completed_at"`
}

// VenueStatus is the operator-facing view of one venue.
type VenueStatus struct {
	VenueID       string  `json:"venue_id"`
	Active        bool    `json:"active"`
	LatencyMS     float64 `json:"latency_ms"`
	Liquidity     float64 `json:"liquidity"`
	FeePct        float64 `json:"fee_pct"`
	TotalExecuted int64   `json:"total_executed"`
}

// VenueShare is one venue's slice of routed flow.
type VenueShare struct {
	TotalRouted int64   `json:"total_routed"`
	Percentage  float64 `json:"percentage"`
}

// RoutingStats aggregates routing outcomes. A store with no completed
// cycles reports the zero value with an empty (non-nil) VenueStats map.
type RoutingStats struct {
	TotalOrders    int64                 `json:"total_orders"`
	TotalVolume    decimal.Decimal       `json:"total_volume"`
	SuccessRate    float64               `json:"success_rate"`
	AvgExecutionMS float64               `json:"avg_execution_time_ms"`
	VenueStats     map[string]VenueShare `json:"venue_statistics"`
}
