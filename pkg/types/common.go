package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order sides
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

// Order types
const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// Type aliases for readability at call sites
type OrderSide = string
type OrderType = string

// Order represents a routable order. A parent order is split into child
// orders, one per venue, via ChildOf; children keep the parent's symbol,
// side, type and limit price.
type Order struct {
	ID        string          `json:"id"`
	ParentID  string          `json:"parent_id,omitempty"`
	Symbol    string          `json:"symbol"`
	Side      OrderSide       `json:"side"`
	Type      OrderType       `json:"type"`
	Price     decimal.Decimal `json:"price,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks the order for intake. It returns a *ValidationError
// describing the first failing field.
func (o *Order) Validate() error {
	if o.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if o.Side != OrderSideBuy && o.Side != OrderSideSell {
		return &ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	if o.Type != OrderTypeMarket && o.Type != OrderTypeLimit {
		return &ValidationError{Field: "type", Reason: "must be MARKET or LIMIT"}
	}
	if !o.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if o.Type == OrderTypeLimit && !o.Price.IsPositive() {
		return &ValidationError{Field: "price", Reason: "required for LIMIT orders"}
	}
	return nil
}

// ChildOf derives the child order carrying qty of parent flow to venueID.
// Child IDs are the parent ID suffixed with the venue ID.
func (o *Order) ChildOf(venueID string, qty decimal.Decimal) *Order {
	return &Order{
		ID:        o.ID + "_" + venueID,
		ParentID:  o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Type:      o.Type,
		Price:     o.Price,
		Quantity:  qty,
		CreatedAt: o.CreatedAt,
	}
}

// OrderBookData represents an order book with price levels, best first.
type OrderBookData struct {
	Symbol     string       `json:"symbol"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	UpdateTime time.Time    `json:"update_time"`
}

// PriceLevel represents a price level in an order book
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// MarketSnapshot is the top-of-book view a venue reports for one symbol.
type MarketSnapshot struct {
	VenueID    string          `json:"venue_id"`
	Symbol     string          `json:"symbol"`
	BestBid    decimal.Decimal `json:"best_bid"`
	BestAsk    decimal.Decimal `json:"best_ask"`
	BidVolume  decimal.Decimal `json:"bid_volume"`
	AskVolume  decimal.Decimal `json:"ask_volume"`
	Spread     decimal.Decimal `json:"spread"`
	UpdateTime time.Time       `json:"update_time"`
}
