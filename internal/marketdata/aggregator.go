package marketdata

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mExOms/sor/internal/venue"
	"github.com/mExOms/sor/pkg/cache"
	"github.com/mExOms/sor/pkg/types"
)

// DefaultTTL is how long a consolidated view stays fresh before the
// venues are polled again.
const DefaultTTL = 250 * time.Millisecond

// BookView is the consolidated top of book for one symbol across every
// active venue, with the venue carrying each side of the best market.
type BookView struct {
	Symbol       string                 `json:"symbol"`
	BestBid      decimal.Decimal        `json:"best_bid"`
	BestBidVenue string                 `json:"best_bid_venue"`
	BestAsk      decimal.Decimal        `json:"best_ask"`
	BestAskVenue string                 `json:"best_ask_venue"`
	Spread       decimal.Decimal        `json:"spread"`
	Venues       []types.MarketSnapshot `json:"venues"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Aggregator consolidates per-venue quotes into cross-venue views.
// Views are cached briefly so API polling does not lock every venue
// book on each request.
type Aggregator struct {
	registry *venue.Registry
	views    *cache.MemoryCache
	ttl      time.Duration
	logger   *logrus.Entry
}

func NewAggregator(registry *venue.Registry, ttl time.Duration) *Aggregator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Aggregator{
		registry: registry,
		views:    cache.NewMemoryCache(),
		ttl:      ttl,
		logger:   logrus.WithField("component", "marketdata"),
	}
}

// Snapshot returns the consolidated view for symbol, polling the active
// venues on cache miss. It fails when no active venue quotes the symbol.
func (a *Aggregator) Snapshot(symbol string) (BookView, error) {
	key := "book:" + symbol
	if cached, ok := a.views.Get(key); ok {
		return cached.(BookView), nil
	}

	view, err := a.consolidate(symbol)
	if err != nil {
		return BookView{}, err
	}

	a.views.Set(key, view, a.ttl)
	return view, nil
}

func (a *Aggregator) consolidate(symbol string) (BookView, error) {
	view := BookView{Symbol: symbol, Timestamp: time.Now()}

	for _, v := range a.registry.Venues() {
		if !v.IsActive() {
			continue
		}
		snap, ok := v.MarketData(symbol)
		if !ok {
			continue
		}
		view.Venues = append(view.Venues, snap)

		if snap.BestBid.GreaterThan(view.BestBid) {
			view.BestBid = snap.BestBid
			view.BestBidVenue = snap.VenueID
		}
		if snap.BestAsk.IsPositive() &&
			(view.BestAsk.IsZero() || snap.BestAsk.LessThan(view.BestAsk)) {
			view.BestAsk = snap.BestAsk
			view.BestAskVenue = snap.VenueID
		}
	}

	if len(view.Venues) == 0 {
		return BookView{}, fmt.Errorf("no market data for symbol %s", symbol)
	}

	if view.BestBid.IsPositive() && view.BestAsk.IsPositive() {
		view.Spread = view.BestAsk.Sub(view.BestBid)
	}

	a.logger.WithField("symbol", symbol).
		Debugf("consolidated %d venues", len(view.Venues))
	return view, nil
}

// Invalidate drops the cached view for symbol so the next Snapshot
// polls the venues again.
func (a *Aggregator) Invalidate(symbol string) {
	a.views.Delete("book:" + symbol)
}

func (a *Aggregator) Close() {
	a.views.Close()
}
