package venue

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mExOms/sor/pkg/clock"
	"github.com/mExOms/sor/pkg/types"
)

const bookDepth = 10

// Config holds the tunables for one simulated venue. Zero values for
// Liquidity and FeePct mean "sample a realistic one"; a zero Seed means
// seed from the wall clock.
type Config struct {
	ID            string
	LatencyMS     float64
	Liquidity     float64
	FeePct        float64
	Symbols       []string
	SupportsLimit bool
	Seed          int64
	Clock         clock.Clock
}

// Simulator is an in-process execution venue with generated order books.
// One mutex covers books, the execution counter, the active flag and the
// RNG: every state change on a venue is serialized, even when routing
// cycles overlap.
type Simulator struct {
	id            string
	latencyMS     float64
	liquidity     float64
	feePct        float64
	supportsLimit bool
	clock         clock.Clock
	logger        *logrus.Entry

	mu            sync.Mutex
	rng           *rand.Rand
	books         map[string]*types.OrderBookData
	active        bool
	totalExecuted int64
}

// NewSimulator builds a venue and generates a book per symbol. Books are
// never regenerated afterwards; executions consume them.
func NewSimulator(cfg Config) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	liquidity := cfg.Liquidity
	if liquidity == 0 {
		liquidity = 0.7 + rng.Float64()*0.3
	}
	feePct := cfg.FeePct
	if feePct == 0 {
		feePct = 0.001 + rng.Float64()*0.002
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	s := &Simulator{
		id:            cfg.ID,
		latencyMS:     cfg.LatencyMS,
		liquidity:     liquidity,
		feePct:        feePct,
		supportsLimit: cfg.SupportsLimit,
		clock:         clk,
		logger:        logrus.WithField("venue", cfg.ID),
		rng:           rng,
		books:         make(map[string]*types.OrderBookData, len(cfg.Symbols)),
		active:        true,
	}

	for _, symbol := range cfg.Symbols {
		s.books[symbol] = s.generateBook(symbol)
	}

	return s
}

// generateBook seeds a symmetric book around a random base price: ten
// levels a cent apart on each side of a 10 bps spread, with per-level
// volume scaled by the venue's liquidity factor.
func (s *Simulator) generateBook(symbol string) *types.OrderBookData {
	base := 100 + s.rng.Float64()*400
	spread := base * 0.001

	book := &types.OrderBookData{
		Symbol:     symbol,
		UpdateTime: s.clock.Now(),
	}

	bestBid := base - spread/2
	bestAsk := base + spread/2
	for i := 0; i < bookDepth; i++ {
		book.Bids = append(book.Bids, types.PriceLevel{
			Price:    decimal.NewFromFloat(bestBid - float64(i)*0.01).Round(2),
			Quantity: s.levelVolume(),
		})
		book.Asks = append(book.Asks, types.PriceLevel{
			Price:    decimal.NewFromFloat(bestAsk + float64(i)*0.01).Round(2),
			Quantity: s.levelVolume(),
		})
	}

	return book
}

func (s *Simulator) levelVolume() decimal.Decimal {
	v := (100 + s.rng.Float64()*900) * s.liquidity
	return decimal.NewFromFloat(v).Round(2)
}

func (s *Simulator) ID() string { return s.id }

func (s *Simulator) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive flips the venue's availability. Inactive venues reject
// executions and are skipped during feature collection.
func (s *Simulator) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// MarketData returns the current top of book for symbol. The read never
// mutates the book; the second return is false when the venue does not
// trade the symbol.
func (s *Simulator) MarketData(symbol string) (types.MarketSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[symbol]
	if !ok {
		return types.MarketSnapshot{}, false
	}

	snap := types.MarketSnapshot{
		VenueID:    s.id,
		Symbol:     symbol,
		UpdateTime: s.clock.Now(),
	}
	if len(book.Bids) > 0 {
		snap.BestBid = book.Bids[0].Price
		snap.BidVolume = book.Bids[0].Quantity
	}
	if len(book.Asks) > 0 {
		snap.BestAsk = book.Asks[0].Price
		snap.AskVolume = book.Asks[0].Quantity
	}
	if len(book.Bids) > 0 && len(book.Asks) > 0 {
		snap.Spread = snap.BestAsk.Sub(snap.BestBid)
	}

	return snap, true
}

// Book returns a copy of the full order book for symbol.
func (s *Simulator) Book(symbol string) (*types.OrderBookData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[symbol]
	if !ok {
		return nil, false
	}

	cp := &types.OrderBookData{
		Symbol:     book.Symbol,
		Bids:       append([]types.PriceLevel(nil), book.Bids...),
		Asks:       append([]types.PriceLevel(nil), book.Asks...),
		UpdateTime: book.UpdateTime,
	}
	return cp, true
}

// Execute fills a child order against the book after the venue's simulated
// latency. The latency wait is the only blocking portion and honors ctx; a
// cancelled wait returns the context error and leaves the venue untouched.
func (s *Simulator) Execute(ctx context.Context, order *types.Order) (*types.ExecutionResult, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return s.reject(order, "venue inactive"), nil
	}
	latency := s.sampleLatency()
	s.mu.Unlock()

	select {
	case <-s.clock.After(latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return s.fill(order, latency), nil
}

// sampleLatency draws base + Exp(mean 2ms). Callers hold s.mu.
func (s *Simulator) sampleLatency() time.Duration {
	ms := s.latencyMS + s.rng.ExpFloat64()*2
	return time.Duration(ms * float64(time.Millisecond))
}

func (s *Simulator) fill(order *types.Order, latency time.Duration) *types.ExecutionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return s.reject(order, "venue inactive")
	}

	book, ok := s.books[order.Symbol]
	if !ok {
		return s.reject(order, "unknown symbol")
	}

	if order.Type == types.OrderTypeLimit && !s.supportsLimit {
		return s.reject(order, types.ErrUnsupportedOrderType.Error())
	}

	levels := book.Asks
	if order.Side == types.OrderSideSell {
		levels = book.Bids
	}
	if len(levels) == 0 {
		return s.reject(order, "no liquidity available")
	}

	top := levels[0]
	if order.Type == types.OrderTypeLimit {
		if order.Side == types.OrderSideBuy && top.Price.GreaterThan(order.Price) {
			return s.reject(order, "limit price not marketable")
		}
		if order.Side == types.OrderSideSell && top.Price.LessThan(order.Price) {
			return s.reject(order, "limit price not marketable")
		}
	}

	qty := decimal.Min(order.Quantity, top.Quantity)
	fee := qty.Mul(top.Price).Mul(decimal.NewFromFloat(s.feePct))

	// Single-level sweep: consume the top, drop it when exhausted.
	remaining := top.Quantity.Sub(qty)
	if remaining.IsPositive() {
		levels[0].Quantity = remaining
	} else {
		if order.Side == types.OrderSideSell {
			book.Bids = book.Bids[1:]
		} else {
			book.Asks = book.Asks[1:]
		}
	}
	book.UpdateTime = s.clock.Now()
	s.totalExecuted++

	return &types.ExecutionResult{
		OrderID:    order.ID,
		VenueID:    s.id,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Success:    true,
		Price:      top.Price,
		Quantity:   qty,
		Fee:        fee,
		LatencyMS:  float64(latency) / float64(time.Millisecond),
		ExecutedAt: s.clock.Now(),
	}
}

// reject builds a failed result without touching the book or the execution
// counter.
func (s *Simulator) reject(order *types.Order, reason string) *types.ExecutionResult {
	return &types.ExecutionResult{
		OrderID:    order.ID,
		VenueID:    s.id,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Success:    false,
		Reason:     reason,
		ExecutedAt: s.clock.Now(),
	}
}

// Status reports the operator view of the venue.
func (s *Simulator) Status() types.VenueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.VenueStatus{
		VenueID:       s.id,
		Active:        s.active,
		LatencyMS:     s.latencyMS,
		Liquidity:     s.liquidity,
		FeePct:        s.feePct,
		TotalExecuted: s.totalExecuted,
	}
}
