package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/mExOms/sor/internal/allocator"
	"github.com/mExOms/sor/internal/oracle"
	"github.com/mExOms/sor/internal/stats"
	"github.com/mExOms/sor/internal/venue"
	"github.com/mExOms/sor/pkg/clock"
	"github.com/mExOms/sor/pkg/types"
)

// A routing cycle walks these states in order; FAILED is reachable from any
// of them. The state is per cycle, never shared, so concurrent cycles do not
// observe each other.
type cycleState string

const (
	stateCollectFeatures cycleState = "COLLECT_FEATURES"
	stateAllocate        cycleState = "ALLOCATE"
	stateDispatch        cycleState = "DISPATCH"
	stateAggregate       cycleState = "AGGREGATE"
	stateDone            cycleState = "DONE"
	stateFailed          cycleState = "FAILED"
)

// ReasonNoActiveExchanges reports a cycle that found no venue quoting the
// order's symbol.
const ReasonNoActiveExchanges = "no active exchanges"

// Feature defaults for inputs no live signal backs yet. Historical fill
// rate converges to observed data once the feedback window has samples;
// the impact estimate is refined by the scorer per order.
const (
	defaultHistFillRate   = 0.95
	defaultImpactEstimate = 0.001
)

// Config tunes one Router instance. Zero values fall back to defaults, so
// Config{} is usable as-is.
type Config struct {
	// ChildTimeout bounds each child execution. A child that exceeds it is
	// marked failed without blocking its siblings or the cycle.
	ChildTimeout time.Duration

	// WorkerPoolSize bounds how many child executions run at once across
	// all in-flight cycles.
	WorkerPoolSize int

	// HistorySize caps the retained routing history.
	HistorySize int

	// Clock stamps results and is passed through to nothing else; venue
	// latency waits use the venues' own clocks. Nil means the real clock.
	Clock clock.Clock

	// Feedback receives per-child outcomes after each cycle,
	// fire-and-forget. Nil disables feedback.
	Feedback oracle.FeedbackSink
}

func DefaultConfig() Config {
	return Config{
		ChildTimeout:   time.Second,
		WorkerPoolSize: 20,
		HistorySize:    stats.DefaultHistorySize,
	}
}

// ConfigFromViper reads the router.* config section over the defaults.
func ConfigFromViper() Config {
	cfg := DefaultConfig()
	if ms := viper.GetInt("router.child_timeout_ms"); ms > 0 {
		cfg.ChildTimeout = time.Duration(ms) * time.Millisecond
	}
	if n := viper.GetInt("router.worker_pool_size"); n > 0 {
		cfg.WorkerPoolSize = n
	}
	if n := viper.GetInt("router.history_size"); n > 0 {
		cfg.HistorySize = n
	}
	return cfg
}

// Router splits parent orders across the registered venues and aggregates
// the concurrent child executions into one result. Every routing failure is
// returned as data on the RoutingResult; the error return is reserved for
// programmer misuse. A Router owns its statistics and history, holds no
// package globals, and is safe for concurrent Route calls.
type Router struct {
	registry     *venue.Registry
	engine       *allocator.Engine
	feedback     oracle.FeedbackSink
	tracker      *stats.Tracker
	clock        clock.Clock
	pool         *WorkerPool
	childTimeout time.Duration
	logger       *logrus.Entry
}

// New builds a Router over the registry, scoring candidates with scorer.
func New(registry *venue.Registry, scorer oracle.Scorer, cfg Config) *Router {
	defaults := DefaultConfig()
	if cfg.ChildTimeout <= 0 {
		cfg.ChildTimeout = defaults.ChildTimeout
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaults.WorkerPoolSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}

	pool := NewWorkerPool(cfg.WorkerPoolSize)
	pool.Start()

	return &Router{
		registry:     registry,
		engine:       allocator.New(scorer),
		feedback:     cfg.Feedback,
		tracker:      stats.NewTracker(cfg.HistorySize),
		clock:        cfg.Clock,
		pool:         pool,
		childTimeout: cfg.ChildTimeout,
		logger:       logrus.WithField("component", "router"),
	}
}

// Close stops the dispatch pool. In-flight cycles finish first; calling
// Route afterwards fails every child with a shutdown reason.
func (r *Router) Close() {
	r.pool.Stop()
}

// Route runs one full routing cycle for order and returns its result. The
// cycle collects features from active venues, allocates the parent quantity
// across them, dispatches the children concurrently, waits for all of them,
// and aggregates. The error is non-nil only for a nil order.
func (r *Router) Route(ctx context.Context, order *types.Order) (*types.RoutingResult, error) {
	if order == nil {
		return nil, errors.New("router: nil order")
	}

	start := r.clock.Now()
	log := r.logger.WithField("order_id", order.ID)

	log.WithField("state", stateCollectFeatures).Debug("collecting venue features")
	features := r.collectFeatures(order.Symbol)
	if len(features) == 0 {
		log.WithField("state", stateFailed).Warnf("no venue quotes %s", order.Symbol)
		return r.complete(r.failedResult(order, start, ReasonNoActiveExchanges)), nil
	}

	log.WithField("state", stateAllocate).Debugf("allocating across %d venues", len(features))
	allocs, err := r.engine.Allocate(order.Quantity, features)
	if err != nil {
		log.WithField("state", stateFailed).Warnf("allocation failed: %v", err)
		return r.complete(r.failedResult(order, start, err.Error())), nil
	}

	log.WithField("state", stateDispatch).Debug("dispatching child orders")
	dispatched, execs := r.dispatch(ctx, order, allocs)

	log.WithField("state", stateAggregate).Debug("aggregating executions")
	result := r.aggregate(order, dispatched, execs, start)

	log.WithFields(logrus.Fields{
		"state":     stateDone,
		"executed":  result.ExecutedQty,
		"fill_rate": result.FillRate,
	}).Info("routing cycle complete")
	return r.complete(result), nil
}

// VenueStatus reports the status board for every registered venue, ordered
// by venue ID.
func (r *Router) VenueStatus() []types.VenueStatus {
	return r.registry.Statuses()
}

// Statistics reports the aggregate routing statistics.
func (r *Router) Statistics() types.RoutingStats {
	return r.tracker.Snapshot()
}

// Recent returns up to limit retained results, newest first.
func (r *Router) Recent(limit int) []types.RoutingResult {
	return r.tracker.Recent(limit)
}

// collectFeatures snapshots every active venue quoting symbol. Inactive
// venues and venues without the symbol are skipped, not errors.
func (r *Router) collectFeatures(symbol string) []types.VenueFeatures {
	venues := r.registry.Venues()
	features := make([]types.VenueFeatures, 0, len(venues))
	for _, v := range venues {
		if !v.IsActive() {
			continue
		}
		snap, ok := v.MarketData(symbol)
		if !ok {
			continue
		}
		status := v.Status()
		features = append(features, types.VenueFeatures{
			VenueID:        v.ID(),
			LatencyMS:      status.LatencyMS,
			Liquidity:      status.Liquidity,
			Spread:         snap.Spread.InexactFloat64(),
			Imbalance:      bookImbalance(snap),
			HistFillRate:   defaultHistFillRate,
			FeePct:         status.FeePct,
			ImpactEstimate: defaultImpactEstimate,
		})
	}
	return features
}

// bookImbalance is (bidVol - askVol) / (bidVol + askVol), in [-1, 1], zero
// for an empty book.
func bookImbalance(snap types.MarketSnapshot) float64 {
	total := snap.BidVolume.Add(snap.AskVolume)
	if !total.IsPositive() {
		return 0
	}
	return snap.BidVolume.Sub(snap.AskVolume).Div(total).InexactFloat64()
}

// dispatch fans the allocations with positive quantity out as concurrent
// child executions and waits for every one of them: a join-all barrier with
// no early cancellation. Results land in dispatch order regardless of which
// venue answers first.
func (r *Router) dispatch(ctx context.Context, parent *types.Order, allocs []types.VenueAllocation) ([]types.VenueAllocation, []types.ExecutionResult) {
	dispatched := make([]types.VenueAllocation, 0, len(allocs))
	for _, a := range allocs {
		if a.Quantity.IsPositive() {
			dispatched = append(dispatched, a)
		}
	}

	results := make([]types.ExecutionResult, len(dispatched))
	var wg sync.WaitGroup
	for i, a := range dispatched {
		i, a := i, a
		child := parent.ChildOf(a.VenueID, a.Quantity)
		wg.Add(1)
		accepted := r.pool.Submit(func() {
			defer wg.Done()
			results[i] = r.executeChild(ctx, a.VenueID, child)
		})
		if !accepted {
			results[i] = r.failedExecution(child, a.VenueID, "router shutting down")
			wg.Done()
		}
	}
	wg.Wait()

	return dispatched, results
}

// executeChild runs one child order against its venue under the per-child
// timeout. Timeouts and cancellations become failed executions; the venue
// itself reports business failures on the result.
func (r *Router) executeChild(ctx context.Context, venueID string, child *types.Order) types.ExecutionResult {
	target, err := r.registry.Get(venueID)
	if err != nil {
		return r.failedExecution(child, venueID, "venue not registered")
	}

	childCtx, cancel := context.WithTimeout(ctx, r.childTimeout)
	defer cancel()

	res, err := target.Execute(childCtx, child)
	if err != nil {
		reason := "execution cancelled"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "execution timed out"
		}
		r.logger.WithField("venue", venueID).Warnf("child %s: %s", child.ID, reason)
		return r.failedExecution(child, venueID, reason)
	}
	return *res
}

func (r *Router) failedExecution(child *types.Order, venueID, reason string) types.ExecutionResult {
	return types.ExecutionResult{
		OrderID:    child.ID,
		VenueID:    venueID,
		Symbol:     child.Symbol,
		Side:       child.Side,
		Success:    false,
		Reason:     reason,
		ExecutedAt: r.clock.Now(),
	}
}

// aggregate folds the child executions into the cycle result. Quantity,
// fees and the volume-weighted average price cover the successful subset
// only; failed children show up in the execution list and depress the fill
// rate. One decision is recorded per dispatched child, in dispatch order,
// with confidence = allocated share of the parent quantity.
func (r *Router) aggregate(parent *types.Order, dispatched []types.VenueAllocation, execs []types.ExecutionResult, start time.Time) *types.RoutingResult {
	totalExecuted := decimal.Zero
	totalFees := decimal.Zero
	notional := decimal.Zero
	for _, e := range execs {
		if !e.Success {
			continue
		}
		totalExecuted = totalExecuted.Add(e.Quantity)
		totalFees = totalFees.Add(e.Fee)
		notional = notional.Add(e.Price.Mul(e.Quantity))
	}

	avgPrice := decimal.Zero
	if totalExecuted.IsPositive() {
		avgPrice = notional.Div(totalExecuted)
	}
	fillRate := 0.0
	if parent.Quantity.IsPositive() {
		fillRate = totalExecuted.Div(parent.Quantity).InexactFloat64()
	}

	decisions := make([]types.RoutingDecision, len(dispatched))
	for i, a := range dispatched {
		confidence := a.Quantity.Div(parent.Quantity).InexactFloat64()
		decisions[i] = types.RoutingDecision{
			VenueID:    a.VenueID,
			Allocated:  a.Quantity,
			Confidence: confidence,
			Rationale:  fmt.Sprintf("routing score: %.2f%%", confidence*100),
		}
	}

	now := r.clock.Now()
	return &types.RoutingResult{
		OrderID:      parent.ID,
		Symbol:       parent.Symbol,
		Side:         parent.Side,
		Success:      totalExecuted.IsPositive(),
		RequestedQty: parent.Quantity,
		ExecutedQty:  totalExecuted,
		AvgPrice:     avgPrice,
		TotalFees:    totalFees,
		FillRate:     fillRate,
		ExecutionMS:  durationMS(now.Sub(start)),
		Decisions:    decisions,
		Executions:   execs,
		CompletedAt:  now,
	}
}

// failedResult builds the structured result for a cycle that never reached
// dispatch. Decisions is empty but non-nil so it serializes as [].
func (r *Router) failedResult(order *types.Order, start time.Time, reason string) *types.RoutingResult {
	now := r.clock.Now()
	return &types.RoutingResult{
		OrderID:      order.ID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		Success:      false,
		Reason:       reason,
		RequestedQty: order.Quantity,
		ExecutedQty:  decimal.Zero,
		AvgPrice:     decimal.Zero,
		TotalFees:    decimal.Zero,
		FillRate:     0,
		Decisions:    []types.RoutingDecision{},
		ExecutionMS:  durationMS(now.Sub(start)),
		CompletedAt:  now,
	}
}

// complete applies the cycle's side effects: statistics, history, and the
// feedback hook. Every completed cycle is recorded, failed ones included.
func (r *Router) complete(result *types.RoutingResult) *types.RoutingResult {
	r.tracker.Record(result)
	r.notifyFeedback(result)
	return result
}

// notifyFeedback delivers per-child outcomes to the feedback sink without
// blocking the cycle. A panicking sink is contained here; the caller's
// result is already built and unaffected.
func (r *Router) notifyFeedback(result *types.RoutingResult) {
	if r.feedback == nil || len(result.Executions) == 0 {
		return
	}
	execs := result.Executions
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Errorf("feedback sink panicked: %v", p)
			}
		}()
		for _, e := range execs {
			r.feedback.RecordOutcome(e.VenueID, e.Success, e.LatencyMS)
		}
	}()
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
