package venue

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mExOms/sor/pkg/clock"
	"github.com/mExOms/sor/pkg/types"
)

func testSimulator(t *testing.T, overrides func(*Config)) *Simulator {
	t.Helper()
	cfg := Config{
		ID:        "NYSE",
		LatencyMS: 3.0,
		Liquidity: 1.0,
		FeePct:    0.002,
		Symbols:   []string{"AAPL", "TSLA"},
		Seed:      7,
	}
	if overrides != nil {
		overrides(&cfg)
	}
	return NewSimulator(cfg)
}

func marketBuy(id, symbol string, qty int64) *types.Order {
	return &types.Order{
		ID:       id,
		Symbol:   symbol,
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: decimal.NewFromInt(qty),
	}
}

func TestBookShape(t *testing.T) {
	sim := testSimulator(t, nil)

	book, ok := sim.Book("AAPL")
	require.True(t, ok)
	require.Len(t, book.Bids, bookDepth)
	require.Len(t, book.Asks, bookDepth)

	// Bids descend, asks ascend, one cent per level.
	step := decimal.NewFromFloat(0.01)
	for i := 1; i < bookDepth; i++ {
		assert.True(t, book.Bids[i-1].Price.Sub(book.Bids[i].Price).Equal(step))
		assert.True(t, book.Asks[i].Price.Sub(book.Asks[i-1].Price).Equal(step))
	}

	// Spread is 10 bps of the mid, within cent rounding.
	bid := book.Bids[0].Price.InexactFloat64()
	ask := book.Asks[0].Price.InexactFloat64()
	mid := (bid + ask) / 2
	assert.Greater(t, mid, 100.0)
	assert.Less(t, mid, 500.0)
	assert.InDelta(t, 0.001, (ask-bid)/mid, 0.0002)

	// Volumes carry the liquidity factor (1.0 here).
	for i := 0; i < bookDepth; i++ {
		for _, lvl := range []types.PriceLevel{book.Bids[i], book.Asks[i]} {
			v := lvl.Quantity.InexactFloat64()
			assert.GreaterOrEqual(t, v, 100.0)
			assert.LessOrEqual(t, v, 1000.0)
		}
	}
}

func TestMarketDataIdempotentRead(t *testing.T) {
	frozen := clock.NewManual(time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC))
	sim := testSimulator(t, func(c *Config) { c.Clock = frozen })

	first, ok := sim.MarketData("AAPL")
	require.True(t, ok)
	second, ok := sim.MarketData("AAPL")
	require.True(t, ok)

	assert.Equal(t, first, second)
}

func TestMarketDataUnknownSymbol(t *testing.T) {
	sim := testSimulator(t, nil)

	snap, ok := sim.MarketData("GME")
	assert.False(t, ok)
	assert.Equal(t, types.MarketSnapshot{}, snap)

	// Executing against an unknown symbol fails without an error.
	res, err := sim.Execute(context.Background(), marketBuy("o1", "GME", 10))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "unknown symbol", res.Reason)
	assert.EqualValues(t, 0, sim.Status().TotalExecuted)
}

func TestMarketBuyFillsAtBestAsk(t *testing.T) {
	sim := testSimulator(t, nil)
	snap, _ := sim.MarketData("AAPL")

	res, err := sim.Execute(context.Background(), marketBuy("o1", "AAPL", 50))
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.True(t, res.Price.Equal(snap.BestAsk), "filled at %s, best ask was %s", res.Price, snap.BestAsk)
	assert.True(t, res.Quantity.Equal(decimal.NewFromInt(50)))

	wantFee := res.Quantity.Mul(res.Price).Mul(decimal.NewFromFloat(0.002))
	assert.True(t, res.Fee.Equal(wantFee))
	assert.GreaterOrEqual(t, res.LatencyMS, 3.0)
	assert.EqualValues(t, 1, sim.Status().TotalExecuted)
}

func TestMarketSellFillsAtBestBid(t *testing.T) {
	sim := testSimulator(t, nil)
	snap, _ := sim.MarketData("AAPL")

	order := marketBuy("o1", "AAPL", 50)
	order.Side = types.OrderSideSell
	res, err := sim.Execute(context.Background(), order)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, res.Price.Equal(snap.BestBid))
}

func TestFillCappedAtTopVolume(t *testing.T) {
	sim := testSimulator(t, nil)
	book, _ := sim.Book("AAPL")
	top := book.Asks[0]
	next := book.Asks[1]

	res, err := sim.Execute(context.Background(), marketBuy("o1", "AAPL", 1_000_000))
	require.NoError(t, err)
	require.True(t, res.Success)

	// Single-level sweep: the fill is the whole top level, no more.
	assert.True(t, res.Quantity.Equal(top.Quantity))

	// The exhausted level is gone; the next level is now best.
	snap, _ := sim.MarketData("AAPL")
	assert.True(t, snap.BestAsk.Equal(next.Price))
}

func TestPartialFillConsumesTopLevel(t *testing.T) {
	sim := testSimulator(t, nil)
	before, _ := sim.MarketData("AAPL")
	half := before.AskVolume.Div(decimal.NewFromInt(2)).Round(2)

	order := marketBuy("o1", "AAPL", 0)
	order.Quantity = half
	res, err := sim.Execute(context.Background(), order)
	require.NoError(t, err)
	require.True(t, res.Success)

	after, _ := sim.MarketData("AAPL")
	assert.True(t, after.BestAsk.Equal(before.BestAsk))
	assert.True(t, after.AskVolume.Equal(before.AskVolume.Sub(half)))
}

func TestLimitOrderUnsupported(t *testing.T) {
	sim := testSimulator(t, nil) // default board is MARKET-only

	order := marketBuy("o1", "AAPL", 10)
	order.Type = types.OrderTypeLimit
	order.Price = decimal.NewFromInt(1000)

	res, err := sim.Execute(context.Background(), order)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, types.ErrUnsupportedOrderType.Error(), res.Reason)
	assert.EqualValues(t, 0, sim.Status().TotalExecuted)
}

func TestLimitOrderMarketability(t *testing.T) {
	sim := testSimulator(t, func(c *Config) { c.SupportsLimit = true })
	snap, _ := sim.MarketData("AAPL")

	// Limit above the ask crosses and fills at the ask.
	order := marketBuy("o1", "AAPL", 10)
	order.Type = types.OrderTypeLimit
	order.Price = snap.BestAsk.Add(decimal.NewFromInt(1))
	res, err := sim.Execute(context.Background(), order)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, res.Price.Equal(snap.BestAsk))

	// Limit below the ask does not cross.
	order = marketBuy("o2", "AAPL", 10)
	order.Type = types.OrderTypeLimit
	order.Price = snap.BestAsk.Sub(decimal.NewFromInt(1))
	res, err = sim.Execute(context.Background(), order)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "limit price not marketable", res.Reason)
}

func TestInactiveVenueRejectsWithoutWaiting(t *testing.T) {
	// A manual clock that never advances proves rejection skips the
	// latency wait entirely.
	frozen := clock.NewManual(time.Unix(0, 0))
	sim := testSimulator(t, func(c *Config) {
		c.Clock = frozen
		c.LatencyMS = 60_000
	})
	sim.SetActive(false)

	res, err := sim.Execute(context.Background(), marketBuy("o1", "AAPL", 10))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "venue inactive", res.Reason)
	assert.False(t, sim.IsActive())
}

func TestExecuteHonorsContext(t *testing.T) {
	frozen := clock.NewManual(time.Unix(0, 0))
	sim := testSimulator(t, func(c *Config) { c.Clock = frozen })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := sim.Execute(ctx, marketBuy("o1", "AAPL", 10))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)

	// A cancelled wait leaves the venue untouched.
	assert.EqualValues(t, 0, sim.Status().TotalExecuted)
}

func TestSeededBooksAreDeterministic(t *testing.T) {
	frozen := clock.NewManual(time.Unix(1700000000, 0))
	a := testSimulator(t, func(c *Config) { c.Clock = frozen })
	b := testSimulator(t, func(c *Config) { c.Clock = frozen })

	bookA, _ := a.Book("TSLA")
	bookB, _ := b.Book("TSLA")
	assert.Equal(t, bookA, bookB)

	statusA := a.Status()
	statusB := b.Status()
	assert.Equal(t, statusA.FeePct, statusB.FeePct)
	assert.Equal(t, statusA.Liquidity, statusB.Liquidity)
}

func TestSampledLiquidityAndFeeRanges(t *testing.T) {
	sim := NewSimulator(Config{
		ID:        "IEX",
		LatencyMS: 10,
		Symbols:   []string{"AAPL"},
		Seed:      11,
	})

	status := sim.Status()
	assert.GreaterOrEqual(t, status.Liquidity, 0.7)
	assert.LessOrEqual(t, status.Liquidity, 1.0)
	assert.GreaterOrEqual(t, status.FeePct, 0.001)
	assert.LessOrEqual(t, status.FeePct, 0.003)
}
