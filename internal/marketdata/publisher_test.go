package marketdata

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mExOms/sor/pkg/nats"
)

type fakeSink struct {
	mu    sync.Mutex
	seen  map[string]int
	calls int
}

func newFakeSink() *fakeSink {
	return &fakeSink{seen: make(map[string]int)}
}

func (f *fakeSink) PublishMarketSnapshot(venue, symbol string, msg *nats.MarketSnapshotMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[venue+"/"+symbol]++
	f.calls++
	return nil
}

func (f *fakeSink) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSink) venueSymbols() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.seen))
	for k, v := range f.seen {
		out[k] = v
	}
	return out
}

func TestPublisherPushesEveryVenueSnapshot(t *testing.T) {
	registry, _ := testBoard(t)
	agg := NewAggregator(registry, time.Millisecond)
	defer agg.Close()

	sink := newFakeSink()
	pub := NewPublisher(agg, sink, []string{"AAPL"}, 10*time.Millisecond)
	pub.Start()
	defer pub.Stop()

	require.Eventually(t, func() bool {
		return sink.callCount() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	seen := sink.venueSymbols()
	for _, venueID := range registry.List() {
		assert.Contains(t, seen, venueID+"/AAPL")
	}
}

func TestPublisherSkipsDeadSymbols(t *testing.T) {
	registry, _ := testBoard(t)
	agg := NewAggregator(registry, time.Millisecond)
	defer agg.Close()

	sink := newFakeSink()
	pub := NewPublisher(agg, sink, []string{"GME"}, 5*time.Millisecond)
	pub.Start()
	defer pub.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, sink.callCount())
}

func TestPublisherStop(t *testing.T) {
	registry, _ := testBoard(t)
	agg := NewAggregator(registry, time.Millisecond)
	defer agg.Close()

	sink := newFakeSink()
	pub := NewPublisher(agg, sink, []string{"AAPL"}, 5*time.Millisecond)
	pub.Start()

	require.Eventually(t, func() bool {
		return sink.callCount() > 0
	}, 2*time.Second, 5*time.Millisecond)

	pub.Stop()
	settled := sink.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, sink.callCount(), settled+3, "loop must stop publishing")
}
