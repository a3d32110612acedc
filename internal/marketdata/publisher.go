package marketdata

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mExOms/sor/pkg/nats"
)

// DefaultPublishInterval paces the market snapshot stream.
const DefaultPublishInterval = time.Second

// SnapshotSink receives per-venue top-of-book snapshots. *nats.Client
// satisfies it.
type SnapshotSink interface {
	PublishMarketSnapshot(venue, symbol string, msg *nats.MarketSnapshotMessage) error
}

// Publisher periodically pushes every venue's top of book for the tracked
// symbols into the sink.
type Publisher struct {
	agg      *Aggregator
	sink     SnapshotSink
	symbols  []string
	interval time.Duration
	done     chan struct{}
	once     sync.Once
	logger   *logrus.Entry
}

func NewPublisher(agg *Aggregator, sink SnapshotSink, symbols []string, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = DefaultPublishInterval
	}
	return &Publisher{
		agg:      agg,
		sink:     sink,
		symbols:  symbols,
		interval: interval,
		done:     make(chan struct{}),
		logger:   logrus.WithField("component", "marketdata-publisher"),
	}
}

// Start launches the publish loop. Call Stop to end it.
func (p *Publisher) Start() {
	go p.loop()
}

func (p *Publisher) Stop() {
	p.once.Do(func() { close(p.done) })
}

func (p *Publisher) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.publishAll()
		case <-p.done:
			return
		}
	}
}

func (p *Publisher) publishAll() {
	for _, symbol := range p.symbols {
		view, err := p.agg.Snapshot(symbol)
		if err != nil {
			// Symbols with no active venue are skipped this round.
			continue
		}
		for _, snap := range view.Venues {
			msg := &nats.MarketSnapshotMessage{Snapshot: snap, Timestamp: time.Now()}
			if err := p.sink.PublishMarketSnapshot(snap.VenueID, symbol, msg); err != nil {
				p.logger.Errorf("publish %s/%s: %v", snap.VenueID, symbol, err)
			}
		}
	}
}
