package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectBuilders(t *testing.T) {
	assert.Equal(t, "routing.result.AAPL", RoutingResultSubject("AAPL"))
	assert.Equal(t, "routing.reject.TSLA", RoutingRejectSubject("TSLA"))
	assert.Equal(t, "market.snapshot.NYSE.AAPL", MarketSnapshotSubject("NYSE", "AAPL"))
}

func TestSubjectBuilderWildcards(t *testing.T) {
	s := NewSubjectBuilder().WithAction(ActionMarketSnapshot).WithVenue("IEX").Build()
	assert.Equal(t, "market.snapshot.IEX.*", s)

	s = NewSubjectBuilder().WithAction(ActionRoutingResult).Build()
	assert.Equal(t, "routing.result", s)
}

func TestParseSubject(t *testing.T) {
	action, venue, symbol := ParseSubject("market.snapshot.NYSE.AAPL")
	assert.Equal(t, "market.snapshot", action)
	assert.Equal(t, "NYSE", venue)
	assert.Equal(t, "AAPL", symbol)

	action, venue, symbol = ParseSubject("routing.result.MSFT")
	assert.Equal(t, "routing.result", action)
	assert.Empty(t, venue)
	assert.Equal(t, "MSFT", symbol)
}

func TestDurableName(t *testing.T) {
	assert.Equal(t, "sor-routing-result-all", durableName("routing.result.>"))
	assert.NotContains(t, durableName("market.snapshot.*.AAPL"), ".")
}

func TestDefaultStreams(t *testing.T) {
	streams := DefaultStreams()
	assert.Len(t, streams, 3)
	assert.Equal(t, "SOR_ROUTING", streams[0].Name)
	assert.Equal(t, []string{"routing.>"}, streams[0].Subjects)
}
