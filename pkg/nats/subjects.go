package nats

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Subject naming convention:
// {domain}.{event}.{symbol...}
// Examples:
// - routing.result.AAPL
// - routing.reject.TSLA
// - market.snapshot.NYSE.AAPL
// - system.venues.status

// Routing events
const (
	ActionRoutingResult = "routing.result"
	ActionRoutingReject = "routing.reject"
)

// Market data events
const (
	ActionMarketSnapshot = "market.snapshot"
)

// System events
const (
	SubjectVenueStatus = "system.venues.status"
	SubjectHealth      = "system.health"
)

// RoutingResultSubject builds the subject for a completed cycle.
func RoutingResultSubject(symbol string) string {
	return NewSubjectBuilder().WithAction(ActionRoutingResult).WithSymbol(symbol).Build()
}

// RoutingRejectSubject builds the subject for a rejected order.
func RoutingRejectSubject(symbol string) string {
	return NewSubjectBuilder().WithAction(ActionRoutingReject).WithSymbol(symbol).Build()
}

// MarketSnapshotSubject builds the subject for a venue's top of book.
func MarketSnapshotSubject(venue, symbol string) string {
	return NewSubjectBuilder().WithAction(ActionMarketSnapshot).WithVenue(venue).WithSymbol(symbol).Build()
}

// SubjectBuilder helps build NATS subjects
type SubjectBuilder struct {
	action string
	venue  string
	symbol string
}

// NewSubjectBuilder creates a new subject builder
func NewSubjectBuilder() *SubjectBuilder {
	return &SubjectBuilder{}
}

// WithAction sets the action
func (sb *SubjectBuilder) WithAction(action string) *SubjectBuilder {
	sb.action = action
	return sb
}

// WithVenue sets the venue
func (sb *SubjectBuilder) WithVenue(venue string) *SubjectBuilder {
	sb.venue = venue
	return sb
}

// WithSymbol sets the symbol
func (sb *SubjectBuilder) WithSymbol(symbol string) *SubjectBuilder {
	sb.symbol = symbol
	return sb
}

// Build creates the subject string. Unset trailing segments are dropped;
// an unset venue before a set symbol becomes a wildcard.
func (sb *SubjectBuilder) Build() string {
	parts := []string{sb.action}

	switch {
	case sb.venue == "" && sb.symbol == "":
		// action only
	case sb.venue == "":
		parts = append(parts, sb.symbol)
	case sb.symbol == "":
		parts = append(parts, sb.venue, "*")
	default:
		parts = append(parts, sb.venue, sb.symbol)
	}

	return strings.Join(parts, ".")
}

// ParseSubject splits a routing or market subject into its components.
func ParseSubject(subject string) (action, venue, symbol string) {
	parts := strings.Split(subject, ".")

	if len(parts) >= 2 {
		action = parts[0] + "." + parts[1]
	}

	switch {
	case len(parts) == 3:
		symbol = parts[2]
	case len(parts) > 3:
		venue = parts[2]
		symbol = parts[3]
	}

	return
}

// Stream names for JetStream
const (
	StreamRouting = "ROUTING"
	StreamMarket  = "MARKET"
	StreamSystem  = "SYSTEM"
)

// GetStreamName returns the namespaced stream name for a given type.
func GetStreamName(streamType string) string {
	return fmt.Sprintf("SOR_%s", strings.ToUpper(streamType))
}

// GetStreamSubjects returns subjects for a stream
func GetStreamSubjects(streamName string) []string {
	switch streamName {
	case StreamRouting:
		return []string{"routing.>"}
	case StreamMarket:
		return []string{"market.>"}
	case StreamSystem:
		return []string{"system.>"}
	default:
		return []string{}
	}
}

// DefaultStreams returns the stream set the router publishes into.
func DefaultStreams() []StreamConfig {
	streams := []StreamConfig{}
	for _, name := range []string{StreamRouting, StreamMarket, StreamSystem} {
		streams = append(streams, StreamConfig{
			Name:      GetStreamName(name),
			Subjects:  GetStreamSubjects(name),
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			MaxMsgs:   1_000_000,
		})
	}
	return streams
}
