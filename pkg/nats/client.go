package nats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Client wraps a NATS connection with router-specific publishing.
type Client struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
	config *Config
}

// Config holds NATS configuration
type Config struct {
	URL      string
	ClientID string
	Streams  []StreamConfig
}

// StreamConfig defines JetStream configuration
type StreamConfig struct {
	Name      string
	Subjects  []string
	Retention nats.RetentionPolicy
	MaxAge    time.Duration
	MaxMsgs   int64
}

// NewClient connects and makes sure the configured streams exist.
func NewClient(config *Config) (*Client, error) {
	logger := logrus.WithField("component", "nats-client")

	opts := []nats.Option{
		nats.Name(config.ClientID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Errorf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Errorf("NATS error: %v", err)
		}),
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &Client{
		conn:   conn,
		js:     js,
		logger: logger,
		config: config,
	}

	if err := client.initializeStreams(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	return client, nil
}

// initializeStreams creates JetStream streams if they don't exist
func (c *Client) initializeStreams() error {
	for _, streamConfig := range c.config.Streams {
		config := &nats.StreamConfig{
			Name:      streamConfig.Name,
			Subjects:  streamConfig.Subjects,
			Retention: streamConfig.Retention,
			MaxAge:    streamConfig.MaxAge,
			MaxMsgs:   streamConfig.MaxMsgs,
			Storage:   nats.FileStorage,
			Replicas:  1,
		}

		_, err := c.js.StreamInfo(streamConfig.Name)
		if err == nil {
			if _, err = c.js.UpdateStream(config); err != nil {
				return fmt.Errorf("failed to update stream %s: %w", streamConfig.Name, err)
			}
			c.logger.Infof("Updated stream: %s", streamConfig.Name)
		} else {
			if _, err = c.js.AddStream(config); err != nil {
				return fmt.Errorf("failed to create stream %s: %w", streamConfig.Name, err)
			}
			c.logger.Infof("Created stream: %s", streamConfig.Name)
		}
	}

	return nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// PublishRoutingResult publishes a completed routing cycle.
func (c *Client) PublishRoutingResult(symbol string, msg *RoutingResultMessage) error {
	return c.publish(RoutingResultSubject(symbol), msg)
}

// PublishRejection publishes an order rejected at intake or routing.
func (c *Client) PublishRejection(symbol string, msg *RejectionMessage) error {
	return c.publish(RoutingRejectSubject(symbol), msg)
}

// PublishMarketSnapshot publishes one venue's top of book for a symbol.
func (c *Client) PublishMarketSnapshot(venue, symbol string, msg *MarketSnapshotMessage) error {
	return c.publish(MarketSnapshotSubject(venue, symbol), msg)
}

// PublishVenueStatus publishes the venue status board.
func (c *Client) PublishVenueStatus(msg *VenueStatusMessage) error {
	return c.publish(SubjectVenueStatus, msg)
}

// PublishSystem publishes a system event for a component.
func (c *Client) PublishSystem(component, event string, data interface{}) error {
	subject := fmt.Sprintf("system.%s.%s", component, event)
	return c.publish(subject, data)
}

// PublishHeartbeat publishes a component liveness event.
func (c *Client) PublishHeartbeat(msg *SystemMessage) error {
	return c.publish(SubjectHealth, msg)
}

// publish publishes a message to a subject
func (c *Client) publish(subject string, data interface{}) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err = c.js.Publish(subject, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	c.logger.Debugf("Published to %s", subject)
	return nil
}

// SubscribeRoutingResults subscribes to completed routing cycles; symbol may
// be empty for all symbols.
func (c *Client) SubscribeRoutingResults(symbol string, handler MessageHandler) (*Subscription, error) {
	if symbol == "" {
		return c.subscribe("routing.result.>", handler)
	}
	return c.subscribe(RoutingResultSubject(symbol), handler)
}

// SubscribeAllRouting subscribes to every routing event.
func (c *Client) SubscribeAllRouting(handler MessageHandler) (*Subscription, error) {
	return c.subscribe("routing.>", handler)
}

// subscribe creates a durable JetStream subscription.
func (c *Client) subscribe(subject string, handler MessageHandler) (*Subscription, error) {
	sub, err := c.js.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(msg.Subject, msg.Data); err != nil {
			c.logger.Errorf("Handler error for %s: %v", msg.Subject, err)
		}
		msg.Ack()
	}, nats.Durable(durableName(subject)))

	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	c.logger.Infof("Subscribed to %s", subject)

	return &Subscription{
		sub:    sub,
		logger: c.logger,
	}, nil
}

// durableName derives a valid durable name from a subject. Durable names
// must not contain dots or wildcards.
func durableName(subject string) string {
	r := strings.NewReplacer(".", "-", "*", "any", ">", "all")
	return "sor-" + r.Replace(subject)
}

// MessageHandler processes incoming messages
type MessageHandler func(subject string, data []byte) error

// Subscription wraps NATS subscription
type Subscription struct {
	sub    *nats.Subscription
	logger *logrus.Entry
}

// Unsubscribe removes the subscription
func (s *Subscription) Unsubscribe() error {
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	s.logger.Info("Unsubscribed")
	return nil
}
