package event

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/infrastructure/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrBrokerUnavailable is returned while the breaker is open
var ErrBrokerUnavailable = errors.New("broker unavailable")

// Channel is the subset of *amqp.Channel the forwarder uses
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPForwarder relays change facts to a topic exchange.
// It subscribes to every event type on the in-process bus.
type AMQPForwarder struct {
	ch         Channel
	conn       io.Closer
	exchange   string
	prefix     string
	timeout    time.Duration
	serializer *EventSerializer
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// DialAMQPForwarder connects to the broker named by cfg.URL
func DialAMQPForwarder(cfg config.BrokerConfig, serializer *EventSerializer, logger *zap.Logger) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	f, err := NewAMQPForwarder(ch, cfg, serializer, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	f.conn = conn
	return f, nil
}

// NewAMQPForwarder declares the exchange on ch and returns a forwarder publishing to it
func NewAMQPForwarder(ch Channel, cfg config.BrokerConfig, serializer *EventSerializer, logger *zap.Logger) (*AMQPForwarder, error) {
	err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	f := &AMQPForwarder{
		ch:         ch,
		exchange:   cfg.Exchange,
		prefix:     cfg.RoutingPrefix,
		timeout:    cfg.PublishAfter,
		serializer: serializer,
		logger:     logger,
	}
	if f.timeout <= 0 {
		f.timeout = 5 * time.Second
	}

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "amqp-" + cfg.Exchange,
		MaxRequests: cfg.HalfOpenMax,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("broker circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return f, nil
}

// RoutingKey returns the routing key for eventType
func (f *AMQPForwarder) RoutingKey(eventType string) string {
	if f.prefix == "" {
		return eventType
	}
	return f.prefix + "." + eventType
}

// EventTypes subscribes the forwarder to every event
func (f *AMQPForwarder) EventTypes() []string {
	return nil
}

// Handle publishes ev as a persistent JSON message
func (f *AMQPForwarder) Handle(ctx context.Context, ev shared.DomainEvent) error {
	body, err := f.serializer.Serialize(ev)
	if err != nil {
		return err
	}
	key := f.RoutingKey(ev.EventType())

	_, err = f.breaker.Execute(func() (interface{}, error) {
		pubCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		return nil, f.ch.PublishWithContext(pubCtx, f.exchange, key, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.EventID().String(),
			Type:         ev.EventType(),
			Timestamp:    ev.OccurredAt(),
			Body:         body,
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrBrokerUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	f.logger.Debug("event forwarded",
		zap.String("event_id", ev.EventID().String()),
		zap.String("routing_key", key),
	)
	return nil
}

// State returns the breaker state (closed, half-open, open)
func (f *AMQPForwarder) State() string {
	return f.breaker.State().String()
}

// Close closes the channel and, when dialed, the connection
func (f *AMQPForwarder) Close() error {
	err := f.ch.Close()
	if f.conn != nil {
		err = errors.Join(err, f.conn.Close())
	}
	return err
}

var _ shared.EventHandler = (*AMQPForwarder)(nil)
