package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/criteria-it/servicedesk-copilot/internal/events"
)

// Meta describes an emitted console event.
type Meta struct {
	CorrelationID *string   `json:"correlation_id,omitempty"`
	ID            string    `json:"id"`
	Producer      *string   `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	// Type is the event name and version, e.g. console.reply_sent.v1.
	Type string `json:"type"`
}

// Envelope is the wire form of every published event.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// Publisher sends envelopes under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, msg Envelope) error
	Close() error
}

// RoutingKey is the topic key for an event type.
func RoutingKey(t events.EventType) string {
	return "console." + string(t) + ".v1"
}

// EnvelopeFor wraps event for publication. The session id doubles as the
// correlation id so one browser's activity can be followed downstream.
func EnvelopeFor(event events.Event, producer string) Envelope {
	meta := Meta{
		ID:   event.ID,
		Time: event.Timestamp,
		Type: RoutingKey(event.Type),
	}
	if producer != "" {
		meta.Producer = &producer
	}
	if event.SessionID != "" {
		sid := event.SessionID
		meta.CorrelationID = &sid
	}
	return Envelope{Meta: meta, Data: event}
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes to a durable topic exchange, one channel per message.
type AMQPPublisher struct {
	exchange string
	logger   *zap.Logger
	open     func() (channel, error)
	close    func() error
}

// NewAMQPPublisher dials url and declares exchange.
func NewAMQPPublisher(url, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{
		exchange: exchange,
		logger:   logger,
		open: func() (channel, error) {
			return conn.Channel()
		},
		close: conn.Close,
	}, nil
}

// Publish sends msg as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, key string, msg Envelope) error {
	ch, err := p.open()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	msgID := msg.Meta.ID
	if msgID == "" {
		msgID = uuid.NewString()
	}
	cid := msgID
	if msg.Meta.CorrelationID != nil {
		cid = *msg.Meta.CorrelationID
	}

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msgID,
		CorrelationId: cid,
		Timestamp:     msg.Meta.Time,
		Body:          body,
	})
	if err == nil {
		p.logger.Debug("published", zap.String("key", key), zap.String("exchange", p.exchange))
	}
	return err
}

func (p *AMQPPublisher) Close() error {
	return p.close()
}

// NoopPublisher drops messages. It stands in when no broker is configured.
type NoopPublisher struct {
	logger *zap.Logger
}

func NewNoop(logger *zap.Logger) Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, key string, _ Envelope) error {
	p.logger.Debug("publisher disabled, skipped publish", zap.String("key", key))
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
