package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const exchangeName = "skilleval.sessions"

type Publisher interface {
	PublishSessionStarted(ctx context.Context, s *model.TestSession) error
	PublishSessionCompleted(ctx context.Context, s *model.TestSession) error
	Close() error
}

type EventPublisher struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	enabled bool
	log     zerolog.Logger
}

// NewEventPublisher connects to RabbitMQ and declares the session exchange.
// An empty URI yields a publisher that drops every event.
func NewEventPublisher(rabbitURI string, log zerolog.Logger) (*EventPublisher, error) {
	log = log.With().Str("component", "event_publisher").Logger()
	if rabbitURI == "" {
		log.Warn().Msg("AMQP URL is empty, event publishing is disabled")
		return &EventPublisher{enabled: false, log: log}, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info().Str("exchange", exchangeName).Msg("Event publisher connected")
	return &EventPublisher{
		conn:    conn,
		channel: channel,
		enabled: true,
		log:     log,
	}, nil
}

func (p *EventPublisher) publishEvent(ctx context.Context, routingKey EventType, event any) error {
	if !p.enabled {
		p.log.Debug().Str("routing_key", string(routingKey)).Msg("Event publishing disabled, skipping")
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(
		pubCtx,
		exchangeName,       // exchange
		string(routingKey), // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.log.Debug().Str("routing_key", string(routingKey)).Msg("Published event")
	return nil
}

func (p *EventPublisher) PublishSessionStarted(ctx context.Context, s *model.TestSession) error {
	return p.publishEvent(ctx, EventTypeSessionStarted, NewSessionStartedEvent(s))
}

func (p *EventPublisher) PublishSessionCompleted(ctx context.Context, s *model.TestSession) error {
	return p.publishEvent(ctx, EventTypeSessionCompleted, NewSessionCompletedEvent(s))
}

func (p *EventPublisher) Close() error {
	if !p.enabled {
		return nil
	}

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Warn().Err(err).Msg("Error closing RabbitMQ channel")
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}

	return nil
}
