package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"verification-api/internal/utils"
)

const (
	Exchange = "credit_events"

	RoutingKeyIssued        = "credits.key.issued"
	RoutingKeyStatusChanged = "credits.key.status_changed"
)

// KeyIssued is published when a funded key is created. It never carries the
// key or its digest.
type KeyIssued struct {
	AccountID string    `json:"account_id"`
	Owner     string    `json:"owner"`
	Credits   int64     `json:"credits"`
	Source    string    `json:"source"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type KeyStatusChanged struct {
	AccountID string    `json:"account_id"`
	Active    bool      `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close()
}

// NoopPublisher is used when no broker is configured or reachable.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	utils.LogDebug("EventProducer", "Broker disabled, skipped %s", routingKey)
	return nil
}

func (NoopPublisher) Close() {}

type Producer struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func NewProducer(amqpURL string) (*Producer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	utils.LogSuccess("EventProducer", "Connected to RabbitMQ, exchange %s declared", Exchange)
	return &Producer{conn: conn, channel: ch}, nil
}

// NewPublisher returns a RabbitMQ producer, or the no-op publisher when the
// URL is empty or the broker cannot be reached.
func NewPublisher(amqpURL string) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		utils.LogInfo("EventProducer", "RABBITMQ_URL not set, events disabled")
		return NoopPublisher{}
	}
	producer, err := NewProducer(amqpURL)
	if err != nil {
		utils.LogError("EventProducer", "RabbitMQ unavailable, events disabled", err)
		return NoopPublisher{}
	}
	return producer
}

func (p *Producer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, Exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	utils.LogWarning("EventProducer", "Publish to %s failed, reopening channel: %v", routingKey, err)
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return chErr
	}
	p.channel = ch
	return p.channel.PublishWithContext(ctx, Exchange, routingKey, false, false, msg)
}

func (p *Producer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
