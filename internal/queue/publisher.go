package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smart-audit/backend/internal/config"
	"github.com/smart-audit/backend/internal/domain"
	"github.com/smart-audit/backend/internal/logger"
)

// JobPublisher is the submission path's view of the queue channel.
// Publish is best-effort: a false return means the job was not queued, which
// callers report but never escalate.
type JobPublisher interface {
	Publish(ctx context.Context, msg *domain.JobMessage) bool
}

// Publisher manages a RabbitMQ connection and publishes job messages to a
// durable queue. It is constructed once at process start and shared; a lost
// connection is re-established lazily on the next Publish call, never in the
// background.
type Publisher struct {
	cfg *config.RabbitMQConfig
	log *logger.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher creates a Publisher. It does not connect; call Connect at
// startup to surface broker availability early, or let the first Publish do it.
// Parameters:
//   - cfg: RabbitMQ connection settings and queue name.
//   - log: logger for connection and publish diagnostics.
// Returns:
//   - *Publisher: initialized publisher.
func NewPublisher(cfg *config.RabbitMQConfig, log *logger.Logger) *Publisher {
	return &Publisher{
		cfg: cfg,
		log: log.WithField(logger.FieldComponent, "queue"),
	}
}

// Connect establishes the connection and declares the durable queue.
// Parameters: none.
// Returns:
//   - error: non-nil if the broker is unreachable or the declare fails.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked()
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.cfg.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// Idempotent declare; the queue survives broker restarts
	if _, err := channel.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare queue %s: %w", p.cfg.Queue, err)
	}

	p.conn = conn
	p.channel = channel
	p.log.WithFields(logger.Fields{
		"host":            p.cfg.Host,
		"port":            p.cfg.Port,
		logger.FieldQueue: p.cfg.Queue,
	}).Info("Connected to RabbitMQ")
	return nil
}

// Publish sends a job message to the queue as a persistent JSON payload.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - msg: job message to enqueue.
// Returns:
//   - bool: true if the message reached the broker; false on any failure.
func (p *Publisher) Publish(ctx context.Context, msg *domain.JobMessage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.conn == nil || p.conn.IsClosed() {
		p.log.Warn("RabbitMQ not connected, attempting to reconnect")
		if err := p.connectLocked(); err != nil {
			p.log.WithError(err).Error("Failed to reconnect to RabbitMQ")
			return false
		}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		p.log.WithError(err).WithField(logger.FieldJobID, msg.JobID).Error("Failed to encode job message")
		return false
	}

	err = p.channel.PublishWithContext(ctx, "", p.cfg.Queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
	})
	if err != nil {
		p.log.WithError(err).WithField(logger.FieldJobID, msg.JobID).Error("Failed to publish job")
		return false
	}

	p.log.WithField(logger.FieldJobID, msg.JobID).Info("Published job to queue")
	return true
}

// Close shuts down the channel and connection. Safe to call when never
// connected.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.WithError(err).Warn("Error closing RabbitMQ channel")
		}
		p.channel = nil
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			p.log.WithError(err).Warn("Error closing RabbitMQ connection")
		}
	}
	p.conn = nil
}
