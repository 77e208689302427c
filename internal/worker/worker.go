package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smart-audit/backend/internal/config"
	"github.com/smart-audit/backend/internal/logger"
)

// DefaultRetryDelay is the fixed back-off between broker connection attempts.
const DefaultRetryDelay = 5 * time.Second

// Worker is the long-running queue consumer. It connects to RabbitMQ,
// consumes one message at a time (prefetch 1 for fair dispatch across
// replicas), and retries the connection indefinitely on failure.
type Worker struct {
	cfg  *config.RabbitMQConfig
	proc *Processor
	log  *logger.Logger

	// RetryDelay is the pause between reconnection attempts.
	RetryDelay time.Duration

	// RequeueOnError controls acknowledgment policy. When false (the
	// default) every message is acked regardless of processing outcome:
	// there is no dead-letter path, and redelivering a message whose
	// processing errored would loop forever. Flipping this nacks with
	// requeue instead, for setups that add a dead-letter exchange.
	RequeueOnError bool
}

// New creates a Worker.
// Parameters:
//   - cfg: RabbitMQ connection settings and queue name.
//   - proc: per-message processor.
//   - log: logger for consumer diagnostics.
// Returns:
//   - *Worker: initialized worker.
func New(cfg *config.RabbitMQConfig, proc *Processor, log *logger.Logger) *Worker {
	return &Worker{
		cfg:        cfg,
		proc:       proc,
		log:        log.WithField(logger.FieldComponent, "worker"),
		RetryDelay: DefaultRetryDelay,
	}
}

// Run consumes until ctx is cancelled. Connection failures are retried
// forever at RetryDelay intervals; message-level failures are never retried
// here (see RequeueOnError).
// Parameters:
//   - ctx: cancellation stops consuming promptly.
// Returns:
//   - error: ctx.Err() on shutdown.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := w.consume(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			w.log.Info("Worker shutting down")
			return ctx.Err()
		}

		w.log.WithError(err).Errorf("Queue connection lost, retrying in %s", w.RetryDelay)
		select {
		case <-ctx.Done():
			w.log.Info("Worker shutting down")
			return ctx.Err()
		case <-time.After(w.RetryDelay):
		}
	}
}

// consume holds one connection for its lifetime and processes deliveries
// until the connection drops or ctx is cancelled.
func (w *Worker) consume(ctx context.Context) error {
	conn, err := amqp.Dial(w.cfg.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(w.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", w.cfg.Queue, err)
	}

	// Fair dispatch: one unacked message per consumer
	if err := channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := channel.Consume(w.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.log.WithField(logger.FieldQueue, w.cfg.Queue).Info("Waiting for messages")

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return fmt.Errorf("connection closed: %w", amqpErr)
			}
			return errors.New("connection closed")
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.handle(ctx, d)
		}
	}
}

// handle processes a delivery and acknowledges it according to policy.
// The default acks unconditionally, including on processing errors.
func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	err := w.proc.Process(ctx, d.Body)

	if err != nil && w.RequeueOnError {
		if nackErr := d.Nack(false, true); nackErr != nil {
			w.log.WithError(nackErr).Error("Failed to nack message")
		}
		return
	}
	if err != nil {
		w.log.WithError(err).Error("Message processing failed, acknowledging anyway")
	}
	if ackErr := d.Ack(false); ackErr != nil {
		w.log.WithError(ackErr).Error("Failed to ack message")
	}
}
