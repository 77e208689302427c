package queue

import (
	"context"
	"testing"

	"github.com/smart-audit/backend/internal/config"
	"github.com/smart-audit/backend/internal/domain"
	"github.com/smart-audit/backend/internal/logger"
)

// Publish must degrade to false when no broker is reachable; the submission
// path depends on this never failing hard.
func TestPublishUnreachableBrokerReturnsFalse(t *testing.T) {
	cfg := &config.RabbitMQConfig{
		Host:     "127.0.0.1",
		Port:     1, // nothing listens here
		User:     "guest",
		Password: "guest",
		Queue:    "test_queue",
	}
	p := NewPublisher(cfg, logger.New(nil))
	defer p.Close()

	ok := p.Publish(context.Background(), &domain.JobMessage{
		JobID:       "job-1",
		StoragePath: "/tmp/job-1.pdf",
	})
	if ok {
		t.Error("Publish() = true with unreachable broker, want false")
	}
}

func TestConnectUnreachableBrokerError(t *testing.T) {
	cfg := &config.RabbitMQConfig{Host: "127.0.0.1", Port: 1, User: "guest", Password: "guest", Queue: "q"}
	p := NewPublisher(cfg, logger.New(nil))
	defer p.Close()

	if err := p.Connect(); err == nil {
		t.Error("Connect() = nil error with unreachable broker")
	}
}
