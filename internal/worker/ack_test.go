package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smart-audit/backend/internal/analysis"
	"github.com/smart-audit/backend/internal/config"
	"github.com/smart-audit/backend/internal/domain"
	"github.com/smart-audit/backend/internal/logger"
	"github.com/smart-audit/backend/internal/repository"
	"github.com/smart-audit/backend/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeAcknowledger struct {
	acks        int
	nacks       int
	rejects     int
	lastRequeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks++
	f.lastRequeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.rejects++
	return nil
}

func newTestWorker(proc *Processor) *Worker {
	return New(&config.RabbitMQConfig{Queue: "test_queue"}, proc, logger.New(nil))
}

// brokenRepo returns a repository whose every query fails, so Process
// surfaces an error without reaching a terminal state.
func brokenRepo(t *testing.T) *repository.JobRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "jobs.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.Close()
	return repository.NewJobRepository(db)
}

func TestHandleAcksExactlyOnce(t *testing.T) {
	f := newFixture(t, analysis.Outcome{Status: analysis.OutcomeCompleted, Data: domain.JSONMap{"x": float64(1)}})
	body := f.seedJob(t, "job-1")
	w := newTestWorker(f.proc)
	acker := &fakeAcknowledger{}

	w.handle(context.Background(), amqp.Delivery{Acknowledger: acker, Body: body})

	if acker.acks != 1 {
		t.Errorf("acks = %d, want exactly 1", acker.acks)
	}
	if acker.nacks != 0 || acker.rejects != 0 {
		t.Errorf("nacks = %d, rejects = %d, want 0, 0", acker.nacks, acker.rejects)
	}

	job, err := f.repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("status = %q, want COMPLETED", job.Status)
	}
}

// A message for an unknown job is dropped, and dropping still acks.
func TestHandleAcksUnknownJob(t *testing.T) {
	f := newFixture(t, analysis.Outcome{Status: analysis.OutcomeCompleted})
	w := newTestWorker(f.proc)
	acker := &fakeAcknowledger{}

	body, _ := json.Marshal(domain.JobMessage{JobID: "ghost", StoragePath: "/nope"})
	w.handle(context.Background(), amqp.Delivery{Acknowledger: acker, Body: body})

	if acker.acks != 1 {
		t.Errorf("acks = %d, want exactly 1", acker.acks)
	}
	if acker.nacks != 0 {
		t.Errorf("nacks = %d, want 0", acker.nacks)
	}
}

// Default policy: a processing error still acks, never nacks.
func TestHandleAcksOnProcessingError(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	gw := &fakeGateway{outcome: analysis.Outcome{Status: analysis.OutcomeCompleted}}
	proc := NewProcessor(brokenRepo(t), store, gw, logger.New(nil))
	w := newTestWorker(proc)
	acker := &fakeAcknowledger{}

	body, _ := json.Marshal(domain.JobMessage{JobID: "job-1", StoragePath: "/doc.pdf"})
	w.handle(context.Background(), amqp.Delivery{Acknowledger: acker, Body: body})

	if acker.acks != 1 {
		t.Errorf("acks = %d, want exactly 1", acker.acks)
	}
	if acker.nacks != 0 {
		t.Errorf("nacks = %d, want 0 (no dead-letter path by default)", acker.nacks)
	}
}

func TestHandleNacksWhenRequeueOnError(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	gw := &fakeGateway{outcome: analysis.Outcome{Status: analysis.OutcomeCompleted}}
	proc := NewProcessor(brokenRepo(t), store, gw, logger.New(nil))
	w := newTestWorker(proc)
	w.RequeueOnError = true
	acker := &fakeAcknowledger{}

	body, _ := json.Marshal(domain.JobMessage{JobID: "job-1", StoragePath: "/doc.pdf"})
	w.handle(context.Background(), amqp.Delivery{Acknowledger: acker, Body: body})

	if acker.nacks != 1 {
		t.Errorf("nacks = %d, want exactly 1", acker.nacks)
	}
	if !acker.lastRequeue {
		t.Error("nack requeue = false, want true")
	}
	if acker.acks != 0 {
		t.Errorf("acks = %d, want 0", acker.acks)
	}
}
