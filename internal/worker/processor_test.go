package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/smart-audit/backend/internal/analysis"
	"github.com/smart-audit/backend/internal/domain"
	"github.com/smart-audit/backend/internal/logger"
	"github.com/smart-audit/backend/internal/repository"
	"github.com/smart-audit/backend/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeGateway struct {
	outcome analysis.Outcome
	calls   int
	// statuses observed in the job row at call time
	observed []domain.JobStatus
	jobs     *repository.JobRepository
	jobID    string
}

func (f *fakeGateway) Analyze(ctx context.Context, data []byte) analysis.Outcome {
	f.calls++
	if f.jobs != nil && f.jobID != "" {
		if job, err := f.jobs.GetByID(ctx, f.jobID); err == nil {
			f.observed = append(f.observed, job.Status)
		}
	}
	return f.outcome
}

type fixture struct {
	proc    *Processor
	repo    *repository.JobRepository
	store   *storage.LocalStore
	gateway *fakeGateway
}

func newFixture(t *testing.T, outcome analysis.Outcome) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "jobs.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.Job{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	repo := repository.NewJobRepository(db)
	gw := &fakeGateway{outcome: outcome, jobs: repo}
	return &fixture{
		proc:    NewProcessor(repo, store, gw, logger.New(nil)),
		repo:    repo,
		store:   store,
		gateway: gw,
	}
}

// seedJob creates a PENDING job with a stored document and returns its message.
func (f *fixture) seedJob(t *testing.T, jobID string) []byte {
	t.Helper()
	ctx := context.Background()

	path, err := f.store.Save(ctx, jobID+".pdf", bytes.NewReader([]byte("%PDF-1.4")), 8)
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	job := &domain.Job{
		JobID:            jobID,
		OriginalFilename: "doc.pdf",
		StoragePath:      path,
		Status:           domain.JobStatusPending,
		CreatedAt:        time.Now().UTC(),
	}
	if err := f.repo.Create(ctx, job); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	f.gateway.jobID = jobID

	body, _ := json.Marshal(domain.JobMessage{JobID: jobID, StoragePath: path})
	return body
}

func TestProcessCompleted(t *testing.T) {
	payload := domain.JSONMap{"x": float64(1)}
	f := newFixture(t, analysis.Outcome{Status: analysis.OutcomeCompleted, Data: payload})
	body := f.seedJob(t, "job-1")

	if err := f.proc.Process(context.Background(), body); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	job, err := f.repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("status = %q, want COMPLETED", job.Status)
	}
	if job.ResultData["x"] != float64(1) {
		t.Errorf("result_data = %v, want {x:1}", job.ResultData)
	}

	// The gateway must have observed PROCESSING persisted before the call
	if len(f.gateway.observed) != 1 || f.gateway.observed[0] != domain.JobStatusProcessing {
		t.Errorf("status at analyze time = %v, want [PROCESSING]", f.gateway.observed)
	}
}

func TestProcessSkippedCompletesJob(t *testing.T) {
	f := newFixture(t, analysis.Outcome{Status: analysis.OutcomeSkipped, Err: "analysis not configured"})
	body := f.seedJob(t, "job-1")

	if err := f.proc.Process(context.Background(), body); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	job, _ := f.repo.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("status = %q, want COMPLETED (skip is not a failure)", job.Status)
	}
	if job.ResultData["message"] != "analysis not configured" {
		t.Errorf("result_data = %v, want skip payload", job.ResultData)
	}
	if job.ErrorMessage != "" {
		t.Errorf("error_message = %q, want empty", job.ErrorMessage)
	}
}

func TestProcessAnalysisFailure(t *testing.T) {
	f := newFixture(t, analysis.Outcome{Status: analysis.OutcomeFailed, Err: "timeout after 300s"})
	body := f.seedJob(t, "job-1")

	if err := f.proc.Process(context.Background(), body); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	job, _ := f.repo.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusFailed {
		t.Errorf("status = %q, want FAILED", job.Status)
	}
	if job.ErrorMessage != "timeout after 300s" {
		t.Errorf("error_message = %q, want timeout message", job.ErrorMessage)
	}
}

func TestProcessMissingDocument(t *testing.T) {
	f := newFixture(t, analysis.Outcome{Status: analysis.OutcomeCompleted})
	body := f.seedJob(t, "job-1")

	// Remove the document before processing
	job, _ := f.repo.GetByID(context.Background(), "job-1")
	if err := f.store.Delete(context.Background(), job.StoragePath); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if err := f.proc.Process(context.Background(), body); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	job, _ = f.repo.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusFailed {
		t.Errorf("status = %q, want FAILED", job.Status)
	}
	if f.gateway.calls != 0 {
		t.Errorf("gateway calls = %d, want 0 (remote call skipped)", f.gateway.calls)
	}
}

// Consuming a message for an unknown job is a no-op: no error, no row created.
func TestProcessUnknownJobIsNoop(t *testing.T) {
	f := newFixture(t, analysis.Outcome{Status: analysis.OutcomeCompleted})

	body, _ := json.Marshal(domain.JobMessage{JobID: "ghost", StoragePath: "/nope"})
	if err := f.proc.Process(context.Background(), body); err != nil {
		t.Fatalf("Process() error: %v, want nil", err)
	}

	if _, err := f.repo.GetByID(context.Background(), "ghost"); err != repository.ErrJobNotFound {
		t.Errorf("job was created for unknown id, err = %v", err)
	}
	if f.gateway.calls != 0 {
		t.Errorf("gateway calls = %d, want 0", f.gateway.calls)
	}
}

func TestProcessMalformedMessage(t *testing.T) {
	f := newFixture(t, analysis.Outcome{Status: analysis.OutcomeCompleted})

	if err := f.proc.Process(context.Background(), []byte("not json")); err != nil {
		t.Errorf("Process() error: %v, want nil (dropped)", err)
	}
}
