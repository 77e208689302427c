package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/smart-audit/backend/internal/domain"
	"github.com/smart-audit/backend/internal/logger"
	"github.com/smart-audit/backend/internal/repository"
	"github.com/smart-audit/backend/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakePublisher struct {
	ok       bool
	messages []*domain.JobMessage
}

func (f *fakePublisher) Publish(ctx context.Context, msg *domain.JobMessage) bool {
	f.messages = append(f.messages, msg)
	return f.ok
}

func newTestService(t *testing.T, pub *fakePublisher) (*DocumentService, *repository.JobRepository) {
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
	return NewDocumentService(repo, store, pub, logger.New(nil)), repo
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	pub := &fakePublisher{ok: true}
	svc, repo := newTestService(t, pub)
	ctx := context.Background()

	content := []byte("%PDF-1.4")
	res, err := svc.Submit(ctx, "invoice.pdf", bytes.NewReader(content), int64(len(content)), "HDFC Bank", "2024-25")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if res.Status != domain.JobStatusPending {
		t.Errorf("status = %q, want PENDING", res.Status)
	}
	if !res.Queued {
		t.Error("queued = false, want true")
	}

	job, err := repo.GetByID(ctx, res.JobID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if job.OriginalFilename != "invoice.pdf" {
		t.Errorf("filename = %q, want invoice.pdf", job.OriginalFilename)
	}
	if job.LedgerName != "HDFC Bank" || job.FinancialYear != "2024-25" {
		t.Errorf("context = %q/%q", job.LedgerName, job.FinancialYear)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.JobID != res.JobID || msg.StoragePath != job.StoragePath {
		t.Errorf("message = %+v, want job fields", msg)
	}
}

// A queue outage degrades to queued=false; the job stays PENDING and the
// submission still succeeds.
func TestSubmitQueueUnavailable(t *testing.T) {
	pub := &fakePublisher{ok: false}
	svc, repo := newTestService(t, pub)
	ctx := context.Background()

	res, err := svc.Submit(ctx, "doc.pdf", bytes.NewReader([]byte("x")), 1, "", "")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Queued {
		t.Error("queued = true, want false")
	}

	job, err := repo.GetByID(ctx, res.JobID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if job.Status != domain.JobStatusPending {
		t.Errorf("status = %q, want PENDING (no automatic transition)", job.Status)
	}
}

func TestSubmitIndependentDocuments(t *testing.T) {
	pub := &fakePublisher{ok: true}
	svc, _ := newTestService(t, pub)
	ctx := context.Background()

	first, err := svc.Submit(ctx, "a.pdf", bytes.NewReader([]byte("a")), 1, "", "")
	if err != nil {
		t.Fatalf("Submit(a) error: %v", err)
	}
	second, err := svc.Submit(ctx, "b.pdf", bytes.NewReader([]byte("b")), 1, "", "")
	if err != nil {
		t.Fatalf("Submit(b) error: %v", err)
	}
	if first.JobID == second.JobID {
		t.Error("job ids collide")
	}
}
