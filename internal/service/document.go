package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/smart-audit/backend/internal/domain"
	"github.com/smart-audit/backend/internal/logger"
	"github.com/smart-audit/backend/internal/queue"
	"github.com/smart-audit/backend/internal/repository"
	"github.com/smart-audit/backend/internal/storage"
)

// SubmitResult is the per-document outcome of a submission.
type SubmitResult struct {
	JobID    string           `json:"job_id"`
	Filename string           `json:"filename"`
	Status   domain.JobStatus `json:"status"`
	Queued   bool             `json:"queued"`
}

// DocumentService handles document intake: it saves the uploaded file,
// creates the PENDING job row, and hands the job to the queue. Queue
// publication is best-effort; a store failure aborts the document and rolls
// back the saved file.
type DocumentService struct {
	jobs      *repository.JobRepository
	store     storage.DocumentStore
	publisher queue.JobPublisher
	log       *logger.Logger
}

// NewDocumentService creates a DocumentService.
// Parameters:
//   - jobs: job repository.
//   - store: document storage backend.
//   - publisher: queue publisher; best-effort.
//   - log: logger for submission diagnostics.
// Returns:
//   - *DocumentService: initialized service.
func NewDocumentService(jobs *repository.JobRepository, store storage.DocumentStore, publisher queue.JobPublisher, log *logger.Logger) *DocumentService {
	return &DocumentService{
		jobs:      jobs,
		store:     store,
		publisher: publisher,
		log:       log.WithField(logger.FieldComponent, "submission"),
	}
}

// Submit processes one uploaded document: generate id, persist the file,
// create the job row, publish the queue message. A publish failure is
// reported in the result (Queued=false) but never fails the submission.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filename: original filename of the upload.
//   - reader: document content.
//   - size: content length in bytes.
//   - ledgerName, financialYear: optional caller-supplied context, opaque here.
// Returns:
//   - *SubmitResult: job id, status, and queued flag.
//   - error: non-nil if the file save or job row creation fails.
func (s *DocumentService) Submit(ctx context.Context, filename string, reader io.Reader, size int64, ledgerName, financialYear string) (*SubmitResult, error) {
	jobID := uuid.New().String()
	storageKey := jobID + filepath.Ext(filename)

	storagePath, err := s.store.Save(ctx, storageKey, reader, size)
	if err != nil {
		return nil, fmt.Errorf("failed to save document %s: %w", filename, err)
	}

	job := &domain.Job{
		JobID:            jobID,
		OriginalFilename: filename,
		StoragePath:      storagePath,
		LedgerName:       ledgerName,
		FinancialYear:    financialYear,
		Status:           domain.JobStatusPending,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		// The file must not outlive a failed row write
		if delErr := s.store.Delete(ctx, storagePath); delErr != nil {
			s.log.WithError(delErr).WithField(logger.FieldJobID, jobID).Warn("Failed to roll back saved document")
		}
		return nil, fmt.Errorf("failed to create job for %s: %w", filename, err)
	}

	queued := s.publisher.Publish(ctx, &domain.JobMessage{
		JobID:         jobID,
		StoragePath:   storagePath,
		LedgerName:    ledgerName,
		FinancialYear: financialYear,
	})
	if !queued {
		s.log.WithField(logger.FieldJobID, jobID).Warn("Job saved but not queued, broker may be unavailable")
	}

	return &SubmitResult{
		JobID:    jobID,
		Filename: filename,
		Status:   job.Status,
		Queued:   queued,
	}, nil
}
