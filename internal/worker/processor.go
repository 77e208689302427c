package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smart-audit/backend/internal/analysis"
	"github.com/smart-audit/backend/internal/domain"
	"github.com/smart-audit/backend/internal/logger"
	"github.com/smart-audit/backend/internal/repository"
	"github.com/smart-audit/backend/internal/storage"
)

// Gateway is the processor's view of the remote analysis service.
type Gateway interface {
	Analyze(ctx context.Context, data []byte) analysis.Outcome
}

// Processor drives one consumed message through the job state machine:
// PENDING -> PROCESSING -> {COMPLETED, FAILED}. It owns all job writes after
// creation; per-job ordering is enforced by its sequential updates.
type Processor struct {
	jobs    *repository.JobRepository
	store   storage.DocumentStore
	gateway Gateway
	log     *logger.Logger
}

// NewProcessor creates a Processor.
// Parameters:
//   - jobs: job repository.
//   - store: document storage backend holding the uploaded files.
//   - gateway: remote analysis gateway.
//   - log: logger for processing diagnostics.
// Returns:
//   - *Processor: initialized processor.
func NewProcessor(jobs *repository.JobRepository, store storage.DocumentStore, gateway Gateway, log *logger.Logger) *Processor {
	return &Processor{
		jobs:    jobs,
		store:   store,
		gateway: gateway,
		log:     log.WithField(logger.FieldComponent, "worker"),
	}
}

// Process handles a single queue message. The returned error reports what
// went wrong for policy decisions upstream; the caller acknowledges the
// message regardless unless its requeue policy says otherwise. A message for
// an unknown job is an idempotent no-op.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - body: raw message payload.
// Returns:
//   - error: non-nil on unexpected failures; the job (if resolvable) has
//     already been marked FAILED by then.
func (p *Processor) Process(ctx context.Context, body []byte) error {
	var msg domain.JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// Unparseable payloads are dropped; redelivery could never succeed
		p.log.WithError(err).Error("Dropping malformed job message")
		return nil
	}

	log := p.log.WithField(logger.FieldJobID, msg.JobID)
	log.Info("Processing job")

	job, err := p.jobs.GetByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			log.Warn("Job not found in store, dropping message")
			return nil
		}
		return fmt.Errorf("failed to load job %s: %w", msg.JobID, err)
	}

	// Persist PROCESSING before the remote call so in-flight work is
	// observable to status pollers. A crash from here on leaves the job in
	// PROCESSING; recovery is manual resubmission.
	if err := p.jobs.UpdateStatus(ctx, job.JobID, domain.JobStatusProcessing, nil, ""); err != nil {
		p.markFailed(ctx, job.JobID, fmt.Sprintf("failed to mark processing: %v", err))
		return fmt.Errorf("failed to mark job %s processing: %w", job.JobID, err)
	}

	exists, err := p.store.Exists(ctx, job.StoragePath)
	if err != nil {
		p.markFailed(ctx, job.JobID, fmt.Sprintf("storage check failed: %v", err))
		return fmt.Errorf("storage check for job %s: %w", job.JobID, err)
	}
	if !exists {
		log.WithField("path", job.StoragePath).Error("Document missing from storage")
		p.markFailed(ctx, job.JobID, fmt.Sprintf("file not found: %s", job.StoragePath))
		return nil
	}

	data, err := p.store.Read(ctx, job.StoragePath)
	if err != nil {
		p.markFailed(ctx, job.JobID, fmt.Sprintf("failed to read document: %v", err))
		return fmt.Errorf("read document for job %s: %w", job.JobID, err)
	}

	log.WithField(logger.FieldSize, len(data)).Info("Sending document for analysis")
	outcome := p.gateway.Analyze(ctx, data)

	switch outcome.Status {
	case analysis.OutcomeCompleted:
		if err := p.jobs.UpdateStatus(ctx, job.JobID, domain.JobStatusCompleted, outcome.Data, ""); err != nil {
			return fmt.Errorf("failed to complete job %s: %w", job.JobID, err)
		}
		logger.With(logger.Fields{
			logger.FieldDurationMs: outcome.ProcessingTime.Milliseconds(),
		}).Info(ctx, "Job %s completed", job.JobID)
	case analysis.OutcomeSkipped:
		// Unconfigured analysis is not a job failure
		result := domain.JSONMap{"message": "analysis not configured", "raw_data": nil}
		if err := p.jobs.UpdateStatus(ctx, job.JobID, domain.JobStatusCompleted, result, ""); err != nil {
			return fmt.Errorf("failed to complete job %s: %w", job.JobID, err)
		}
		log.Info("Job completed, analysis skipped")
	default:
		errMsg := outcome.Err
		if errMsg == "" {
			errMsg = "unknown error"
		}
		p.markFailed(ctx, job.JobID, errMsg)
		log.WithField("reason", errMsg).Error("Job failed")
	}

	return nil
}

// markFailed records a terminal failure, logging rather than propagating a
// write error since the caller is already on a failure path.
func (p *Processor) markFailed(ctx context.Context, jobID, errMsg string) {
	if err := p.jobs.UpdateStatus(ctx, jobID, domain.JobStatusFailed, nil, errMsg); err != nil {
		p.log.WithError(err).WithField(logger.FieldJobID, jobID).Error("Failed to record job failure")
	}
}
