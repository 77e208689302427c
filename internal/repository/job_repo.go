package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smart-audit/backend/internal/domain"
	"gorm.io/gorm"
)

// ErrJobNotFound is returned when a job lookup matches no row.
var ErrJobNotFound = errors.New("job not found")

// DefaultListLimit caps job listings when the caller supplies no limit.
const DefaultListLimit = 50

// JobRepository handles job data operations. It is the sole source of truth
// for job status queries; after creation only the worker writes to a row.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job identifier.
// Returns:
//   - *domain.Job: job record if found.
//   - error: ErrJobNotFound if no row matches, other errors on query failure.
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// List retrieves jobs newest-first, optionally filtered by status.
// An empty or unrecognized status filter is ignored rather than rejected.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - statusFilter: raw status string from the caller; may be empty.
//   - limit: maximum number of records; non-positive uses DefaultListLimit.
// Returns:
//   - []domain.Job: matching job records.
//   - error: non-nil if the query fails.
func (r *JobRepository) List(ctx context.Context, statusFilter string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := r.db.WithContext(ctx).Order("created_at DESC")
	if statusFilter != "" {
		if status, ok := domain.ParseJobStatus(statusFilter); ok {
			query = query.Where("status = ?", status)
		}
	}

	var jobs []domain.Job
	if err := query.Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateStatus transitions a job to a new status and records the outcome in
// a single row write. Result and errMsg may be nil/empty for the
// PROCESSING transition.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job identifier.
//   - status: new job status.
//   - result: analysis payload for COMPLETED; nil otherwise.
//   - errMsg: failure cause for FAILED; empty otherwise.
// Returns:
//   - error: ErrJobNotFound if no row matches, other errors on write failure.
func (r *JobRepository) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, result domain.JSONMap, errMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if result != nil {
		updates["result_data"] = result
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}

	res := r.db.WithContext(ctx).Model(&domain.Job{}).Where("job_id = ?", jobID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// CountByStatus counts jobs in the given status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: job status to count.
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *JobRepository) CountByStatus(ctx context.Context, status domain.JobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Job{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
