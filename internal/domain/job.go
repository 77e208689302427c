package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// JobStatus represents the processing state of a document job.
// Values include JobStatusPending, JobStatusProcessing, JobStatusCompleted,
// and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// ParseJobStatus converts a string into a JobStatus.
// Parameters:
//   - s: status string (case-insensitive).
// Returns:
//   - JobStatus: matching status value.
//   - bool: false if s is not a recognized status.
func ParseJobStatus(s string) (JobStatus, bool) {
	switch JobStatus(strings.ToUpper(s)) {
	case JobStatusPending:
		return JobStatusPending, true
	case JobStatusProcessing:
		return JobStatusProcessing, true
	case JobStatusCompleted:
		return JobStatusCompleted, true
	case JobStatusFailed:
		return JobStatusFailed, true
	}
	return "", false
}

// IsTerminal reports whether the status is COMPLETED or FAILED.
// A job in a terminal status never transitions again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JSONMap is a custom type for storing JSON objects as text in the database.
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the map.
//   - error: non-nil if marshaling fails.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSONMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// Job represents a document processing job.
// Each uploaded file gets a Job record that tracks its progress through the
// async pipeline (upload -> queue -> worker -> result). Rows are created by
// the submission path in PENDING and mutated only by the worker afterwards.
type Job struct {
	JobID            string    `gorm:"type:text;primaryKey" json:"job_id"`
	OriginalFilename string    `gorm:"type:text;not null" json:"filename"`
	StoragePath      string    `gorm:"type:text;not null" json:"storage_path"`
	LedgerName       string    `gorm:"type:text" json:"ledger_name,omitempty"`
	FinancialYear    string    `gorm:"type:text" json:"financial_year,omitempty"`
	Status           JobStatus `gorm:"type:text;index:idx_jobs_status;default:PENDING" json:"status"`
	ResultData       JSONMap   `gorm:"type:text" json:"result,omitempty"`
	ErrorMessage     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt        time.Time `gorm:"index:idx_jobs_created_at" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "jobs"
}
