package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the persisted lifecycle of a processing job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ParseJobStatus validates a status reported by a backend.
func ParseJobStatus(value string) (JobStatus, error) {
	switch status := JobStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case JobProcessing, JobCompleted, JobFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown job status %q", value)
	}
}

// ErrNoFiles is returned when a job would be created without files.
var ErrNoFiles = errors.New("job requires at least one file")

// Job is one user-initiated processing run.
type Job struct {
	ID                string            `json:"id"`
	Files             []FileMetadata    `json:"files"`
	Options           ProcessingOptions `json:"options"`
	Status            JobStatus         `json:"status"`
	StartTime         time.Time         `json:"startTime"`
	EstimatedDuration int               `json:"estimatedDuration"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
	UpdatedAt         time.Time         `json:"updatedAt,omitzero"`
	// CancelledAt is set when the user cancels while the job is processing.
	// Status stays processing; the job is simply abandoned.
	CancelledAt time.Time `json:"cancelledAt,omitzero"`
}

// NewJob builds a job in the processing state. An empty id generates one.
func NewJob(id string, files []FileMetadata, opts ProcessingOptions, estimatedMinutes int, now time.Time) (Job, error) {
	if len(files) == 0 {
		return Job{}, ErrNoFiles
	}
	if err := opts.Validate(); err != nil {
		return Job{}, err
	}
	if strings.TrimSpace(id) == "" {
		id = NewJobID(now)
	}
	return Job{
		ID:                id,
		Files:             append([]FileMetadata(nil), files...),
		Options:           opts,
		Status:            JobProcessing,
		StartTime:         now.UTC(),
		EstimatedDuration: estimatedMinutes,
		UpdatedAt:         now.UTC(),
	}, nil
}

// NewJobID returns an id of the form job_<unix-ms>_<9 random chars>.
func NewJobID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("job_%d_%s", now.UnixMilli(), suffix)
}

// Cancelled reports whether the user abandoned the job before it finished.
func (j Job) Cancelled() bool {
	return !j.CancelledAt.IsZero() && !j.Status.IsTerminal()
}

// PrimaryFile returns the first file of the job, used for display.
func (j Job) PrimaryFile() (FileMetadata, bool) {
	if len(j.Files) == 0 {
		return FileMetadata{}, false
	}
	return j.Files[0], true
}

// TotalSize sums the sizes of every file in the job.
func (j Job) TotalSize() int64 {
	var total int64
	for _, f := range j.Files {
		total += f.Size
	}
	return total
}
