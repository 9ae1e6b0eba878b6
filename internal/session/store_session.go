package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"minimill/internal/domain"
)

var (
	// ErrJobNotFound is returned when a job record is missing.
	ErrJobNotFound = errors.New("job record not found")
	// ErrNoCurrentJob is returned when the session has no current job id.
	ErrNoCurrentJob = errors.New("no current job")
	// ErrEmptySessionID is returned for calls without a session id.
	ErrEmptySessionID = errors.New("session id is empty")
)

// State is the explicit snapshot of one session that a stage loads on entry.
type State struct {
	ID           string                   `json:"id"`
	Files        []domain.FileMetadata    `json:"files"`
	Options      domain.ProcessingOptions `json:"options"`
	CurrentJobID string                   `json:"currentJobId,omitempty"`
}

// HasFiles reports whether at least one file is selected.
func (s State) HasFiles() bool { return len(s.Files) > 0 }

// Load reads every piece of session state in one call.
func (s *Store) Load(ctx context.Context, sid string) (State, error) {
	files, err := s.LoadFiles(ctx, sid)
	if err != nil {
		return State{}, err
	}
	opts, err := s.LoadOptions(ctx, sid)
	if err != nil {
		return State{}, err
	}
	jobID, err := s.CurrentJobID(ctx, sid)
	if err != nil && !errors.Is(err, ErrNoCurrentJob) {
		return State{}, err
	}
	return State{ID: sid, Files: files, Options: opts, CurrentJobID: jobID}, nil
}

// SaveFiles replaces the selected file list.
func (s *Store) SaveFiles(ctx context.Context, sid string, files []domain.FileMetadata) error {
	if files == nil {
		files = []domain.FileMetadata{}
	}
	return s.putJSON(ctx, sid, keySelectedFiles, files)
}

// LoadFiles returns the selected files, or an empty list when none are saved.
func (s *Store) LoadFiles(ctx context.Context, sid string) ([]domain.FileMetadata, error) {
	files := []domain.FileMetadata{}
	if _, err := s.getJSON(ctx, sid, keySelectedFiles, &files); err != nil {
		return nil, err
	}
	if files == nil {
		files = []domain.FileMetadata{}
	}
	return files, nil
}

// SaveOptions persists the processing options after validating them.
func (s *Store) SaveOptions(ctx context.Context, sid string, opts domain.ProcessingOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	return s.putJSON(ctx, sid, keyProcessingOptions, opts)
}

// LoadOptions returns the saved options, or the store defaults when absent or
// unreadable.
func (s *Store) LoadOptions(ctx context.Context, sid string) (domain.ProcessingOptions, error) {
	var opts domain.ProcessingOptions
	found, err := s.getJSON(ctx, sid, keyProcessingOptions, &opts)
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return s.defaults, nil
		}
		return domain.ProcessingOptions{}, err
	}
	if !found || !opts.DetectionMode.Valid() {
		return s.defaults, nil
	}
	return opts, nil
}

// Clear removes the selection, the options and the current job id. Job
// records are kept so the job history stays browsable.
func (s *Store) Clear(ctx context.Context, sid string) error {
	if err := checkSessionID(sid); err != nil {
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(clearedKeys)), ",")
	args := make([]any, 0, len(clearedKeys)+1)
	args = append(args, sid)
	for _, key := range clearedKeys {
		args = append(args, key)
	}
	if _, err := s.exec(ctx, "DELETE FROM session_kv WHERE session_id = ? AND key IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// SaveJob writes a job record.
func (s *Store) SaveJob(ctx context.Context, sid string, job domain.Job) error {
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("save job: id is empty")
	}
	return s.putJSON(ctx, sid, jobKey(job.ID), job)
}

// LoadJob reads a job record.
func (s *Store) LoadJob(ctx context.Context, sid, jobID string) (domain.Job, error) {
	var job domain.Job
	found, err := s.getJSON(ctx, sid, jobKey(jobID), &job)
	if err != nil {
		return domain.Job{}, err
	}
	if !found {
		return domain.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// UpdateJobStatus records a status change on an existing job. A cancelled
// job keeps its processing status and is returned unchanged.
func (s *Store) UpdateJobStatus(ctx context.Context, sid, jobID string, status domain.JobStatus, message string) (domain.Job, error) {
	job, err := s.LoadJob(ctx, sid, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if job.Cancelled() {
		return job, nil
	}
	job.Status = status
	job.ErrorMessage = message
	job.UpdatedAt = s.now().UTC()
	if err := s.SaveJob(ctx, sid, job); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

// MarkJobCancelled stamps cancelledAt on a processing job. Finished jobs
// are returned unchanged.
func (s *Store) MarkJobCancelled(ctx context.Context, sid, jobID string) (domain.Job, error) {
	job, err := s.LoadJob(ctx, sid, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if job.Status.IsTerminal() || job.Cancelled() {
		return job, nil
	}
	now := s.now().UTC()
	job.CancelledAt = now
	job.UpdatedAt = now
	if err := s.SaveJob(ctx, sid, job); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

// SetCurrentJob records the job id the progress and results stages follow.
func (s *Store) SetCurrentJob(ctx context.Context, sid, jobID string) error {
	return s.put(ctx, sid, keyCurrentJobID, jobID)
}

// CurrentJobID returns the tracked job id.
func (s *Store) CurrentJobID(ctx context.Context, sid string) (string, error) {
	value, found, err := s.get(ctx, sid, keyCurrentJobID)
	if err != nil {
		return "", err
	}
	if !found || strings.TrimSpace(value) == "" {
		return "", ErrNoCurrentJob
	}
	return value, nil
}

// CurrentJob resolves the current job id and its record.
func (s *Store) CurrentJob(ctx context.Context, sid string) (domain.Job, error) {
	jobID, err := s.CurrentJobID(ctx, sid)
	if err != nil {
		return domain.Job{}, err
	}
	return s.LoadJob(ctx, sid, jobID)
}

// ListJobs returns every job record of the session, newest first.
func (s *Store) ListJobs(ctx context.Context, sid string) ([]domain.Job, error) {
	if err := checkSessionID(sid); err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, "SELECT key, value FROM session_kv WHERE session_id = ? AND key LIKE ?", sid, jobKeyPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		if !isJobKey(key) {
			continue
		}
		var job domain.Job
		if err := json.Unmarshal([]byte(value), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].StartTime.After(jobs[j].StartTime) })
	return jobs, nil
}

func checkSessionID(sid string) error {
	if strings.TrimSpace(sid) == "" {
		return ErrEmptySessionID
	}
	return nil
}

func (s *Store) put(ctx context.Context, sid, key, value string) error {
	if err := checkSessionID(sid); err != nil {
		return err
	}
	_, err := s.exec(ctx, `INSERT INTO session_kv (session_id, key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		sid, key, value, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, sid, key string) (string, bool, error) {
	if err := checkSessionID(sid); err != nil {
		return "", false, err
	}
	var value string
	err := s.queryRow(ctx, "SELECT value FROM session_kv WHERE session_id = ? AND key = ?", sid, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) putJSON(ctx context.Context, sid, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.put(ctx, sid, key, string(data))
}

func (s *Store) getJSON(ctx context.Context, sid, key string, dst any) (bool, error) {
	value, found, err := s.get(ctx, sid, key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
