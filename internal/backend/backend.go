package backend

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"minimill/internal/config"
	"minimill/internal/domain"
)

// Backend is the processing service contract: submit files, poll status,
// fetch results and download the processed media.
type Backend interface {
	Submit(ctx context.Context, files []domain.FileMetadata, opts domain.ProcessingOptions) (Submission, error)
	Status(ctx context.Context, job domain.Job) (StatusReport, error)
	Results(ctx context.Context, job domain.Job) (domain.Results, error)
	Download(ctx context.Context, job domain.Job, quality domain.Quality) (*Media, error)
	Name() string
}

// Submission is the job descriptor returned by Submit. An empty JobID means
// the caller generates one.
type Submission struct {
	JobID string `json:"jobId"`
}

// StatusReport is one answer from the status endpoint.
type StatusReport struct {
	Status   domain.JobStatus `json:"status"`
	Progress *float64         `json:"progress,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Media is a downloadable processed video. Body may also implement io.Seeker,
// in which case callers can serve byte ranges from it.
type Media struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	ModTime     time.Time
}

// New selects the HTTP client when a backend is enabled, otherwise the simulator.
func New(cfg *config.Config, logger *slog.Logger) Backend {
	if cfg.Backend.Enabled {
		return NewHTTPClient(cfg.Backend.BaseURL, time.Duration(cfg.Backend.RequestTimeout)*time.Second, logger)
	}
	return NewSimulator(cfg.Timings())
}

type readSeekCloser struct {
	*bytes.Reader
}

func (readSeekCloser) Close() error { return nil }

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
