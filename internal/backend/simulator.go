package backend

import (
	"bytes"
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"minimill/internal/config"
	"minimill/internal/domain"
)

// PlaceholderVideoURL is the media reference simulated results carry.
const PlaceholderVideoURL = "data:video/mp4;base64,"

const simulatedFailure = "Simulated processing error"

// placeholderMP4 is a bare ftyp box so players recognise the container.
var placeholderMP4 = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'm', 'p', '4', '1',
}

// Simulator stands in for a processing backend. A job completes once its
// elapsed time exceeds the configured duration.
type Simulator struct {
	timings config.SimulationTimings
	now     func() time.Time
	roll    func() float64

	mu      sync.Mutex
	failing map[string]bool
}

// NewSimulator builds a simulator using the configured timings.
func NewSimulator(timings config.SimulationTimings) *Simulator {
	return &Simulator{
		timings: timings,
		now:     time.Now,
		roll:    rand.Float64,
		failing: make(map[string]bool),
	}
}

func (s *Simulator) Name() string { return "simulator" }

// Submit waits for the start latency and lets the caller mint the job id.
func (s *Simulator) Submit(ctx context.Context, files []domain.FileMetadata, _ domain.ProcessingOptions) (Submission, error) {
	if err := sleep(ctx, s.timings.StartLatency); err != nil {
		return Submission{}, err
	}
	if len(files) == 0 {
		return Submission{}, domain.ErrNoFiles
	}
	return Submission{}, nil
}

// Status reports completion after the configured duration and otherwise a
// progress estimate capped at 95. With a failure rate set, each job rolls once
// and failing jobs report failed halfway through.
func (s *Simulator) Status(ctx context.Context, job domain.Job) (StatusReport, error) {
	if err := sleep(ctx, s.timings.PollLatency); err != nil {
		return StatusReport{}, err
	}
	elapsed := s.now().Sub(job.StartTime)
	if s.shouldFail(job.ID) && elapsed > s.timings.Duration/2 {
		return StatusReport{Status: domain.JobFailed, Error: simulatedFailure}, nil
	}
	if elapsed > s.timings.Duration {
		done := 100.0
		return StatusReport{Status: domain.JobCompleted, Progress: &done}, nil
	}
	progress := 0.0
	if s.timings.Duration > 0 {
		progress = min(float64(elapsed)/float64(s.timings.Duration)*100, 95)
	}
	return StatusReport{Status: domain.JobProcessing, Progress: &progress}, nil
}

func (s *Simulator) shouldFail(jobID string) bool {
	if s.timings.FailureRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	failing, ok := s.failing[jobID]
	if !ok {
		failing = s.roll() < s.timings.FailureRate
		s.failing[jobID] = failing
	}
	return failing
}

// Results returns the fixed statistics after the results latency.
func (s *Simulator) Results(ctx context.Context, _ domain.Job) (domain.Results, error) {
	if err := sleep(ctx, s.timings.ResultsLatency); err != nil {
		return domain.Results{}, err
	}
	return domain.Results{
		VideoURL: PlaceholderVideoURL,
		Statistics: domain.Statistics{
			ObjectsDetected:  127,
			AccuracyScore:    94.2,
			ProcessingFrames: 3240,
			ProcessingSpeed:  1.8,
		},
	}, nil
}

// Download returns the placeholder media for either quality.
func (s *Simulator) Download(ctx context.Context, job domain.Job, _ domain.Quality) (*Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	modTime := job.UpdatedAt
	if modTime.IsZero() {
		modTime = job.StartTime
	}
	return &Media{
		Body:        readSeekCloser{bytes.NewReader(placeholderMP4)},
		ContentType: "video/mp4",
		Size:        int64(len(placeholderMP4)),
		ModTime:     modTime,
	}, nil
}
