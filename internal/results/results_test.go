package results_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"minimill/internal/backend"
	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/results"
	"minimill/internal/services"
	"minimill/internal/session"
	"minimill/internal/testsupport"
)

const sid = "sess-results"

func newStage(t *testing.T) (*results.Stage, *session.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Simulation.RedirectDelayMS = 2000
	store := testsupport.MustOpenStore(t, cfg)
	return results.NewStage(cfg, store, backend.NewSimulator(cfg.Timings()), logging.NewNop()), store
}

func seedCompletedJob(t *testing.T, store *session.Store) domain.Job {
	t.Helper()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opts := domain.DefaultOptions()
	opts.HighQuality = false
	job, err := domain.NewJob("job_1700000000000_abc123def", []domain.FileMetadata{testsupport.Video("clip.mp4", 5)}, opts, 2, start)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	job.Status = domain.JobCompleted
	job.UpdatedAt = start.Add(83 * time.Second)
	testsupport.SeedJob(t, store, sid, job)
	return job
}

func TestLoadRendersStatistics(t *testing.T) {
	stage, store := newStage(t)
	job := seedCompletedJob(t, store)

	view, err := stage.Load(context.Background(), sid)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if view.Job.ID != job.ID {
		t.Fatalf("unexpected job %q", view.Job.ID)
	}
	if view.ObjectsDetected != "127" || view.AccuracyScore != "94.2%" || view.ProcessingFrames != "3240" || view.ProcessingSpeed != "1.8x" {
		t.Fatalf("unexpected statistics: %+v", view)
	}
	if view.OriginalFileName != "clip.mp4" || view.OriginalFileSize != "5.0 MiB" || view.DetectionMode != "6mm" {
		t.Fatalf("unexpected file info: %+v", view)
	}
	if view.MediaURL != "http://minimill.test/api/results/media" {
		t.Fatalf("unexpected media url %q", view.MediaURL)
	}
}

func TestLoadWithoutJobRedirects(t *testing.T) {
	stage, _ := newStage(t)
	_, err := stage.Load(context.Background(), sid)
	if !errors.Is(err, services.ErrMissingState) || !errors.Is(err, results.ErrNoResults) {
		t.Fatalf("expected missing state error, got %v", err)
	}
	if msg, _ := services.UserMessage(err); msg != "No results found. Please process a video first." {
		t.Fatalf("unexpected message %q", msg)
	}
	redirect, ok := services.RedirectOf(err)
	if !ok || redirect.Stage != "upload" || redirect.Delay != 2*time.Second {
		t.Fatalf("unexpected redirect %+v", redirect)
	}
}

func TestLoadCancelledJobRedirects(t *testing.T) {
	stage, store := newStage(t)
	ctx := context.Background()
	job, err := domain.NewJob("", []domain.FileMetadata{testsupport.Video("clip.mp4", 5)}, domain.DefaultOptions(), 2, time.Now())
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	testsupport.SeedJob(t, store, sid, job)
	if _, err := store.MarkJobCancelled(ctx, sid, job.ID); err != nil {
		t.Fatalf("MarkJobCancelled: %v", err)
	}

	_, err = stage.Load(ctx, sid)
	if !errors.Is(err, services.ErrMissingState) || !errors.Is(err, results.ErrNoResults) {
		t.Fatalf("expected missing state error for cancelled job, got %v", err)
	}
	if _, ok := services.RedirectOf(err); !ok {
		t.Fatal("expected redirect hint")
	}
	if _, err := stage.Share(ctx, sid); !errors.Is(err, results.ErrNoResults) {
		t.Fatalf("expected share to refuse a cancelled job, got %v", err)
	}
}

func TestDetailsRows(t *testing.T) {
	stage, store := newStage(t)
	job := seedCompletedJob(t, store)

	details, err := stage.Details(context.Background(), sid)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	want := []results.Detail{
		{Label: "Job ID", Value: job.ID},
		{Label: "Processing Time", Value: "1:23"},
		{Label: "Detection Mode", Value: "6mm"},
		{Label: "Quality", Value: "Standard"},
		{Label: "Objects Detected", Value: "127"},
		{Label: "Accuracy", Value: "94.2%"},
	}
	if len(details) != len(want) {
		t.Fatalf("got %d rows, want %d", len(details), len(want))
	}
	for i := range want {
		if details[i] != want[i] {
			t.Fatalf("row %d = %+v, want %+v", i, details[i], want[i])
		}
	}
}

func TestDownloadValidatesQuality(t *testing.T) {
	stage, store := newStage(t)
	job := seedCompletedJob(t, store)

	if _, err := stage.Download(context.Background(), sid, "ultra"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	dl, err := stage.Download(context.Background(), sid, "standard")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer dl.Media.Body.Close()
	if dl.Filename != "processed_video_"+job.ID+".mp4" || dl.Quality != domain.QualityStandard {
		t.Fatalf("unexpected download: %+v", dl)
	}
	data, err := io.ReadAll(dl.Media.Body)
	if err != nil || len(data) == 0 {
		t.Fatalf("expected media bytes, got %d (%v)", len(data), err)
	}
	if n := results.StartNotice(dl.Quality); n.Message != "Starting download (standard quality)..." || n.Type != domain.NoticeInfo {
		t.Fatalf("unexpected start notice %+v", n)
	}
}

func TestShareAndProcessAnother(t *testing.T) {
	stage, store := newStage(t)
	job := seedCompletedJob(t, store)
	ctx := context.Background()
	testsupport.SeedFiles(t, store, sid, testsupport.Video("next.mp4", 1))

	share, err := stage.Share(ctx, sid)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if share.URL != "http://minimill.test/results/"+job.ID || share.Title != "Processed Video Results" || share.Text != "Check out my processed video results!" {
		t.Fatalf("unexpected share info: %+v", share)
	}

	nav, err := stage.ProcessAnother(ctx, sid)
	if err != nil {
		t.Fatalf("ProcessAnother: %v", err)
	}
	if nav.Stage != domain.StageUpload {
		t.Fatalf("expected upload navigation, got %+v", nav)
	}
	state, err := store.Load(ctx, sid)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.Files) != 0 || state.CurrentJobID != "" || state.Options != domain.DefaultOptions() {
		t.Fatalf("expected cleared session, got %+v", state)
	}
	if _, err := store.LoadJob(ctx, sid, job.ID); err != nil {
		t.Fatalf("job record should survive clear: %v", err)
	}
}
