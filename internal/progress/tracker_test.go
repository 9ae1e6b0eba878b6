package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"minimill/internal/backend"
	"minimill/internal/config"
	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/notifications"
	"minimill/internal/session"
	"minimill/internal/testsupport"
)

const testSID = "sess-progress"

type scriptedBackend struct {
	backend.Backend
	name   string
	report func(ctx context.Context) backend.StatusReport
}

func (b *scriptedBackend) Name() string { return b.name }

func (b *scriptedBackend) Status(ctx context.Context, _ domain.Job) (backend.StatusReport, error) {
	return b.report(ctx), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func seedTrackedJob(t *testing.T) (*session.Store, domain.Job) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job, err := domain.NewJob("job_tracked", []domain.FileMetadata{testsupport.Video("clip.mp4", 5)}, domain.DefaultOptions(), 2, time.Now())
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	testsupport.SeedJob(t, store, testSID, job)
	return store, job
}

func testDeps(store StatusStore, be backend.Backend, notifier notifications.Service, timings config.SimulationTimings) trackerDeps {
	return trackerDeps{
		backend:  be,
		store:    store,
		notifier: notifier,
		timings:  timings,
		logger:   logging.NewNop(),
		rand:     func() float64 { return 0.5 },
		now:      time.Now,
	}
}

func waitDone(t *testing.T, tr *Tracker) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not finish")
	}
}

func countEvents(events []Event, typ EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestTrackerCompletesExactlyOnce(t *testing.T) {
	store, job := seedTrackedJob(t)
	be := &scriptedBackend{name: "simulator", report: func(context.Context) backend.StatusReport {
		return backend.StatusReport{Status: domain.JobCompleted}
	}}
	notifier := &recordingNotifier{}
	timings := config.SimulationTimings{
		Duration:         10 * time.Millisecond,
		ProgressInterval: time.Millisecond,
		StatusPoll:       time.Millisecond,
		ClockInterval:    time.Millisecond,
		CompletionDelay:  2 * time.Second,
	}

	var wg sync.WaitGroup
	tr := newTracker(testSID, job, testDeps(store, be, notifier, timings))
	tr.start(context.Background(), &wg)
	waitDone(t, tr)
	wg.Wait()

	snap := tr.Snapshot()
	if snap.State != StateCompleted || snap.Progress != 100 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Navigate == nil || snap.Navigate.Stage != domain.StageResults || snap.Navigate.DelayMS != 2000 {
		t.Fatalf("expected navigation to results after 2s, got %+v", snap.Navigate)
	}
	if snap.Notice == nil || snap.Notice.Message != "Processing completed successfully!" {
		t.Fatalf("unexpected notice: %+v", snap.Notice)
	}
	for _, step := range snap.Steps {
		if step.Status != StepCompleted {
			t.Fatalf("expected all steps completed, got %+v", snap.Steps)
		}
	}

	// A second terminal trigger after the loop exited changes nothing.
	tr.finish(context.Background(), TriggerPollCompleted, "")

	events := tr.Events(0)
	if got := countEvents(events, EventNavigate); got != 1 {
		t.Fatalf("expected exactly one navigate event, got %d", got)
	}
	if got := countEvents(events, EventNotice); got != 1 {
		t.Fatalf("expected exactly one notice event, got %d", got)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", notifier.count())
	}
	stored, err := store.LoadJob(context.Background(), testSID, job.ID)
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if stored.Status != domain.JobCompleted {
		t.Fatalf("expected persisted completed status, got %s", stored.Status)
	}
}

func TestTrackerFailureOffersChoice(t *testing.T) {
	store, job := seedTrackedJob(t)
	be := &scriptedBackend{name: "simulator", report: func(context.Context) backend.StatusReport {
		return backend.StatusReport{Status: domain.JobFailed, Error: "Simulated processing error"}
	}}
	timings := config.SimulationTimings{
		Duration:         time.Hour,
		ProgressInterval: time.Millisecond,
		StatusPoll:       2 * time.Millisecond,
		ClockInterval:    time.Millisecond,
	}

	var wg sync.WaitGroup
	tr := newTracker(testSID, job, testDeps(store, be, nil, timings))
	tr.start(context.Background(), &wg)
	waitDone(t, tr)
	wg.Wait()

	snap := tr.Snapshot()
	if snap.State != StateFailed || snap.Progress != 0 || !snap.ChoiceRequired {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Notice == nil || snap.Notice.Type != domain.NoticeError || snap.Notice.Message != "Processing failed: Simulated processing error" {
		t.Fatalf("unexpected notice: %+v", snap.Notice)
	}
	stored, err := store.LoadJob(context.Background(), testSID, job.ID)
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if stored.Status != domain.JobFailed || stored.ErrorMessage != "Simulated processing error" {
		t.Fatalf("unexpected persisted job: %+v", stored)
	}

	if !tr.Choose(domain.StageOptions) {
		t.Fatal("expected choice to be accepted")
	}
	if tr.Choose(domain.StageUpload) {
		t.Fatal("second choice must be rejected")
	}
	if nav := tr.Snapshot().Navigate; nav == nil || nav.Stage != domain.StageOptions {
		t.Fatalf("expected navigation to options, got %+v", nav)
	}
}

func TestTrackerCancelIgnoresLatePoll(t *testing.T) {
	store, job := seedTrackedJob(t)
	polled := make(chan struct{}, 1)
	be := &scriptedBackend{name: "http", report: func(ctx context.Context) backend.StatusReport {
		select {
		case polled <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return backend.StatusReport{Status: domain.JobCompleted}
	}}
	timings := config.SimulationTimings{
		Duration:         time.Hour,
		ProgressInterval: time.Millisecond,
		StatusPoll:       time.Millisecond,
		ClockInterval:    time.Millisecond,
		CancelDelay:      1500 * time.Millisecond,
	}

	var wg sync.WaitGroup
	tr := newTracker(testSID, job, testDeps(store, be, nil, timings))
	tr.start(context.Background(), &wg)

	select {
	case <-polled:
	case <-time.After(5 * time.Second):
		t.Fatal("poll never started")
	}
	if !tr.Cancel() {
		t.Fatal("expected cancel to take effect")
	}
	wg.Wait()
	if tr.Cancel() {
		t.Fatal("second cancel must be a no-op")
	}

	snap := tr.Snapshot()
	if snap.State != StateCancelled {
		t.Fatalf("expected cancelled state, got %s", snap.State)
	}
	if snap.Navigate == nil || snap.Navigate.Stage != domain.StageUpload || snap.Navigate.DelayMS != 1500 {
		t.Fatalf("expected navigation to upload after 1.5s, got %+v", snap.Navigate)
	}
	if snap.Notice == nil || snap.Notice.Message != "Processing cancelled." {
		t.Fatalf("unexpected notice: %+v", snap.Notice)
	}
	stored, err := store.LoadJob(context.Background(), testSID, job.ID)
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if stored.Status != domain.JobProcessing {
		t.Fatalf("cancel must not persist a terminal status, got %s", stored.Status)
	}
	if got := countEvents(tr.Events(0), EventNavigate); got != 1 {
		t.Fatalf("expected one navigate event, got %d", got)
	}
}

func TestTrackerRemoteBackendNeverCompletesLocally(t *testing.T) {
	store, job := seedTrackedJob(t)
	be := &scriptedBackend{name: "http", report: func(context.Context) backend.StatusReport {
		return backend.StatusReport{Status: domain.JobProcessing}
	}}
	timings := config.SimulationTimings{
		Duration:         5 * time.Millisecond,
		ProgressInterval: time.Millisecond,
		StatusPoll:       time.Millisecond,
		ClockInterval:    time.Millisecond,
	}

	var wg sync.WaitGroup
	tr := newTracker(testSID, job, testDeps(store, be, nil, timings))
	tr.start(context.Background(), &wg)
	time.Sleep(50 * time.Millisecond)

	snap := tr.Snapshot()
	if snap.State != StateProcessing {
		t.Fatalf("expected job still processing, got %s", snap.State)
	}
	if snap.Progress > remoteProgressCap {
		t.Fatalf("local estimate exceeded cap: %v", snap.Progress)
	}
	tr.stop()
	wg.Wait()
}

func TestTrackerForFinishedJobDoesNotRun(t *testing.T) {
	store, job := seedTrackedJob(t)
	job.Status = domain.JobCompleted
	job.UpdatedAt = job.StartTime.Add(31 * time.Second)

	var wg sync.WaitGroup
	tr := newTracker(testSID, job, testDeps(store, &scriptedBackend{name: "simulator"}, nil, config.SimulationTimings{}))
	tr.start(context.Background(), &wg)
	waitDone(t, tr)

	snap := tr.Snapshot()
	if snap.State != StateCompleted || snap.Elapsed != "0:31" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Navigate == nil || snap.Navigate.Stage != domain.StageResults {
		t.Fatalf("expected navigation to results, got %+v", snap.Navigate)
	}
}
