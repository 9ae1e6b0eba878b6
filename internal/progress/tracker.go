package progress

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"minimill/internal/backend"
	"minimill/internal/config"
	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/notifications"
	"minimill/internal/services"
)

const (
	msgCompleted = "Processing completed successfully!"
	msgCancelled = "Processing cancelled."

	// remoteProgressCap keeps the local estimate below 100 when only the
	// backend may declare a job complete.
	remoteProgressCap = 99
)

// StatusStore persists terminal job states.
type StatusStore interface {
	UpdateJobStatus(ctx context.Context, sid, jobID string, status domain.JobStatus, message string) (domain.Job, error)
}

// Snapshot is the render state of a tracked job.
type Snapshot struct {
	Job            domain.Job         `json:"job"`
	State          State              `json:"state"`
	Progress       float64            `json:"progress"`
	Percent        int                `json:"percent"`
	Elapsed        string             `json:"elapsed"`
	Speed          string             `json:"speed"`
	Steps          []Step             `json:"steps"`
	Error          string             `json:"error,omitempty"`
	ChoiceRequired bool               `json:"choiceRequired"`
	Notice         *domain.Notice     `json:"notice,omitempty"`
	Navigate       *domain.Navigation `json:"navigate,omitempty"`
	Seq            int64              `json:"seq"`
}

type trackerDeps struct {
	backend  backend.Backend
	store    StatusStore
	notifier notifications.Service
	timings  config.SimulationTimings
	logger   *slog.Logger
	rand     func() float64
	now      func() time.Time
}

// Tracker drives one job: a clock, a local progress estimate and a status
// poll, each on its own ticker. All state changes go through the Machine.
type Tracker struct {
	sid  string
	job  domain.Job
	deps trackerDeps
	bus  *EventBus

	// localCompletion lets the progress estimate itself finish the job.
	// Only the simulator is trusted to agree with it.
	localCompletion bool

	mu             sync.Mutex
	machine        *Machine
	progress       float64
	speed          float64
	elapsed        time.Duration
	errMsg         string
	choiceRequired bool
	notice         *domain.Notice
	navigate       *domain.Navigation
	sampler        *logging.ProgressSampler

	cancel  context.CancelFunc
	done    chan struct{}
	pollers sync.WaitGroup
}

type pollResult struct {
	report backend.StatusReport
	err    error
}

func newTracker(sid string, job domain.Job, deps trackerDeps) *Tracker {
	t := &Tracker{
		sid:             sid,
		job:             job,
		deps:            deps,
		bus:             NewEventBus(256),
		localCompletion: deps.backend.Name() == "simulator",
		machine:         NewMachine(StateFromJob(job)),
		speed:           1,
		sampler:         logging.NewProgressSampler(25),
		done:            make(chan struct{}),
	}
	switch t.machine.State() {
	case StateCompleted:
		t.progress = 100
		t.navigate = domain.NavigateTo(domain.StageResults, 0)
	case StateFailed:
		t.errMsg = job.ErrorMessage
		t.choiceRequired = true
	case StateCancelled:
		t.notice = &domain.Notice{Type: domain.NoticeWarning, Message: msgCancelled}
		t.navigate = domain.NavigateTo(domain.StageUpload, 0)
	}
	if !job.UpdatedAt.IsZero() && t.machine.State().Terminal() {
		t.elapsed = job.UpdatedAt.Sub(job.StartTime)
	}
	return t
}

// start launches the tracking loop for a job still processing. Terminal jobs
// never start a loop.
func (t *Tracker) start(parent context.Context, wg *sync.WaitGroup) {
	t.mu.Lock()
	if t.machine.State().Terminal() {
		t.mu.Unlock()
		close(t.done)
		return
	}
	ctx := services.WithStage(services.WithJobID(services.WithSessionID(parent, t.sid), t.job.ID), "progress")
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		t.run(ctx)
	}()
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)
	defer t.pollers.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := t.logger(ctx)
	logger.Info("tracking started",
		logging.String(logging.FieldEventType, "tracking_started"),
		logging.String("backend", t.deps.backend.Name()),
	)

	clock := time.NewTicker(t.deps.timings.ClockInterval)
	defer clock.Stop()
	advance := time.NewTicker(t.deps.timings.ProgressInterval)
	defer advance.Stop()
	poll := time.NewTicker(t.deps.timings.StatusPoll)
	defer poll.Stop()

	results := make(chan pollResult, 1)
	polling := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-clock.C:
			t.tickClock()
		case <-advance.C:
			if t.advance(ctx) {
				t.finish(ctx, TriggerProgressComplete, "")
				return
			}
		case <-poll.C:
			if polling {
				continue
			}
			polling = true
			t.pollers.Add(1)
			go func() {
				defer t.pollers.Done()
				report, err := t.deps.backend.Status(ctx, t.job)
				results <- pollResult{report: report, err: err}
			}()
		case res := <-results:
			polling = false
			if t.handlePoll(ctx, res) {
				return
			}
		}
	}
}

func (t *Tracker) tickClock() {
	now := t.deps.now()
	speed := 0.8 + t.deps.rand()*0.4

	t.mu.Lock()
	if t.machine.State().Terminal() {
		t.mu.Unlock()
		return
	}
	t.elapsed = now.Sub(t.job.StartTime)
	t.speed = speed
	elapsed := t.elapsed
	t.mu.Unlock()

	t.bus.Publish(Event{
		JobID:   t.job.ID,
		Type:    EventStatus,
		State:   StateProcessing,
		Elapsed: domain.FormatClock(elapsed),
		Speed:   formatSpeed(speed),
	})
}

// advance moves the local estimate one tick forward and reports whether it
// reached 100.
func (t *Tracker) advance(ctx context.Context) bool {
	ticks := float64(t.deps.timings.Duration) / float64(t.deps.timings.ProgressInterval)
	increment := 100 / ticks
	jitter := (t.deps.rand() - 0.5) * 2

	t.mu.Lock()
	if t.machine.State().Terminal() {
		t.mu.Unlock()
		return false
	}
	next := math.Max(0, t.progress+increment+jitter)
	if next > 100 {
		next = 100
	}
	if !t.localCompletion && next > remoteProgressCap {
		next = remoteProgressCap
	}
	t.progress = next
	shouldLog := t.sampler.ShouldLog(next, currentStep(next))
	t.mu.Unlock()

	t.bus.Publish(Event{JobID: t.job.ID, Type: EventProgress, State: StateProcessing, Progress: roundProgress(next)})
	if shouldLog {
		t.logger(ctx).Info("processing progress",
			logging.String(logging.FieldEventType, "job_progress"),
			logging.Int("percent", int(roundProgress(next))),
			logging.String("step", currentStep(next)),
		)
	}
	return next >= 100
}

// handlePoll applies a status answer and reports whether tracking is over.
func (t *Tracker) handlePoll(ctx context.Context, res pollResult) bool {
	if res.err != nil {
		if ctx.Err() != nil {
			return true
		}
		logging.WarnWithContext(t.logger(ctx), "status check failed", "status_poll_failed",
			logging.Error(res.err),
			logging.String(logging.FieldErrorHint, "check processing backend availability"),
			logging.String(logging.FieldImpact, "status will be checked again on the next poll"),
		)
		return false
	}
	switch res.report.Status {
	case domain.JobCompleted:
		return t.finish(ctx, TriggerPollCompleted, "")
	case domain.JobFailed:
		return t.finish(ctx, TriggerPollFailed, res.report.Error)
	default:
		if res.report.Progress != nil {
			t.mu.Lock()
			if !t.machine.State().Terminal() && *res.report.Progress > t.progress {
				t.progress = math.Min(*res.report.Progress, remoteProgressCap)
			}
			t.mu.Unlock()
		}
		return false
	}
}

// finish applies a terminal trigger. Later triggers are no-ops, so the
// completion notice and navigation are emitted at most once.
func (t *Tracker) finish(ctx context.Context, trigger Trigger, reason string) bool {
	t.mu.Lock()
	transition := t.machine.Apply(trigger)
	if !transition.Changed {
		t.mu.Unlock()
		return true
	}
	t.elapsed = t.deps.now().Sub(t.job.StartTime)
	elapsed := t.elapsed

	var (
		status domain.JobStatus
		event  notifications.Event
	)
	switch transition.To {
	case StateCompleted:
		status = domain.JobCompleted
		event = notifications.EventJobCompleted
		t.progress = 100
		t.notice = &domain.Notice{Type: domain.NoticeSuccess, Message: msgCompleted}
		t.navigate = domain.NavigateTo(domain.StageResults, t.deps.timings.CompletionDelay)
	case StateFailed:
		if reason == "" {
			reason = "Unknown error"
		}
		status = domain.JobFailed
		event = notifications.EventJobFailed
		t.progress = 0
		t.errMsg = reason
		t.choiceRequired = true
		t.notice = &domain.Notice{Type: domain.NoticeError, Message: fmt.Sprintf("Processing failed: %s", reason)}
	}
	notice, navigate, progress, errMsg := t.notice, t.navigate, t.progress, t.errMsg
	t.mu.Unlock()

	logger := t.logger(ctx)
	if _, err := t.deps.store.UpdateJobStatus(ctx, t.sid, t.job.ID, status, errMsg); err != nil {
		logging.ErrorWithContext(logger, "persist job status failed", "job_status_persist_failed",
			logging.String("status", string(status)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check session store access"),
		)
	}

	t.bus.Publish(Event{JobID: t.job.ID, Type: EventStatus, State: transition.To, Elapsed: domain.FormatClock(elapsed)})
	t.bus.Publish(Event{JobID: t.job.ID, Type: EventProgress, State: transition.To, Progress: progress})
	t.bus.Publish(Event{JobID: t.job.ID, Type: EventNotice, State: transition.To, Notice: notice})
	if navigate != nil {
		t.bus.Publish(Event{JobID: t.job.ID, Type: EventNavigate, State: transition.To, Navigate: navigate})
	}

	if transition.To == StateCompleted {
		logger.Info("processing completed",
			logging.String(logging.FieldEventType, "job_completed"),
			logging.String("trigger", string(trigger)),
			logging.String("elapsed", domain.FormatClock(elapsed)),
		)
	} else {
		logging.WarnWithContext(logger, "processing failed", "job_failed",
			logging.String("reason", reason),
			logging.String(logging.FieldErrorHint, "retry with the same options or start over"),
			logging.String(logging.FieldImpact, "job marked failed"),
		)
	}
	t.notify(ctx, event, reason, elapsed)
	return true
}

func (t *Tracker) notify(ctx context.Context, event notifications.Event, reason string, elapsed time.Duration) {
	if t.deps.notifier == nil {
		return
	}
	file := ""
	if primary, ok := t.job.PrimaryFile(); ok {
		file = primary.Name
	}
	payload := notifications.Payload{
		"jobId":    t.job.ID,
		"file":     file,
		"files":    len(t.job.Files),
		"mode":     string(t.job.Options.DetectionMode),
		"duration": domain.FormatClock(elapsed),
		"email":    t.job.Options.EmailNotification,
	}
	if reason != "" {
		payload["error"] = reason
	}
	if err := t.deps.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(t.logger(ctx), "notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ntfy topic configuration"),
			logging.String(logging.FieldImpact, "user was not notified"),
		)
	}
}

// Cancel stops tracking without persisting a terminal status. It returns
// false when the job had already finished.
func (t *Tracker) Cancel() bool {
	t.mu.Lock()
	transition := t.machine.Apply(TriggerCancel)
	if !transition.Changed {
		t.mu.Unlock()
		return false
	}
	t.notice = &domain.Notice{Type: domain.NoticeWarning, Message: msgCancelled}
	t.navigate = domain.NavigateTo(domain.StageUpload, t.deps.timings.CancelDelay)
	notice, navigate := t.notice, t.navigate
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-t.done

	t.bus.Publish(Event{JobID: t.job.ID, Type: EventStatus, State: StateCancelled})
	t.bus.Publish(Event{JobID: t.job.ID, Type: EventNotice, State: StateCancelled, Notice: notice})
	t.bus.Publish(Event{JobID: t.job.ID, Type: EventNavigate, State: StateCancelled, Navigate: navigate})
	return true
}

// Choose resolves the choice offered after a failure.
func (t *Tracker) Choose(stage domain.Stage) bool {
	t.mu.Lock()
	if t.machine.State() != StateFailed || !t.choiceRequired {
		t.mu.Unlock()
		return false
	}
	t.choiceRequired = false
	t.navigate = domain.NavigateTo(stage, 0)
	navigate := t.navigate
	t.mu.Unlock()

	t.bus.Publish(Event{JobID: t.job.ID, Type: EventNavigate, State: StateFailed, Navigate: navigate})
	return true
}

// stop ends the loop without touching the machine; used on shutdown.
func (t *Tracker) stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Snapshot returns the current render state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.machine.State()
	steps := StepsAt(t.progress)
	if state == StateCompleted {
		steps = CompletedSteps()
	}
	elapsed := t.elapsed
	if state == StateProcessing {
		elapsed = t.deps.now().Sub(t.job.StartTime)
	}
	return Snapshot{
		Job:            t.job,
		State:          state,
		Progress:       roundProgress(t.progress),
		Percent:        int(math.Round(t.progress)),
		Elapsed:        domain.FormatClock(elapsed),
		Speed:          formatSpeed(t.speed),
		Steps:          steps,
		Error:          t.errMsg,
		ChoiceRequired: t.choiceRequired,
		Notice:         t.notice,
		Navigate:       t.navigate,
		Seq:            t.bus.LastSeq(),
	}
}

// Events returns events newer than seq.
func (t *Tracker) Events(seq int64) []Event {
	return t.bus.Since(seq)
}

// JobID returns the id of the tracked job.
func (t *Tracker) JobID() string { return t.job.ID }

// Done is closed once the tracking loop has exited.
func (t *Tracker) Done() <-chan struct{} { return t.done }

func (t *Tracker) logger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, t.deps.logger)
}

func roundProgress(p float64) float64 {
	return math.Round(p*10) / 10
}

func formatSpeed(speed float64) string {
	return fmt.Sprintf("%.1fx", speed)
}
