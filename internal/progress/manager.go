package progress

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"minimill/internal/backend"
	"minimill/internal/config"
	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/notifications"
	"minimill/internal/services"
	"minimill/internal/session"
)

const (
	stageName    = "progress"
	msgNoJob     = "No processing job found. Please start a new processing job."
	msgNoChoice  = "There is no failed job waiting for a decision."
	msgBadChoice = "Choose retry or restart."
)

var (
	// ErrNoJob is returned when a session has no current job to track.
	ErrNoJob = errors.New("no processing job")
	// ErrNoChoice is returned by Choose when the job has not failed.
	ErrNoChoice = errors.New("no failed job awaiting a choice")
)

// Choice is the user's answer after a failed job.
type Choice string

const (
	ChoiceRetry   Choice = "retry"
	ChoiceRestart Choice = "restart"
)

// ParseChoice validates a retry/restart answer.
func ParseChoice(value string) (Choice, error) {
	switch c := Choice(strings.ToLower(strings.TrimSpace(value))); c {
	case ChoiceRetry, ChoiceRestart:
		return c, nil
	default:
		return "", services.WithUserMessage(
			services.Wrap(services.ErrValidation, stageName, "choose", "unknown choice "+value, nil),
			msgBadChoice,
		)
	}
}

// Target returns the stage the choice navigates to.
func (c Choice) Target() domain.Stage {
	if c == ChoiceRetry {
		return domain.StageOptions
	}
	return domain.StageUpload
}

// Store is the part of the session store the manager uses.
type Store interface {
	StatusStore
	CurrentJobID(ctx context.Context, sid string) (string, error)
	LoadJob(ctx context.Context, sid, jobID string) (domain.Job, error)
	MarkJobCancelled(ctx context.Context, sid, jobID string) (domain.Job, error)
}

// Manager owns one tracker per session and the goroutines behind them.
type Manager struct {
	store         Store
	deps          trackerDeps
	redirectDelay time.Duration
	logger        *slog.Logger

	mu       sync.Mutex
	trackers map[string]*Tracker
	closed   bool

	baseCtx context.Context
	stopAll context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager builds a manager. Trackers run until their job finishes, is
// cancelled, or Shutdown is called.
func NewManager(cfg *config.Config, store Store, be backend.Backend, notifier notifications.Service, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	timings := cfg.Timings()
	component := logging.NewComponentLogger(logger, stageName)
	return &Manager{
		store: store,
		deps: trackerDeps{
			backend:  be,
			store:    store,
			notifier: notifier,
			timings:  timings,
			logger:   component,
			rand:     rand.Float64,
			now:      time.Now,
		},
		redirectDelay: timings.RedirectDelay,
		logger:        component,
		trackers:      make(map[string]*Tracker),
		baseCtx:       ctx,
		stopAll:       cancel,
	}
}

// Start begins tracking a freshly created job, replacing any tracker the
// session had.
func (m *Manager) Start(ctx context.Context, sid string, job domain.Job) error {
	t := newTracker(sid, job, m.deps)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return services.Wrap(services.ErrTransient, stageName, "start", "manager is shut down", nil)
	}
	previous := m.trackers[sid]
	m.trackers[sid] = t
	t.start(m.baseCtx, &m.wg)
	m.mu.Unlock()

	if previous != nil {
		previous.stop()
	}
	logging.WithContext(ctx, m.logger).Debug("tracker started",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldEventType, "tracker_started"),
	)
	return nil
}

// Attach resolves the session's current job and returns its render state,
// starting a tracker when none is running. A missing id or record fails with
// a redirect to the upload stage.
func (m *Manager) Attach(ctx context.Context, sid string) (Snapshot, error) {
	t, err := m.tracker(ctx, sid)
	if err != nil {
		return Snapshot{}, err
	}
	return t.Snapshot(), nil
}

// Snapshot is Attach for callers that only read.
func (m *Manager) Snapshot(ctx context.Context, sid string) (Snapshot, error) {
	return m.Attach(ctx, sid)
}

// Events returns tracker events newer than since.
func (m *Manager) Events(ctx context.Context, sid string, since int64) ([]Event, error) {
	t, err := m.tracker(ctx, sid)
	if err != nil {
		return nil, err
	}
	return t.Events(since), nil
}

// Cancel stops the current job and records the cancellation on the job
// record, so a restarted daemon does not resume it. Finished jobs are left
// untouched.
func (m *Manager) Cancel(ctx context.Context, sid string) (Snapshot, error) {
	t, err := m.tracker(ctx, sid)
	if err != nil {
		return Snapshot{}, err
	}
	logger := logging.WithContext(services.WithJobID(services.WithSessionID(ctx, sid), t.JobID()), m.logger)
	if t.Cancel() {
		if _, err := m.store.MarkJobCancelled(ctx, sid, t.JobID()); err != nil {
			logging.ErrorWithContext(logger, "persist cancellation failed", "job_cancel_persist_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check session store access"),
			)
		}
		logger.Info("processing cancelled", logging.String(logging.FieldEventType, "job_cancelled"))
	} else {
		logger.Debug("cancel ignored for finished job", logging.String(logging.FieldEventType, "job_cancel_ignored"))
	}
	return t.Snapshot(), nil
}

// Choose answers the retry/restart question after a failure.
func (m *Manager) Choose(ctx context.Context, sid string, choice Choice) (*domain.Navigation, error) {
	t, err := m.tracker(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !t.Choose(choice.Target()) {
		return nil, services.WithUserMessage(
			services.Wrap(services.ErrValidation, stageName, "choose", "", ErrNoChoice),
			msgNoChoice,
		)
	}
	return domain.NavigateTo(choice.Target(), 0), nil
}

// Shutdown stops every tracker and waits for their goroutines.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	trackers := make([]*Tracker, 0, len(m.trackers))
	for _, t := range m.trackers {
		trackers = append(trackers, t)
	}
	m.mu.Unlock()

	m.stopAll()
	for _, t := range trackers {
		t.stop()
	}
	m.wg.Wait()
}

// Active returns the number of trackers whose loop is still running.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, t := range m.trackers {
		select {
		case <-t.Done():
		default:
			active++
		}
	}
	return active
}

func (m *Manager) tracker(ctx context.Context, sid string) (*Tracker, error) {
	jobID, err := m.store.CurrentJobID(ctx, sid)
	if err != nil {
		return nil, m.missingJob(ctx, sid, "no current job", err)
	}

	m.mu.Lock()
	if t, ok := m.trackers[sid]; ok && t.JobID() == jobID {
		m.mu.Unlock()
		return t, nil
	}
	m.mu.Unlock()

	job, err := m.store.LoadJob(ctx, sid, jobID)
	if err != nil {
		return nil, m.missingJob(ctx, sid, "job record missing", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.trackers[sid]; ok && t.JobID() == jobID {
		return t, nil
	}
	if m.closed {
		return nil, services.Wrap(services.ErrTransient, stageName, "attach", "manager is shut down", nil)
	}
	t := newTracker(sid, job, m.deps)
	if previous := m.trackers[sid]; previous != nil {
		previous.stop()
	}
	m.trackers[sid] = t
	t.start(m.baseCtx, &m.wg)
	return t, nil
}

func (m *Manager) missingJob(ctx context.Context, sid, detail string, cause error) error {
	marker := services.ErrMissingState
	if !errors.Is(cause, session.ErrNoCurrentJob) && !errors.Is(cause, session.ErrJobNotFound) {
		marker = services.ErrTransient
		return services.Wrap(marker, stageName, "attach", detail, cause)
	}
	logging.WarnWithContext(logging.WithContext(services.WithSessionID(ctx, sid), m.logger), "no job to track", "job_missing",
		logging.String("detail", detail),
		logging.String(logging.FieldErrorHint, "start a new processing job"),
		logging.String(logging.FieldImpact, "client redirected to upload"),
	)
	err := services.Wrap(marker, stageName, "attach", detail, errors.Join(ErrNoJob, cause))
	return services.WithUserMessage(services.WithRedirect(err, string(domain.StageUpload), m.redirectDelay), msgNoJob)
}
