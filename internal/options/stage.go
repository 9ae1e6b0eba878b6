package options

import (
	"context"
	"log/slog"
	"time"

	"minimill/internal/backend"
	"minimill/internal/config"
	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/services"
	"minimill/internal/session"
	"minimill/internal/upload"
)

const (
	stageName      = "options"
	msgNoFiles     = "No files selected for processing."
	msgStartFailed = "Failed to start processing. Please try again."
)

// Store is the part of the session store the options stage uses.
type Store interface {
	Load(ctx context.Context, sid string) (session.State, error)
	SaveFiles(ctx context.Context, sid string, files []domain.FileMetadata) error
	SaveOptions(ctx context.Context, sid string, opts domain.ProcessingOptions) error
	SaveJob(ctx context.Context, sid string, job domain.Job) error
	SetCurrentJob(ctx context.Context, sid, jobID string) error
}

// JobStarter takes over a freshly created job; the progress manager
// implements it.
type JobStarter interface {
	Start(ctx context.Context, sid string, job domain.Job) error
}

// ModeChoice describes one selectable detection mode.
type ModeChoice struct {
	Mode        domain.DetectionMode `json:"mode"`
	Description string               `json:"description"`
	Multiplier  float64              `json:"multiplier"`
	Selected    bool                 `json:"selected"`
}

// Summary is everything the options page renders.
type Summary struct {
	Files        []domain.FileMetadata    `json:"files"`
	FileCount    int                      `json:"fileCount"`
	TotalSize    int64                    `json:"totalSize"`
	Options      domain.ProcessingOptions `json:"options"`
	QualityLabel string                   `json:"qualityLabel"`
	Estimate     Estimate                 `json:"estimate"`
	Modes        []ModeChoice             `json:"modes"`
	CanStart     bool                     `json:"canStart"`
}

// StartResult is returned when a job has been created.
type StartResult struct {
	Job      domain.Job         `json:"job"`
	Navigate *domain.Navigation `json:"-"`
}

// Stage edits processing options and starts jobs.
type Stage struct {
	store          Store
	backend        backend.Backend
	starter        JobStarter
	defaults       domain.ProcessingOptions
	minutesPerFile int
	logger         *slog.Logger
	now            func() time.Time
}

// NewStage wires the options stage. starter may be nil.
func NewStage(cfg *config.Config, store Store, be backend.Backend, starter JobStarter, logger *slog.Logger) *Stage {
	return &Stage{
		store:          store,
		backend:        be,
		starter:        starter,
		defaults:       session.DefaultsFromConfig(cfg),
		minutesPerFile: cfg.Processing.MinutesPerFile,
		logger:         logging.NewComponentLogger(logger, stageName),
		now:            time.Now,
	}
}

// SetStarter installs the component that runs newly created jobs.
func (s *Stage) SetStarter(starter JobStarter) { s.starter = starter }

// Summary renders the current options and estimate.
func (s *Stage) Summary(ctx context.Context, sid string) (Summary, error) {
	state, err := s.store.Load(ctx, sid)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrTransient, stageName, "load session", "", err)
	}
	return s.summarize(state), nil
}

func (s *Stage) summarize(state session.State) Summary {
	var total int64
	for _, f := range state.Files {
		total += f.Size
	}
	modes := make([]ModeChoice, 0, len(domain.DetectionModes))
	for _, mode := range domain.DetectionModes {
		modes = append(modes, ModeChoice{
			Mode:        mode,
			Description: mode.Description(),
			Multiplier:  mode.Multiplier(),
			Selected:    mode == state.Options.DetectionMode,
		})
	}
	return Summary{
		Files:        state.Files,
		FileCount:    len(state.Files),
		TotalSize:    total,
		Options:      state.Options,
		QualityLabel: state.Options.QualityLabel(),
		Estimate:     EstimateDuration(len(state.Files), state.Options.DetectionMode, s.minutesPerFile),
		Modes:        modes,
		CanStart:     len(state.Files) > 0,
	}
}

// Update applies a partial change, persists it and recomputes the estimate.
func (s *Stage) Update(ctx context.Context, sid string, patch domain.OptionsPatch) (Summary, error) {
	state, err := s.store.Load(ctx, sid)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrTransient, stageName, "load session", "", err)
	}
	next, err := patch.Apply(state.Options)
	if err != nil {
		return Summary{}, services.WithUserMessage(services.Wrap(services.ErrValidation, stageName, "update", "", err), err.Error())
	}
	if err := s.store.SaveOptions(ctx, sid, next); err != nil {
		return Summary{}, services.Wrap(services.ErrTransient, stageName, "save options", "", err)
	}
	state.Options = next
	return s.summarize(state), nil
}

// Reset restores the default options.
func (s *Stage) Reset(ctx context.Context, sid string) (Summary, error) {
	state, err := s.store.Load(ctx, sid)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrTransient, stageName, "load session", "", err)
	}
	if err := s.store.SaveOptions(ctx, sid, s.defaults); err != nil {
		return Summary{}, services.Wrap(services.ErrTransient, stageName, "save options", "", err)
	}
	state.Options = s.defaults
	return s.summarize(state), nil
}

// RemoveFile drops one file from the selection and recomputes the estimate.
func (s *Stage) RemoveFile(ctx context.Context, sid string, index int) (Summary, error) {
	state, err := s.store.Load(ctx, sid)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrTransient, stageName, "load session", "", err)
	}
	next, err := upload.RemoveAt(state.Files, index)
	if err != nil {
		return Summary{}, err
	}
	if err := s.store.SaveFiles(ctx, sid, next); err != nil {
		return Summary{}, services.Wrap(services.ErrTransient, stageName, "save selection", "", err)
	}
	state.Files = next
	return s.summarize(state), nil
}

// Start submits the selection, records the job as current and hands it to
// the progress stage. Nothing is persisted when submission fails.
func (s *Stage) Start(ctx context.Context, sid string) (StartResult, error) {
	ctx = services.WithStage(services.WithSessionID(ctx, sid), stageName)
	logger := logging.WithContext(ctx, s.logger)

	state, err := s.store.Load(ctx, sid)
	if err != nil {
		return StartResult{}, services.Wrap(services.ErrTransient, stageName, "load session", "", err)
	}
	if !state.HasFiles() {
		return StartResult{}, services.WithUserMessage(
			services.Wrap(services.ErrValidation, stageName, "start", "", domain.ErrNoFiles),
			msgNoFiles,
		)
	}
	if err := state.Options.Validate(); err != nil {
		return StartResult{}, services.WithUserMessage(services.Wrap(services.ErrValidation, stageName, "start", "", err), err.Error())
	}

	sub, err := s.backend.Submit(ctx, state.Files, state.Options)
	if err != nil {
		logging.ErrorWithContext(logger, "processing start failed", "job_start_failed",
			logging.String("backend", s.backend.Name()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check backend availability and retry"),
		)
		return StartResult{}, services.WithUserMessage(services.Wrap(services.ErrTransient, stageName, "start", "submit", err), msgStartFailed)
	}

	estimate := EstimateDuration(len(state.Files), state.Options.DetectionMode, s.minutesPerFile)
	job, err := domain.NewJob(sub.JobID, state.Files, state.Options, estimate.Minutes, s.now())
	if err != nil {
		return StartResult{}, services.WithUserMessage(services.Wrap(services.ErrValidation, stageName, "start", "", err), msgStartFailed)
	}
	ctx = services.WithJobID(ctx, job.ID)
	logger = logging.WithContext(ctx, s.logger)

	if err := s.store.SaveJob(ctx, sid, job); err != nil {
		return StartResult{}, services.WithUserMessage(services.Wrap(services.ErrTransient, stageName, "save job", "", err), msgStartFailed)
	}
	if err := s.store.SetCurrentJob(ctx, sid, job.ID); err != nil {
		return StartResult{}, services.WithUserMessage(services.Wrap(services.ErrTransient, stageName, "set current job", "", err), msgStartFailed)
	}
	if s.starter != nil {
		if err := s.starter.Start(ctx, sid, job); err != nil {
			return StartResult{}, services.WithUserMessage(services.Wrap(services.ErrTransient, stageName, "track job", "", err), msgStartFailed)
		}
	}

	logger.Info("processing started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.Int("files", len(job.Files)),
		logging.String("mode", string(job.Options.DetectionMode)),
		logging.Int("estimated_minutes", job.EstimatedDuration),
	)
	return StartResult{Job: job, Navigate: domain.NavigateTo(domain.StageProgress, 0)}, nil
}
