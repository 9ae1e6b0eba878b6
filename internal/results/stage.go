package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"minimill/internal/backend"
	"minimill/internal/config"
	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/services"
	"minimill/internal/session"
)

const (
	stageName = "results"

	msgNoResults      = "No results found. Please process a video first."
	msgLoadFailed     = "Failed to load results."
	msgDownloadFailed = "Download failed. Please try again."
	msgDownloadDone   = "Download completed!"
	msgShareCopied    = "Share link copied to clipboard!"

	shareTitle = "Processed Video Results"
	shareText  = "Check out my processed video results!"
)

// ErrNoResults is returned when the session has nothing to show.
var ErrNoResults = errors.New("no results")

// Store is the part of the session store the results stage uses.
type Store interface {
	CurrentJob(ctx context.Context, sid string) (domain.Job, error)
	Clear(ctx context.Context, sid string) error
}

// View is everything the results page renders.
type View struct {
	Job              domain.Job     `json:"job"`
	Results          domain.Results `json:"results"`
	MediaURL         string         `json:"mediaUrl"`
	OriginalFileName string         `json:"originalFileName"`
	OriginalFileSize string         `json:"originalFileSize"`
	DetectionMode    string         `json:"detectionMode"`
	ObjectsDetected  string         `json:"objectsDetected"`
	AccuracyScore    string         `json:"accuracyScore"`
	ProcessingFrames string         `json:"processingFrames"`
	ProcessingSpeed  string         `json:"processingSpeed"`
}

// Detail is one labelled row of the details dialog.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Download is an open processed video stream.
type Download struct {
	Media    *backend.Media
	Filename string
	Quality  domain.Quality
}

// Stage serves results, downloads and sharing for the current job.
type Stage struct {
	store         Store
	backend       backend.Backend
	publicURL     string
	redirectDelay time.Duration
	logger        *slog.Logger
}

// NewStage wires the results stage.
func NewStage(cfg *config.Config, store Store, be backend.Backend, logger *slog.Logger) *Stage {
	return &Stage{
		store:         store,
		backend:       be,
		publicURL:     cfg.Paths.PublicURL,
		redirectDelay: cfg.Timings().RedirectDelay,
		logger:        logging.NewComponentLogger(logger, stageName),
	}
}

// Load fetches the results of the current job.
func (s *Stage) Load(ctx context.Context, sid string) (View, error) {
	ctx, job, err := s.currentJob(ctx, sid)
	if err != nil {
		return View{}, err
	}
	res, err := s.backend.Results(ctx, job)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "load results failed", "results_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check processing backend availability"),
		)
		return View{}, services.WithUserMessage(services.Wrap(services.ErrExternal, stageName, "load", "", err), msgLoadFailed)
	}
	view := View{
		Job:              job,
		Results:          res,
		MediaURL:         s.publicURL + "/api/results/media",
		DetectionMode:    string(job.Options.DetectionMode),
		ObjectsDetected:  strconv.Itoa(res.Statistics.ObjectsDetected),
		AccuracyScore:    res.Statistics.AccuracyLabel(),
		ProcessingFrames: strconv.Itoa(res.Statistics.ProcessingFrames),
		ProcessingSpeed:  res.Statistics.SpeedLabel(),
	}
	if primary, ok := job.PrimaryFile(); ok {
		view.OriginalFileName = primary.Name
		view.OriginalFileSize = domain.FormatFileSize(primary.Size)
	}
	return view, nil
}

// Details returns the labelled rows of the details dialog.
func (s *Stage) Details(ctx context.Context, sid string) ([]Detail, error) {
	view, err := s.Load(ctx, sid)
	if err != nil {
		return nil, err
	}
	job := view.Job
	processingTime := "-"
	if job.Status.IsTerminal() && !job.UpdatedAt.IsZero() {
		processingTime = domain.FormatClock(job.UpdatedAt.Sub(job.StartTime))
	}
	quality := "Standard"
	if job.Options.HighQuality {
		quality = "High"
	}
	return []Detail{
		{Label: "Job ID", Value: job.ID},
		{Label: "Processing Time", Value: processingTime},
		{Label: "Detection Mode", Value: string(job.Options.DetectionMode)},
		{Label: "Quality", Value: quality},
		{Label: "Objects Detected", Value: view.ObjectsDetected},
		{Label: "Accuracy", Value: view.AccuracyScore},
	}, nil
}

// Download opens the processed video in the requested quality. The caller
// closes Media.Body.
func (s *Stage) Download(ctx context.Context, sid, quality string) (*Download, error) {
	q, err := domain.ParseQuality(quality)
	if err != nil {
		return nil, services.WithUserMessage(services.Wrap(services.ErrValidation, stageName, "download", "", err), err.Error())
	}
	ctx, job, err := s.currentJob(ctx, sid)
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("download started",
		logging.String(logging.FieldEventType, "download_started"),
		logging.String("quality", string(q)),
	)
	media, err := s.backend.Download(ctx, job, q)
	if err != nil {
		logging.ErrorWithContext(logger, "download failed", "download_failed",
			logging.Error(err),
			logging.String("quality", string(q)),
			logging.String(logging.FieldErrorHint, "retry the download"),
		)
		return nil, services.WithUserMessage(services.Wrap(services.ErrExternal, stageName, "download", "", err), msgDownloadFailed)
	}
	return &Download{Media: media, Filename: domain.DownloadFilename(job.ID), Quality: q}, nil
}

// Media opens the high quality video for playback.
func (s *Stage) Media(ctx context.Context, sid string) (*Download, error) {
	return s.Download(ctx, sid, string(domain.QualityHigh))
}

// Share returns the share payload for the current job.
func (s *Stage) Share(ctx context.Context, sid string) (domain.ShareInfo, error) {
	_, job, err := s.currentJob(ctx, sid)
	if err != nil {
		return domain.ShareInfo{}, err
	}
	return domain.ShareInfo{
		Title: shareTitle,
		Text:  shareText,
		URL:   fmt.Sprintf("%s/results/%s", s.publicURL, job.ID),
	}, nil
}

// ProcessAnother clears the session and returns to upload. Job records are
// kept so the job history survives.
func (s *Stage) ProcessAnother(ctx context.Context, sid string) (*domain.Navigation, error) {
	if err := s.store.Clear(ctx, sid); err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "clear session", "", err)
	}
	logging.WithContext(services.WithSessionID(ctx, sid), s.logger).Info("session cleared",
		logging.String(logging.FieldEventType, "session_cleared"),
	)
	return domain.NavigateTo(domain.StageUpload, 0), nil
}

// StartNotice is shown when a download begins.
func StartNotice(q domain.Quality) domain.Notice {
	return domain.Notice{Type: domain.NoticeInfo, Message: fmt.Sprintf("Starting download (%s quality)...", q)}
}

// CompleteNotice is shown when a download finishes.
func CompleteNotice() domain.Notice {
	return domain.Notice{Type: domain.NoticeSuccess, Message: msgDownloadDone}
}

// CopiedNotice is shown when the share link went to the clipboard.
func CopiedNotice() domain.Notice {
	return domain.Notice{Type: domain.NoticeSuccess, Message: msgShareCopied}
}

func (s *Stage) currentJob(ctx context.Context, sid string) (context.Context, domain.Job, error) {
	ctx = services.WithStage(services.WithSessionID(ctx, sid), stageName)
	job, err := s.store.CurrentJob(ctx, sid)
	if err == nil && job.Cancelled() {
		err = fmt.Errorf("%w: job %s was cancelled", ErrNoResults, job.ID)
	}
	if err == nil {
		return services.WithJobID(ctx, job.ID), job, nil
	}
	if errors.Is(err, ErrNoResults) {
		return ctx, domain.Job{}, s.noResults(ctx, err)
	}
	if !errors.Is(err, session.ErrNoCurrentJob) && !errors.Is(err, session.ErrJobNotFound) {
		return ctx, domain.Job{}, services.WithUserMessage(services.Wrap(services.ErrTransient, stageName, "load job", "", err), msgLoadFailed)
	}
	return ctx, domain.Job{}, s.noResults(ctx, errors.Join(ErrNoResults, err))
}

func (s *Stage) noResults(ctx context.Context, cause error) error {
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "no results to show", "results_missing",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "process a video first"),
		logging.String(logging.FieldImpact, "client redirected to upload"),
	)
	wrapped := services.Wrap(services.ErrMissingState, stageName, "load job", "", cause)
	return services.WithUserMessage(services.WithRedirect(wrapped, string(domain.StageUpload), s.redirectDelay), msgNoResults)
}
