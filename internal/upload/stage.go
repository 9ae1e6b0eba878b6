package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"minimill/internal/config"
	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/services"
)

// Source records how files reached the stage. Both converge on the same
// validation.
type Source string

const (
	SourcePicker Source = "picker"
	SourceDrop   Source = "drop"
)

// ParseSource maps user input to a Source, defaulting to the picker.
func ParseSource(value string) (Source, error) {
	switch Source(value) {
	case "", SourcePicker:
		return SourcePicker, nil
	case SourceDrop:
		return SourceDrop, nil
	default:
		return "", fmt.Errorf("source must be picker or drop (got %q)", value)
	}
}

const (
	msgEmptySelection = "Please select at least one video file."
	stageName         = "upload"
)

// ErrEmptySelection is returned by Proceed when nothing is selected.
var ErrEmptySelection = errors.New("empty selection")

// FileStore is the part of the session store the upload stage uses.
type FileStore interface {
	LoadFiles(ctx context.Context, sid string) ([]domain.FileMetadata, error)
	SaveFiles(ctx context.Context, sid string, files []domain.FileMetadata) error
}

// Result is the selection after an upload stage operation.
type Result struct {
	Selected   []domain.FileMetadata `json:"selected"`
	Rejected   []Rejection           `json:"rejected,omitempty"`
	Added      int                   `json:"added"`
	TotalSize  int64                 `json:"totalSize"`
	CanProceed bool                  `json:"canProceed"`
}

func newResult(selected []domain.FileMetadata, rejected []Rejection, added int) Result {
	var total int64
	for _, f := range selected {
		total += f.Size
	}
	return Result{
		Selected:   selected,
		Rejected:   rejected,
		Added:      added,
		TotalSize:  total,
		CanProceed: len(selected) > 0,
	}
}

// Stage validates and collects files into the session selection.
type Stage struct {
	store     FileStore
	validator *Validator
	logger    *slog.Logger
}

// NewStage wires the upload stage.
func NewStage(cfg *config.Config, store FileStore, logger *slog.Logger) *Stage {
	return &Stage{
		store:     store,
		validator: NewValidator(cfg.Upload.AllowedTypes, cfg.MaxFileBytes()),
		logger:    logging.NewComponentLogger(logger, stageName),
	}
}

// Validator exposes the configured validator.
func (s *Stage) Validator() *Validator { return s.validator }

// Add validates candidates and appends the accepted ones to the selection.
// Duplicates are allowed. Rejections are per file and never fail the call.
func (s *Stage) Add(ctx context.Context, sid string, source Source, candidates []domain.FileMetadata) (Result, error) {
	ctx = services.WithStage(services.WithSessionID(ctx, sid), stageName)
	logger := logging.WithContext(ctx, s.logger)

	current, err := s.store.LoadFiles(ctx, sid)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "load selection", "", err)
	}
	valid, rejected := s.validator.Partition(candidates)
	selected := append(current, valid...)
	if err := s.store.SaveFiles(ctx, sid, selected); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "save selection", "", err)
	}

	for _, r := range rejected {
		logger.Info("file rejected",
			logging.String("file", r.Name),
			logging.String("reason", r.Message),
			logging.String(logging.FieldEventType, "file_rejected"),
		)
	}
	logger.Info("files added",
		logging.String("source", string(source)),
		logging.Int("added", len(valid)),
		logging.Int("rejected", len(rejected)),
		logging.Int("selected", len(selected)),
	)
	return newResult(selected, rejected, len(valid)), nil
}

// Remove drops the file at index from the selection.
func (s *Stage) Remove(ctx context.Context, sid string, index int) (Result, error) {
	current, err := s.store.LoadFiles(ctx, sid)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "load selection", "", err)
	}
	next, err := RemoveAt(current, index)
	if err != nil {
		return Result{}, err
	}
	if err := s.store.SaveFiles(ctx, sid, next); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "save selection", "", err)
	}
	return newResult(next, nil, 0), nil
}

// Selection returns the current selection.
func (s *Stage) Selection(ctx context.Context, sid string) (Result, error) {
	current, err := s.store.LoadFiles(ctx, sid)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "load selection", "", err)
	}
	return newResult(current, nil, 0), nil
}

// Clear empties the selection.
func (s *Stage) Clear(ctx context.Context, sid string) (Result, error) {
	if err := s.store.SaveFiles(ctx, sid, nil); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "save selection", "", err)
	}
	return newResult([]domain.FileMetadata{}, nil, 0), nil
}

// Proceed checks the selection gate and returns the navigation to options.
func (s *Stage) Proceed(ctx context.Context, sid string) (*domain.Navigation, error) {
	current, err := s.store.LoadFiles(ctx, sid)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "load selection", "", err)
	}
	if len(current) == 0 {
		return nil, services.WithUserMessage(
			services.Wrap(services.ErrValidation, stageName, "proceed", "", ErrEmptySelection),
			msgEmptySelection,
		)
	}
	return domain.NavigateTo(domain.StageOptions, 0), nil
}

// RemoveAt returns files without the entry at index.
func RemoveAt(files []domain.FileMetadata, index int) ([]domain.FileMetadata, error) {
	if index < 0 || index >= len(files) {
		return nil, services.Wrap(services.ErrValidation, stageName, "remove", fmt.Sprintf("no file at index %d", index), nil)
	}
	next := make([]domain.FileMetadata, 0, len(files)-1)
	next = append(next, files[:index]...)
	return append(next, files[index+1:]...), nil
}
