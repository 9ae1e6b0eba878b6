package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrValidation marks rejected input: a file, a mode or a quality value.
	ErrValidation = errors.New("validation error")
	// ErrTransient marks a failure worth retrying by the user, such as a
	// network error while talking to the processing backend.
	ErrTransient = errors.New("transient failure")
	// ErrExternal marks a non-2xx answer from the processing backend.
	ErrExternal = errors.New("external service error")
	// ErrMissingState marks a stage entered without the session state it
	// depends on, for example no current job.
	ErrMissingState = errors.New("missing state")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// UserError pairs an internal error with the message shown to the user.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Err.Error()
}

func (e *UserError) Unwrap() error { return e.Err }

// WithUserMessage attaches a user-facing message to err.
func WithUserMessage(err error, message string) error {
	if err == nil {
		return nil
	}
	return &UserError{Message: message, Err: err}
}

// UserMessage returns the outermost user-facing message attached to err.
func UserMessage(err error) (string, bool) {
	var ue *UserError
	if errors.As(err, &ue) && strings.TrimSpace(ue.Message) != "" {
		return ue.Message, true
	}
	return "", false
}

// RedirectError asks the client to leave the current stage after an error.
type RedirectError struct {
	Stage string
	Delay time.Duration
	Err   error
}

func (e *RedirectError) Error() string {
	if e.Err == nil {
		return "redirect to " + e.Stage
	}
	return e.Err.Error()
}

func (e *RedirectError) Unwrap() error { return e.Err }

// WithRedirect attaches a navigation hint to err.
func WithRedirect(err error, stage string, delay time.Duration) error {
	if err == nil {
		return nil
	}
	return &RedirectError{Stage: stage, Delay: delay, Err: err}
}

// RedirectOf returns the navigation hint attached to err, if any.
func RedirectOf(err error) (*RedirectError, bool) {
	var re *RedirectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
