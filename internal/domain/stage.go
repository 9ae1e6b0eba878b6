package domain

import "time"

// Stage names one page of the workflow.
type Stage string

const (
	StageUpload   Stage = "upload"
	StageOptions  Stage = "options"
	StageProgress Stage = "progress"
	StageResults  Stage = "results"
)

// NoticeType classifies a user-facing notification.
type NoticeType string

const (
	NoticeSuccess NoticeType = "success"
	NoticeError   NoticeType = "error"
	NoticeWarning NoticeType = "warning"
	NoticeInfo    NoticeType = "info"
)

// Notice is a message shown to the user.
type Notice struct {
	Type    NoticeType `json:"type"`
	Message string     `json:"message"`
}

// Navigation tells the client which stage to show next and after what delay.
type Navigation struct {
	Stage   Stage `json:"stage"`
	DelayMS int64 `json:"delayMs"`
}

// NavigateTo builds a navigation hint.
func NavigateTo(stage Stage, delay time.Duration) *Navigation {
	return &Navigation{Stage: stage, DelayMS: delay.Milliseconds()}
}

// Delay returns the navigation delay as a duration.
func (n Navigation) Delay() time.Duration {
	return time.Duration(n.DelayMS) * time.Millisecond
}
