package api

import (
	"encoding/json"

	"minimill/internal/domain"
	"minimill/internal/progress"
)

// Envelope wraps every API response. Data carries the stage payload; notice
// and navigate tell the client what to show and where to go next.
type Envelope struct {
	Data     json.RawMessage    `json:"data,omitempty"`
	Notice   *domain.Notice     `json:"notice,omitempty"`
	Navigate *domain.Navigation `json:"navigate,omitempty"`
}

// Decode unmarshals the envelope data into dst.
func (e Envelope) Decode(dst any) error {
	if len(e.Data) == 0 || dst == nil {
		return nil
	}
	return json.Unmarshal(e.Data, dst)
}

// HealthResponse reports daemon and store readiness.
type HealthResponse struct {
	Status        string `json:"status"`
	Backend       string `json:"backend"`
	StoreDriver   string `json:"storeDriver"`
	StoreLocation string `json:"storeLocation"`
	SchemaVersion int    `json:"schemaVersion"`
	Sessions      int    `json:"sessions"`
	Jobs          int    `json:"jobs"`
	ActiveJobs    int    `json:"activeJobs"`
	PID           int    `json:"pid"`
	StartedAt     string `json:"startedAt,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SessionResponse is the whole session state for one client.
type SessionResponse struct {
	SessionID    string                   `json:"sessionId"`
	Files        []domain.FileMetadata    `json:"files"`
	Options      domain.ProcessingOptions `json:"options"`
	CurrentJobID string                   `json:"currentJobId,omitempty"`
	Stage        domain.Stage             `json:"stage"`
}

// AddFilesRequest submits file metadata picked or dropped by the client.
type AddFilesRequest struct {
	Source string                `json:"source"`
	Files  []domain.FileMetadata `json:"files"`
}

// ChoiceRequest answers the retry/restart prompt.
type ChoiceRequest struct {
	Choice string `json:"choice"`
}

// EventsResponse carries progress events newer than the requested sequence.
type EventsResponse struct {
	Events []progress.Event `json:"events"`
	Next   int64            `json:"next"`
}

// JobsResponse lists the session's job records, newest first.
type JobsResponse struct {
	Jobs []domain.Job `json:"jobs"`
}
