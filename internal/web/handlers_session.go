package web

import (
	"errors"
	"net/http"
	"time"

	"minimill/internal/api"
	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/session"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:    "ok",
		Backend:   s.deps.Backend,
		PID:       s.pid(),
		StartedAt: s.startedAt.Format(time.RFC3339),
	}
	if s.deps.Progress != nil {
		resp.ActiveJobs = s.deps.Progress.Active()
	}
	health, err := s.deps.Store.Health(r.Context())
	resp.StoreDriver = health.Driver
	resp.StoreLocation = health.Location
	resp.SchemaVersion = health.SchemaVersion
	resp.Sessions = health.Sessions
	resp.Jobs = health.Jobs
	if err != nil {
		resp.Status = "degraded"
		resp.Error = health.Error
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "session store unhealthy", "store_unhealthy",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check store.driver and store.dsn"),
		)
		writeEnvelope(w, http.StatusServiceUnavailable, resp, nil, nil)
		return
	}
	writeOK(w, resp)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	state, err := s.deps.Store.Load(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := api.SessionResponse{
		SessionID:    sid,
		Files:        state.Files,
		Options:      state.Options,
		CurrentJobID: state.CurrentJobID,
		Stage:        domain.StageUpload,
	}
	if state.CurrentJobID != "" {
		job, err := s.deps.Store.LoadJob(ctx, sid, state.CurrentJobID)
		switch {
		case err == nil:
			resp.Stage = stageFor(&job)
		case !errors.Is(err, session.ErrJobNotFound):
			s.writeError(w, r, err)
			return
		}
	}
	if resp.Files == nil {
		resp.Files = []domain.FileMetadata{}
	}
	writeOK(w, resp)
}

// handleProcessAnother clears the session and sends the client back to upload.
func (s *Server) handleProcessAnother(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	nav, err := s.deps.Results.ProcessAnother(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, nil, nil, nav)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	jobs, err := s.deps.Store.ListJobs(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	writeOK(w, api.JobsResponse{Jobs: jobs})
}
