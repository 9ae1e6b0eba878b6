package web

import (
	"net/http"
	"strconv"
	"strings"

	"minimill/internal/api"
	"minimill/internal/progress"
	"minimill/internal/services"
)

// handleProgress attaches to the session's current job and returns its
// snapshot. Pending notices and navigation ride along in the envelope.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	snap, err := s.deps.Progress.Attach(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, snap, snap.Notice, snap.Navigate)
}

func (s *Server) handleProgressEvents(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	var since int64
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			s.writeError(w, r, services.WithUserMessage(
				services.Wrap(services.ErrValidation, "progress", "parse since", raw, err),
				"since must be a non-negative sequence number.",
			))
			return
		}
		since = parsed
	}
	events, err := s.deps.Progress.Events(ctx, sid, since)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	next := since
	if n := len(events); n > 0 {
		next = events[n-1].Seq
	}
	if events == nil {
		events = []progress.Event{}
	}
	writeOK(w, api.EventsResponse{Events: events, Next: next})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	snap, err := s.deps.Progress.Cancel(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, snap, snap.Notice, snap.Navigate)
}

func (s *Server) handleChoice(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	var req api.ChoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	choice, err := progress.ParseChoice(req.Choice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	nav, err := s.deps.Progress.Choose(ctx, sid, choice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, nil, nil, nav)
}
