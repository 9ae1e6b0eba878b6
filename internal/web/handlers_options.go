package web

import (
	"net/http"

	"minimill/internal/domain"
)

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	summary, err := s.deps.Options.Summary(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, summary)
}

func (s *Server) handleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	var patch domain.OptionsPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.deps.Options.Update(ctx, sid, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, summary)
}

func (s *Server) handleResetOptions(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	summary, err := s.deps.Options.Reset(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, summary)
}

func (s *Server) handleOptionsRemoveFile(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	index, err := pathIndex(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.deps.Options.RemoveFile(ctx, sid, index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, summary)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	res, err := s.deps.Options.Start(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, res, nil, res.Navigate)
}
