package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"minimill/internal/logging"
	"minimill/internal/results"
)

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	view, err := s.deps.Results.Load(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, view)
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	details, err := s.deps.Results.Details(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, details)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	info, err := s.deps.Results.Share(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, info)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	dl, err := s.deps.Results.Download(ctx, sid, r.URL.Query().Get("quality"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	s.serveMedia(w, r, dl)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	ctx, sid := sessionID(w, r)
	dl, err := s.deps.Results.Media(ctx, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.serveMedia(w, r, dl)
}

// serveMedia streams a processed video. Seekable bodies get range support.
func (s *Server) serveMedia(w http.ResponseWriter, r *http.Request, dl *results.Download) {
	body := dl.Media.Body
	defer body.Close()

	if dl.Media.ContentType != "" {
		w.Header().Set("Content-Type", dl.Media.ContentType)
	}
	if seeker, ok := body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, dl.Filename, dl.Media.ModTime, seeker)
		return
	}
	if dl.Media.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Media.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "media stream interrupted", "media_stream_failed",
			logging.Error(err),
			logging.String("file", dl.Filename),
		)
	}
}
