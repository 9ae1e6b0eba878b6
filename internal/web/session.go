package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"minimill/internal/domain"
	"minimill/internal/services"
)

const (
	sessionCookie = "minimill_session"
	sessionHeader = "X-Session-ID"
	sessionMaxAge = 30 * 24 * 60 * 60
)

// sessionID resolves the caller's session, minting one (and setting the
// cookie) on first contact. The header wins over the cookie.
func sessionID(w http.ResponseWriter, r *http.Request) (context.Context, string) {
	sid := strings.TrimSpace(r.Header.Get(sessionHeader))
	if sid == "" {
		if cookie, err := r.Cookie(sessionCookie); err == nil {
			sid = strings.TrimSpace(cookie.Value)
		}
	}
	if sid == "" {
		sid = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sid,
			Path:     "/",
			MaxAge:   sessionMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.Header().Set(sessionHeader, sid)
	return services.WithSessionID(r.Context(), sid), sid
}

// stageFor derives which page a session belongs on from its current job.
// A cancelled job sends the session back to upload.
func stageFor(job *domain.Job) domain.Stage {
	if job != nil && !job.Cancelled() {
		switch job.Status {
		case domain.JobProcessing, domain.JobFailed:
			return domain.StageProgress
		case domain.JobCompleted:
			return domain.StageResults
		}
	}
	return domain.StageUpload
}
