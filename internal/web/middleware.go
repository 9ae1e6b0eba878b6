package web

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/services"
)

const (
	headerRequestID = "X-Request-ID"
	msgUnexpected   = "An unexpected error occurred. Please try again."
	msgInvalid      = "Invalid request."
)

// authMiddleware validates bearer tokens. An empty token disables the check.
func authMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			writeEnvelope(w, http.StatusUnauthorized, nil, &domain.Notice{Type: domain.NoticeError, Message: "unauthorized"}, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware tags each request with an id, reusing the caller's.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

// recoverMiddleware turns panics into the generic 500 envelope.
func recoverMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logging.ErrorWithContext(logging.WithContext(r.Context(), logger), "handler panic", "api_panic",
				logging.Any("panic", rec),
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.String("stack", string(debug.Stack())),
			)
			writeEnvelope(w, http.StatusInternalServerError, nil, &domain.Notice{Type: domain.NoticeError, Message: msgUnexpected}, nil)
		}()
		next.ServeHTTP(w, r)
	})
}
