package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"minimill/internal/api"
	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/services"
)

func writeEnvelope(w http.ResponseWriter, status int, data any, notice *domain.Notice, navigate *domain.Navigation) {
	env := api.Envelope{Notice: notice, Navigate: navigate}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			status = http.StatusInternalServerError
			env = api.Envelope{Notice: &domain.Notice{Type: domain.NoticeError, Message: msgUnexpected}}
		} else {
			env.Data = raw
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeOK(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, data, nil, nil)
}

// writeError maps an error onto the status code, notice and navigation the
// client should act on.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	notice := &domain.Notice{Type: domain.NoticeError, Message: msgUnexpected}
	if msg, ok := services.UserMessage(err); ok {
		notice.Message = msg
	}
	if errors.Is(err, services.ErrValidation) {
		notice.Type = domain.NoticeWarning
		if _, ok := services.UserMessage(err); !ok {
			notice.Message = msgInvalid
		}
	}
	var navigate *domain.Navigation
	if redirect, ok := services.RedirectOf(err); ok {
		navigate = domain.NavigateTo(domain.Stage(redirect.Stage), redirect.Delay)
	}

	logger := logging.WithContext(r.Context(), s.logger)
	attrs := []logging.Attr{
		logging.String("method", r.Method),
		logging.String("path", r.URL.Path),
		logging.Int("status", status),
		logging.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "request failed", "api_request_failed", attrs...)
	} else {
		logger.Debug("request rejected", logging.Args(attrs...)...)
	}
	writeEnvelope(w, status, nil, notice, navigate)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrMissingState):
		return http.StatusConflict
	case errors.Is(err, services.ErrExternal), errors.Is(err, services.ErrTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return services.WithUserMessage(services.Wrap(services.ErrValidation, "api", "decode request", "", err), "Invalid request body.")
	}
	return nil
}
