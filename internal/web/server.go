package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"minimill/internal/config"
	"minimill/internal/logging"
	"minimill/internal/options"
	"minimill/internal/progress"
	"minimill/internal/results"
	"minimill/internal/session"
	"minimill/internal/upload"
)

// Deps are the stage services the HTTP API exposes.
type Deps struct {
	Config   *config.Config
	Store    *session.Store
	Upload   *upload.Stage
	Options  *options.Stage
	Progress *progress.Manager
	Results  *results.Stage
	Backend  string
	Logger   *slog.Logger
}

// Server serves the workflow API on a local ServeMux.
type Server struct {
	deps      Deps
	bind      string
	token     string
	logger    *slog.Logger
	startedAt time.Time

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// New builds the server and registers every route.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.Store == nil {
		return nil, errors.New("web server requires config and session store")
	}
	logger := logging.NewComponentLogger(deps.Logger, "api")
	s := &Server{
		deps:      deps,
		bind:      strings.TrimSpace(deps.Config.Paths.APIBind),
		token:     deps.Config.Paths.APIToken,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.handler = requestIDMiddleware(recoverMiddleware(logger, authMiddleware(s.token, mux)))
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("DELETE /api/session", s.handleProcessAnother)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)

	mux.HandleFunc("GET /api/upload/files", s.handleListFiles)
	mux.HandleFunc("POST /api/upload/files", s.handleAddFiles)
	mux.HandleFunc("DELETE /api/upload/files", s.handleClearFiles)
	mux.HandleFunc("DELETE /api/upload/files/{index}", s.handleRemoveFile)
	mux.HandleFunc("POST /api/upload/proceed", s.handleProceed)

	mux.HandleFunc("GET /api/options", s.handleOptions)
	mux.HandleFunc("PATCH /api/options", s.handleUpdateOptions)
	mux.HandleFunc("POST /api/options/reset", s.handleResetOptions)
	mux.HandleFunc("DELETE /api/options/files/{index}", s.handleOptionsRemoveFile)
	mux.HandleFunc("POST /api/options/start", s.handleStart)

	mux.HandleFunc("GET /api/progress", s.handleProgress)
	mux.HandleFunc("GET /api/progress/events", s.handleProgressEvents)
	mux.HandleFunc("POST /api/progress/cancel", s.handleCancel)
	mux.HandleFunc("POST /api/progress/choice", s.handleChoice)

	mux.HandleFunc("GET /api/results", s.handleResults)
	mux.HandleFunc("GET /api/results/details", s.handleDetails)
	mux.HandleFunc("GET /api/results/share", s.handleShare)
	mux.HandleFunc("GET /api/results/download", s.handleDownload)
	mux.HandleFunc("GET /api/results/media", s.handleMedia)
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured bind address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) pid() int { return os.Getpid() }
