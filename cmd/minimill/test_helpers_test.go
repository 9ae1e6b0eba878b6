package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"minimill/internal/backend"
	"minimill/internal/config"
	"minimill/internal/logging"
	"minimill/internal/options"
	"minimill/internal/progress"
	"minimill/internal/results"
	"minimill/internal/session"
	"minimill/internal/testsupport"
	"minimill/internal/upload"
	"minimill/internal/web"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *session.Store
	server     *httptest.Server
	configPath string
	baseDir    string
}

// setupCLITestEnv serves the web API over httptest and writes a config
// file pointing at the same temp directories.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	be := backend.NewSimulator(cfg.Timings())
	logger := logging.NewNop()

	mgr := progress.NewManager(cfg, store, be, nil, logger)
	t.Cleanup(mgr.Shutdown)

	srv, err := web.New(web.Deps{
		Config:   cfg,
		Store:    store,
		Upload:   upload.NewStage(cfg, store, logger),
		Options:  options.NewStage(cfg, store, be, mgr, logger),
		Progress: mgr,
		Results:  results.NewStage(cfg, store, be, logger),
		Backend:  be.Name(),
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("web.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		server:     ts,
		configPath: configPath,
		baseDir:    base,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCLI(t, args, e.server.URL, e.configPath)
	return out, err
}

func runCLI(t *testing.T, args []string, api, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if api != "" {
		flags = append(flags, "--api", api)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
