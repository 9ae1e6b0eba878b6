package testsupport

import (
	"path/filepath"
	"testing"

	"minimill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Simulation delays are shortened so stage tests finish quickly; the fixed
// latencies are zero and a simulated run completes after one second.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Paths.PublicURL = "http://minimill.test"
	cfgVal.Simulation = config.Simulation{
		DurationSeconds:    1,
		ProgressIntervalMS: 5,
		StatusPollMS:       20,
		ClockIntervalMS:    10,
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithAPIToken sets the bearer token the API server requires.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithSimulation overrides the simulation section wholesale.
func WithSimulation(sim config.Simulation) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Simulation = sim
	}
}

// WithBackend enables the HTTP processing backend at baseURL.
func WithBackend(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.Enabled = true
		b.cfg.Backend.BaseURL = baseURL
	}
}

// WithNtfyTopic routes notifications to the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
