package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
	PublicURL string `toml:"public_url"`
}

// Store selects the session store backend.
type Store struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Upload contains the file acceptance rules for the upload stage.
type Upload struct {
	MaxFileMiB   int64    `toml:"max_file_mib"`
	AllowedTypes []string `toml:"allowed_types"`
}

// Processing contains option defaults and the duration estimate base.
type Processing struct {
	DefaultMode              string `toml:"default_mode"`
	DefaultHighQuality       bool   `toml:"default_high_quality"`
	DefaultEmailNotification bool   `toml:"default_email_notification"`
	MinutesPerFile           int    `toml:"minutes_per_file"`
}

// Simulation contains the timings of the client-side processing simulation.
type Simulation struct {
	DurationSeconds    int     `toml:"duration_seconds"`
	ProgressIntervalMS int     `toml:"progress_interval_ms"`
	StatusPollMS       int     `toml:"status_poll_ms"`
	ClockIntervalMS    int     `toml:"clock_interval_ms"`
	StartLatencyMS     int     `toml:"start_latency_ms"`
	PollLatencyMS      int     `toml:"poll_latency_ms"`
	ResultsLatencyMS   int     `toml:"results_latency_ms"`
	CompletionDelayMS  int     `toml:"completion_delay_ms"`
	CancelDelayMS      int     `toml:"cancel_delay_ms"`
	RedirectDelayMS    int     `toml:"redirect_delay_ms"`
	FailureRate        float64 `toml:"failure_rate"`
}

// Backend configures the optional external processing backend.
type Backend struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	Email          string `toml:"email"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for minimill.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories, API bind address and public URL
//   - Store: session store driver (sqlite or postgres)
//   - Upload: accepted MIME types and size limit
//   - Processing: option defaults and estimate base
//   - Simulation: timers driving the simulated processing run
//   - Backend: optional external processing backend
//   - Notifications: ntfy push/email notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Upload        Upload        `toml:"upload"`
	Processing    Processing    `toml:"processing"`
	Simulation    Simulation    `toml:"simulation"`
	Backend       Backend       `toml:"backend"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/minimill/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("minimill.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionDBPath returns the SQLite session database location.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Paths.DataDir, "session.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "minimilld.lock")
}

// CLISessionPath returns the file holding the CLI's session id.
func (c *Config) CLISessionPath() string {
	return filepath.Join(c.Paths.DataDir, "cli-session")
}

// MaxFileBytes returns the upload size limit in bytes.
func (c *Config) MaxFileBytes() int64 {
	return c.Upload.MaxFileMiB * 1024 * 1024
}

// APIBaseURL returns the HTTP base URL clients use to reach the daemon.
func (c *Config) APIBaseURL() string {
	bind := strings.TrimSpace(c.Paths.APIBind)
	if strings.Contains(bind, "://") {
		return strings.TrimRight(bind, "/")
	}
	return "http://" + bind
}

// SimulationTimings converts the millisecond knobs into durations.
type SimulationTimings struct {
	Duration         time.Duration
	ProgressInterval time.Duration
	StatusPoll       time.Duration
	ClockInterval    time.Duration
	StartLatency     time.Duration
	PollLatency      time.Duration
	ResultsLatency   time.Duration
	CompletionDelay  time.Duration
	CancelDelay      time.Duration
	RedirectDelay    time.Duration
	FailureRate      float64
}

// Timings returns the simulation section as durations.
func (c *Config) Timings() SimulationTimings {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return SimulationTimings{
		Duration:         time.Duration(c.Simulation.DurationSeconds) * time.Second,
		ProgressInterval: ms(c.Simulation.ProgressIntervalMS),
		StatusPoll:       ms(c.Simulation.StatusPollMS),
		ClockInterval:    ms(c.Simulation.ClockIntervalMS),
		StartLatency:     ms(c.Simulation.StartLatencyMS),
		PollLatency:      ms(c.Simulation.PollLatencyMS),
		ResultsLatency:   ms(c.Simulation.ResultsLatencyMS),
		CompletionDelay:  ms(c.Simulation.CompletionDelayMS),
		CancelDelay:      ms(c.Simulation.CancelDelayMS),
		RedirectDelay:    ms(c.Simulation.RedirectDelayMS),
		FailureRate:      c.Simulation.FailureRate,
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
