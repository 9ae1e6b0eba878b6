package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeUpload()
	c.normalizeProcessing()
	c.normalizeSimulation()
	c.normalizeBackend()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv(envAPIToken); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	c.Paths.PublicURL = strings.TrimRight(strings.TrimSpace(c.Paths.PublicURL), "/")
	if c.Paths.PublicURL == "" {
		c.Paths.PublicURL = c.APIBaseURL()
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "", "sqlite", "sqlite3":
		c.Store.Driver = "sqlite"
	case "postgresql", "pgx":
		c.Store.Driver = "postgres"
	}
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.DSN == "" {
		if value, ok := os.LookupEnv(envStoreDSN); ok {
			c.Store.DSN = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeUpload() {
	if c.Upload.MaxFileMiB == 0 {
		c.Upload.MaxFileMiB = defaultMaxFileMiB
	}
	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = append([]string(nil), DefaultAllowedTypes...)
		return
	}
	types := make([]string, 0, len(c.Upload.AllowedTypes))
	seen := make(map[string]struct{}, len(c.Upload.AllowedTypes))
	for _, value := range c.Upload.AllowedTypes {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		types = append(types, normalized)
	}
	c.Upload.AllowedTypes = types
}

func (c *Config) normalizeProcessing() {
	c.Processing.DefaultMode = strings.ToLower(strings.TrimSpace(c.Processing.DefaultMode))
	if c.Processing.DefaultMode == "" {
		c.Processing.DefaultMode = defaultMode
	}
	if c.Processing.MinutesPerFile == 0 {
		c.Processing.MinutesPerFile = defaultMinutesPerFile
	}
}

func (c *Config) normalizeSimulation() {
	s := &c.Simulation
	if s.DurationSeconds == 0 {
		s.DurationSeconds = defaultDurationSeconds
	}
	if s.ProgressIntervalMS == 0 {
		s.ProgressIntervalMS = defaultProgressIntervalMS
	}
	if s.StatusPollMS == 0 {
		s.StatusPollMS = defaultStatusPollMS
	}
	if s.ClockIntervalMS == 0 {
		s.ClockIntervalMS = defaultClockIntervalMS
	}
}

func (c *Config) normalizeBackend() {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaultBackendBaseURL
	}
	if c.Backend.RequestTimeout == 0 {
		c.Backend.RequestTimeout = defaultBackendTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(envNtfyTopic); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.Email = strings.TrimSpace(c.Notifications.Email)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
