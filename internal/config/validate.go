package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var validModes = map[string]struct{}{
	"4mm":  {},
	"6mm":  {},
	"8mm":  {},
	"10mm": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateSimulation(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "sqlite":
		return nil
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.driver is postgres (or set %s)", envStoreDSN)
		}
		return nil
	default:
		return fmt.Errorf("store.driver: unsupported value %q", c.Store.Driver)
	}
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxFileMiB <= 0 {
		return errors.New("upload.max_file_mib must be positive")
	}
	if len(c.Upload.AllowedTypes) == 0 {
		return errors.New("upload.allowed_types must include at least one MIME type")
	}
	for _, value := range c.Upload.AllowedTypes {
		if !strings.Contains(value, "/") {
			return fmt.Errorf("upload.allowed_types: %q is not a MIME type", value)
		}
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if _, ok := validModes[c.Processing.DefaultMode]; !ok {
		return fmt.Errorf("processing.default_mode must be one of 4mm, 6mm, 8mm, 10mm (got %q)", c.Processing.DefaultMode)
	}
	if c.Processing.MinutesPerFile <= 0 {
		return errors.New("processing.minutes_per_file must be positive")
	}
	return nil
}

func (c *Config) validateSimulation() error {
	if err := ensurePositiveMap(map[string]int{
		"simulation.duration_seconds":     c.Simulation.DurationSeconds,
		"simulation.progress_interval_ms": c.Simulation.ProgressIntervalMS,
		"simulation.status_poll_ms":       c.Simulation.StatusPollMS,
		"simulation.clock_interval_ms":    c.Simulation.ClockIntervalMS,
	}); err != nil {
		return err
	}
	if err := ensureNonNegativeMap(map[string]int{
		"simulation.start_latency_ms":    c.Simulation.StartLatencyMS,
		"simulation.poll_latency_ms":     c.Simulation.PollLatencyMS,
		"simulation.results_latency_ms":  c.Simulation.ResultsLatencyMS,
		"simulation.completion_delay_ms": c.Simulation.CompletionDelayMS,
		"simulation.cancel_delay_ms":     c.Simulation.CancelDelayMS,
		"simulation.redirect_delay_ms":   c.Simulation.RedirectDelayMS,
	}); err != nil {
		return err
	}
	if c.Simulation.FailureRate < 0 || c.Simulation.FailureRate > 1 {
		return errors.New("simulation.failure_rate must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateBackend() error {
	if !c.Backend.Enabled {
		return nil
	}
	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL (got %q)", c.Backend.BaseURL)
	}
	if c.Backend.RequestTimeout <= 0 {
		return errors.New("backend.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	if c.Notifications.Email != "" && c.Notifications.NtfyTopic == "" {
		return errors.New("notifications.email requires notifications.ntfy_topic")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func ensureNonNegativeMap(values map[string]int) error {
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}
