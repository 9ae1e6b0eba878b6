package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"minimill/internal/apiclient"
	"minimill/internal/config"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) apiAddress(cfg *config.Config) string {
	if c.apiFlag != nil {
		if value := strings.TrimSpace(*c.apiFlag); value != "" {
			return value
		}
	}
	return cfg.APIBaseURL()
}

// withClient runs fn against the daemon on behalf of the CLI session.
func (c *commandContext) withClient(fn func(*apiclient.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	sid, err := loadSessionID(cfg.CLISessionPath())
	if err != nil {
		return err
	}
	address := c.apiAddress(cfg)
	client, err := apiclient.New(address, cfg.Paths.APIToken, sid)
	if err != nil {
		return fmt.Errorf("daemon address %q: %w", address, err)
	}
	if err := fn(client); err != nil {
		return wrapDialError(err, address)
	}
	return nil
}

func wrapDialError(err error, address string) error {
	if apiclient.IsAPIUnavailable(err) {
		return fmt.Errorf("connect to daemon: %s is not answering; start the daemon with `minimill serve`", address)
	}
	return err
}

// loadSessionID returns the CLI's session id, creating one on first use.
func loadSessionID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if sid := strings.TrimSpace(string(data)); sid != "" {
			return sid, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read cli session: %w", err)
	}

	sid := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create cli session directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sid+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write cli session: %w", err)
	}
	return sid, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
