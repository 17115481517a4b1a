package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	envAPIToken   = "FIELDSYNC_API_TOKEN"
	envAPIBaseURL = "FIELDSYNC_API_BASE_URL"
	envNtfyTopic  = "FIELDSYNC_NTFY_TOPIC"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeAPI()
	c.normalizeConnectivity()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
}

func (c *Config) normalizeAPI() {
	if value, ok := os.LookupEnv(envAPIBaseURL); ok && strings.TrimSpace(value) != "" {
		c.API.BaseURL = value
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultAPIBaseURL
	}
	if c.API.Token == "" {
		if value, ok := os.LookupEnv(envAPIToken); ok {
			c.API.Token = value
		}
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
}

func (c *Config) normalizeConnectivity() {
	c.Connectivity.ProbeURL = strings.TrimSpace(c.Connectivity.ProbeURL)
	if c.Connectivity.ProbeURL == "" {
		c.Connectivity.ProbeURL = defaultProbeURL
	}
	if c.Connectivity.ProbeExpectedStatus == 0 {
		c.Connectivity.ProbeExpectedStatus = defaultProbeExpectedStatus
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(envNtfyTopic); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
