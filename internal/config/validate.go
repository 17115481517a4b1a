package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageSQLite, StorageFile:
		return nil
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (expected %q or %q)", c.Storage.Backend, StorageSQLite, StorageFile)
	}
}

func (c *Config) validateAPI() error {
	if err := validateHTTPURL("api.base_url", c.API.BaseURL); err != nil {
		return err
	}
	if c.API.TimeoutSeconds <= 0 {
		return errors.New("api.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	if err := validateHTTPURL("connectivity.probe_url", c.Connectivity.ProbeURL); err != nil {
		return err
	}
	if c.Connectivity.ProbeExpectedStatus < 100 || c.Connectivity.ProbeExpectedStatus > 599 {
		return errors.New("connectivity.probe_expected_status must be a valid HTTP status code")
	}
	if c.Connectivity.ProbeIntervalSeconds <= 0 {
		return errors.New("connectivity.probe_interval_seconds must be positive")
	}
	if c.Connectivity.ProbeTimeoutSeconds <= 0 {
		return errors.New("connectivity.probe_timeout_seconds must be positive")
	}
	if c.Connectivity.ProbeTimeoutSeconds > c.Connectivity.ProbeIntervalSeconds {
		return errors.New("connectivity.probe_timeout_seconds must not exceed connectivity.probe_interval_seconds")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.RetryIntervalSeconds < 0 {
		return errors.New("sync.retry_interval_seconds must be >= 0 (0 disables the retry timer)")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func validateHTTPURL(key, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", key)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}
