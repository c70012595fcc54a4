package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds harvester configuration.
type Config struct {
	BaseURL          string
	PageSize         int
	Delay            time.Duration
	RandomDelay      time.Duration
	Timeout          time.Duration
	OutputFile       string // derived from the target name when empty
	OutputDir        string
	OutputFormat     string // csv, json, dual, or sqlite
	UserAgent        string
	Verbose          bool
	MetricsAddr      string
	RespectRobotsTxt bool
}

// DefaultConfig returns conservative defaults for the review site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "",
		PageSize:         10,
		Delay:            0,
		RandomDelay:      0,
		Timeout:          30 * time.Second,
		OutputFile:       "",
		OutputDir:        ".",
		OutputFormat:     "csv",
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
		Verbose:          false,
		MetricsAddr:      "",
		RespectRobotsTxt: false,
	}
}

// Validate ensures all configuration values are coherent. BaseURL may be
// empty here since it can still be read interactively.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		if err := ValidateURL(c.BaseURL); err != nil {
			return err
		}
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.OutputFile == "" && c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty when no output file is set")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual", "sqlite":
	default:
		return fmt.Errorf("output format must be csv, json, dual, or sqlite")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// ValidateURL checks that raw is an absolute URL with a host.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	return nil
}
