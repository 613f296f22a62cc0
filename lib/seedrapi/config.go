package seedrapi

import "time"

// Config defines Client configuration.
type Config struct {
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// Timeout bounds metadata calls; DownloadTimeout bounds file streams,
	// which can run for tens of minutes on large payloads.
	Timeout         time.Duration `yaml:"timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`

	// Extra attempts on transient failures. Listing and deletes are
	// idempotent but cheap to re-poll, so they default to no retry.
	// Non-idempotent adds are never retried regardless of configuration.
	ListRetries int `yaml:"list_retries"`

	// DownloadRetries defaults to 2. Unset means the default; an explicit
	// zero disables retries.
	DownloadRetries *int `yaml:"download_retries"`
}

func (c Config) applyDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.seedr.cc/rest"
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.DownloadTimeout == 0 {
		c.DownloadTimeout = 30 * time.Minute
	}
	return c
}

func (c Config) downloadRetries() int {
	if c.DownloadRetries == nil {
		return 2
	}
	return *c.DownloadRetries
}
