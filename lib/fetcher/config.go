package fetcher

import "github.com/lumenarr/seedr/utils/backoff"

// Config defines Fetcher configuration.
type Config struct {
	// DownloadDir is the local root all payloads land under.
	DownloadDir string `yaml:"download_dir"`

	// ResumeThreshold is the fraction of the declared cloud size a local
	// file must already hold to be skipped on restart. Raise to 1.0 for
	// strict re-download of partial files.
	ResumeThreshold float64 `yaml:"resume_threshold"`

	// Backoff schedules per-mapping retry after failed copies.
	Backoff backoff.Config `yaml:"backoff"`
}

func (c Config) applyDefaults() Config {
	if c.ResumeThreshold == 0 {
		c.ResumeThreshold = 0.95
	}
	// Retry windows surface in user-visible messages, so keep them exact.
	c.Backoff.NoJitter = true
	return c
}
