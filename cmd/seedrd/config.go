package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/lumenarr/seedr/lib/adapter"
	"github.com/lumenarr/seedr/lib/fetcher"
	"github.com/lumenarr/seedr/lib/ownership"
	"github.com/lumenarr/seedr/lib/seedrapi"
	"github.com/lumenarr/seedr/metrics"
)

// Config defines seedrd configuration.
type Config struct {
	ZapLogging   zap.Config       `yaml:"zap_logging"`
	Metrics      metrics.Config   `yaml:"metrics"`
	API          seedrapi.Config  `yaml:"api"`
	Adapter      adapter.Config   `yaml:"adapter"`
	Fetcher      fetcher.Config   `yaml:"fetcher"`
	Ownership    ownership.Config `yaml:"ownership"`
	PollInterval time.Duration    `yaml:"poll_interval"`
}

func (c Config) applyDefaults() Config {
	if c.PollInterval == 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.Fetcher.DownloadDir == "" {
		c.Fetcher.DownloadDir = c.Adapter.DownloadDir
	}
	return c
}
