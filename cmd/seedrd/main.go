// seedrd runs the Seedr adapter standalone: it polls the cloud on a fixed
// cadence and logs the reconciled item list. Intended for deployments where
// the collection manager consumes items out of band, and as a smoke-test
// harness for the adapter wiring.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin"
	"github.com/andres-erbsen/clock"

	"github.com/lumenarr/seedr/core"
	"github.com/lumenarr/seedr/lib/adapter"
	"github.com/lumenarr/seedr/lib/fetcher"
	"github.com/lumenarr/seedr/lib/mapping"
	"github.com/lumenarr/seedr/lib/ownership"
	"github.com/lumenarr/seedr/lib/seedrapi"
	"github.com/lumenarr/seedr/metrics"
	"github.com/lumenarr/seedr/utils/configutil"
	"github.com/lumenarr/seedr/utils/log"
)

func main() {
	app := kingpin.New("seedrd", "Seedr cloud download adapter daemon")
	configFile := app.Flag("config", "Configuration file").Required().String()
	pollInterval := app.Flag("poll-interval", "Override the poll cadence").Duration()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	var config Config
	if err := configutil.Load(*configFile, &config); err != nil {
		panic(err)
	}
	config = config.applyDefaults()
	if *pollInterval != 0 {
		config.PollInterval = *pollInterval
	}

	log.ConfigureLogger(config.ZapLogging)

	stats, closer, err := metrics.New(config.Metrics)
	if err != nil {
		log.Fatalf("Failed to init metrics: %s", err)
	}
	defer closer.Close()

	cloud, err := seedrapi.New(config.API)
	if err != nil {
		log.Fatalf("Failed to create Seedr client: %s", err)
	}

	var registry ownership.Registry
	if config.Adapter.SharedAccount && config.Ownership.Addr != "" {
		registry, err = ownership.NewRedisRegistry(config.Ownership)
		if err != nil {
			log.Fatalf("Failed to create ownership registry: %s", err)
		}
		defer registry.Close()
	} else if config.Adapter.SharedAccount {
		log.Warnf("Shared account enabled without an ownership registry; " +
			"cloud deletes will not be coordinated")
	}

	clk := clock.New()
	store := mapping.NewStore()
	f := fetcher.New(config.Fetcher, stats, cloud, store, clk)
	a := adapter.New(
		config.Adapter, stats, cloud, registry, store, f,
		adapter.OSDisk{}, adapter.EmptyHistory{},
		adapter.TorrentInfoFunc(core.InfoHashFromTorrent), clk)

	log.Infof("Polling Seedr every %s", config.PollInterval)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	ticker := clk.Ticker(config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, item := range a.GetItems() {
				log.Infof("%s %s: %d/%d bytes remaining %s",
					item.Status, item.Title,
					item.RemainingSize, item.TotalSize, item.Message)
			}
		case sig := <-sigs:
			log.Infof("Received %s, shutting down", sig)
			return
		}
	}
}
