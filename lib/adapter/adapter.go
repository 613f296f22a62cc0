// Package adapter implements the public surface of the Seedr download
// client: a reconciliation engine that fuses the remote cloud inventory,
// the process-local mapping store, the local download directory, and the
// optional cross-instance ownership registry into one consistent view.
package adapter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"

	"github.com/lumenarr/seedr/core"
	"github.com/lumenarr/seedr/lib/fetcher"
	"github.com/lumenarr/seedr/lib/mapping"
	"github.com/lumenarr/seedr/lib/ownership"
	"github.com/lumenarr/seedr/lib/seedrapi"
	"github.com/lumenarr/seedr/utils/fileutil"
	"github.com/lumenarr/seedr/utils/log"
)

// completeFraction is the share of the declared cloud size a local payload
// must hold to count as fully copied.
const completeFraction = 0.95

// CloudClient is the full cloud surface the adapter consumes, implemented
// by seedrapi.Client.
type CloudClient interface {
	fetcher.CloudClient
	RootContents() (*seedrapi.Snapshot, error)
	AddMagnet(magnet string) (*seedrapi.AddResult, error)
	AddTorrentFile(filename string, torrent []byte) (*seedrapi.AddResult, error)
	DeleteTransfer(id int64) error
	DeleteFolder(id int64) error
	DeleteFile(id int64) error
	GetUser() (*seedrapi.User, error)
}

// Release is a grabbed release handed to Submit. Exactly one of MagnetURI
// and Torrent must be set.
type Release struct {
	Title           string
	InfoHash        string
	MagnetURI       string
	TorrentFilename string
	Torrent         []byte
}

// ValidationFailure is a field-scoped problem surfaced by Test.
type ValidationFailure struct {
	Field     string
	Message   string
	IsWarning bool
}

// Validation failure fields.
const (
	FieldEmail       = "email"
	FieldDownloadDir = "downloadDirectory"
	FieldRedis       = "redisConnectionString"
)

// Adapter bridges a movie-collection manager to the Seedr cloud-torrent
// service. Public operations are safe for serial invocation by a single
// polling caller; GetItems additionally serialises itself with an internal
// mutex so misbehaving hosts cannot interleave reconciliations.
type Adapter struct {
	config      Config
	stats       tally.Scope
	cloud       CloudClient
	registry    ownership.Registry
	store       *mapping.Store
	fetcher     *fetcher.Fetcher
	disk        Disk
	history     History
	torrentInfo TorrentInfo
	clk         clock.Clock

	mu        sync.Mutex
	recovered atomic.Bool
}

// New creates a new Adapter. registry may be nil when multi-tenancy is not
// configured; ownership checks then degrade to single-instance behavior.
func New(
	config Config,
	stats tally.Scope,
	cloud CloudClient,
	registry ownership.Registry,
	store *mapping.Store,
	f *fetcher.Fetcher,
	disk Disk,
	history History,
	torrentInfo TorrentInfo,
	clk clock.Clock) *Adapter {

	config = config.applyDefaults()
	return &Adapter{
		config:      config,
		stats:       stats.SubScope("adapter"),
		cloud:       cloud,
		registry:    registry,
		store:       store,
		fetcher:     f,
		disk:        disk,
		history:     history,
		torrentInfo: torrentInfo,
		clk:         clk,
	}
}

// multiTenant reports whether cross-instance ownership is fully configured.
func (a *Adapter) multiTenant() bool {
	return a.config.SharedAccount && a.registry != nil
}

func (a *Adapter) claim(key string) {
	if a.registry != nil {
		a.registry.Claim(key)
	}
}

// Submit registers a release with Seedr and returns the canonical download
// id (the uppercase info-hash, or a synthetic key when no hash is known).
func (a *Adapter) Submit(release Release) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var res *seedrapi.AddResult
	var err error
	switch {
	case release.MagnetURI != "":
		res, err = a.cloud.AddMagnet(release.MagnetURI)
	case len(release.Torrent) > 0:
		res, err = a.cloud.AddTorrentFile(release.TorrentFilename, release.Torrent)
	default:
		return "", errors.New("release has neither magnet uri nor torrent payload")
	}
	if err != nil {
		return "", fmt.Errorf("add transfer: %s", err)
	}

	hash, err := a.resolveHash(release, res)
	if err != nil {
		return "", err
	}

	a.store.Set(mapping.DownloadMapping{
		InfoHash:   hash,
		TransferID: res.ID,
		Name:       res.Name,
	})
	a.claim(hash)
	a.stats.Counter("submits").Inc(1)
	log.Infof("Submitted %q to Seedr as transfer %d (%s)", release.Title, res.ID, hash)
	return hash, nil
}

func (a *Adapter) resolveHash(release Release, res *seedrapi.AddResult) (string, error) {
	if release.InfoHash != "" {
		return strings.ToUpper(release.InfoHash), nil
	}
	if release.MagnetURI != "" {
		if hash, err := core.InfoHashFromMagnet(release.MagnetURI); err == nil {
			return hash, nil
		}
	} else if len(release.Torrent) > 0 && a.torrentInfo != nil {
		if hash, err := a.torrentInfo.InfoHash(release.Torrent); err == nil {
			return strings.ToUpper(hash), nil
		}
	}
	if res.Hash != "" {
		return strings.ToUpper(res.Hash), nil
	}
	return core.SyntheticID(res.ID), nil
}

// RemoveItem drops a download: cloud state if ownership permits, local data
// if requested, and always the mapping.
func (a *Adapter) RemoveItem(downloadID string, deleteLocalData bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.store.Get(downloadID)
	if !ok {
		log.Warnf("Remove requested for unknown download %s", downloadID)
		return
	}
	a.releaseAndDelete(m)
	if deleteLocalData {
		a.removeLocalData(m)
	}
	a.store.Remove(downloadID)
}

// MarkItemAsImported runs after the manager finished importing a completed
// payload. Cloud state is deleted when configured and ownership permits;
// local data is left for the import pipeline. The mapping is always removed.
func (a *Adapter) MarkItemAsImported(downloadID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.store.Get(downloadID)
	if !ok {
		log.Warnf("Import recorded for unknown download %s", downloadID)
		return
	}
	if a.config.deleteFromCloud() {
		a.releaseAndDelete(m)
	}
	a.store.Remove(downloadID)
}

// releaseAndDelete deletes the mapping's cloud state, gated by ownership
// when multi-tenancy is configured. Unknown registry answers are fail-safe:
// shared cloud state is never deleted on a guess.
func (a *Adapter) releaseAndDelete(m mapping.DownloadMapping) {
	if a.multiTenant() {
		switch a.registry.Release(m.InfoHash) {
		case ownership.Yes:
		case ownership.No:
			log.Infof("Peers still own %s; keeping cloud state", m.InfoHash)
			return
		default:
			log.Warnf("Ownership registry unavailable; keeping cloud state for %s", m.InfoHash)
			return
		}
	}
	a.deleteFromCloud(m)
}

// deleteFromCloud tries the mapping's cloud identifiers most-specific
// first; the first one present wins. Errors are logged, never propagated.
func (a *Adapter) deleteFromCloud(m mapping.DownloadMapping) {
	var err error
	switch {
	case m.FolderID != 0:
		err = a.cloud.DeleteFolder(m.FolderID)
	case m.FileID != 0:
		err = a.cloud.DeleteFile(m.FileID)
	case m.TransferID != 0:
		err = a.cloud.DeleteTransfer(m.TransferID)
	default:
		log.Warnf("Mapping %s has no cloud identifiers to delete", m.InfoHash)
		return
	}
	if err != nil {
		log.Warnf("Failed to delete cloud state for %s: %s", m.InfoHash, err)
		return
	}
	a.stats.Counter("cloud_deletes").Inc(1)
}

func (a *Adapter) removeLocalData(m mapping.DownloadMapping) {
	name, err := fileutil.SanitizeName(m.Name)
	if err != nil {
		log.Warnf("Cannot derive local path for %s: %s", m.InfoHash, err)
		return
	}
	path := filepath.Join(a.config.DownloadDir, name)
	if err := a.disk.Remove(path); err != nil {
		log.Warnf("Failed to remove local data at %s: %s", path, err)
	}
}

// Test validates credentials, disk, and registry configuration.
func (a *Adapter) Test() []ValidationFailure {
	var fails []ValidationFailure

	user, err := a.cloud.GetUser()
	if err != nil {
		msg := fmt.Sprintf("Unable to reach Seedr: %s", err)
		if seedrapi.IsAuthError(err) {
			msg = "Seedr rejected the configured credentials"
		}
		fails = append(fails, ValidationFailure{Field: FieldEmail, Message: msg})
	} else if user.SpaceMax > 0 &&
		float64(user.SpaceUsed)/float64(user.SpaceMax) >= 0.90 {
		fails = append(fails, ValidationFailure{
			Field:     FieldEmail,
			Message:   "Seedr account is over 90% full",
			IsWarning: true,
		})
	}

	if err := a.disk.Writable(a.config.DownloadDir); err != nil {
		fails = append(fails, ValidationFailure{
			Field:   FieldDownloadDir,
			Message: fmt.Sprintf("Download directory is not usable: %s", err),
		})
	}

	if a.multiTenant() {
		if err := a.registry.TestConnection(); err != nil {
			fails = append(fails, ValidationFailure{
				Field:   FieldRedis,
				Message: fmt.Sprintf("Ownership registry unreachable: %s", err),
			})
		}
	} else if a.config.SharedAccount {
		fails = append(fails, ValidationFailure{
			Field:     FieldRedis,
			Message:   "Shared account is enabled but no ownership registry is configured",
			IsWarning: true,
		})
	}
	return fails
}

// GrabMetadata returns the metadata the surrounding history pipeline must
// persist to make a mapping recoverable after a restart.
func (a *Adapter) GrabMetadata(downloadID string) map[string]string {
	m, ok := a.store.Get(downloadID)
	if !ok {
		return nil
	}
	md := map[string]string{"SeedrName": m.Name}
	if m.TransferID != 0 {
		md["SeedrTransferId"] = strconv.FormatInt(m.TransferID, 10)
	}
	return md
}

// recoverFromHistory rebuilds mappings from grab history. Runs at most once
// per process, and only against an empty store.
func (a *Adapter) recoverFromHistory() {
	if !a.recovered.CAS(false, true) {
		return
	}
	if a.store.Len() > 0 {
		return
	}
	grabs, err := a.history.Grabs()
	if err != nil {
		log.Warnf("Cannot recover mappings from grab history: %s", err)
		return
	}
	recovered := 0
	for _, g := range grabs {
		if g.Imported || g.DownloadID == "" {
			continue
		}
		if _, ok := a.store.Get(g.DownloadID); ok {
			continue
		}
		if g.SeedrName == "" && g.SeedrTransferID == 0 {
			continue
		}
		a.store.Set(mapping.DownloadMapping{
			InfoHash:   g.DownloadID,
			Name:       g.SeedrName,
			TransferID: g.SeedrTransferID,
		})
		if a.config.SharedAccount {
			a.claim(g.DownloadID)
		}
		recovered++
	}
	if recovered > 0 {
		log.Infof("Recovered %d mappings from grab history", recovered)
	}
}

// rescueFromHistory resurrects a single mapping for a cloud object observed
// without one, matching grab names by case-insensitive substring in either
// direction.
func (a *Adapter) rescueFromHistory(cloudName string) (mapping.DownloadMapping, bool) {
	if cloudName == "" {
		return mapping.DownloadMapping{}, false
	}
	grabs, err := a.history.Grabs()
	if err != nil {
		log.Warnf("Cannot consult grab history for %q: %s", cloudName, err)
		return mapping.DownloadMapping{}, false
	}
	lower := strings.ToLower(cloudName)
	for _, g := range grabs {
		if g.Imported || g.DownloadID == "" {
			continue
		}
		name := strings.ToLower(g.SeedrName)
		if name == "" {
			continue
		}
		if !strings.Contains(lower, name) && !strings.Contains(name, lower) {
			continue
		}
		m := mapping.DownloadMapping{
			InfoHash:   g.DownloadID,
			Name:       cloudName,
			TransferID: g.SeedrTransferID,
		}
		a.store.Set(m)
		log.Infof("Rescued mapping %s for cloud item %q from grab history",
			g.DownloadID, cloudName)
		return m, true
	}
	return mapping.DownloadMapping{}, false
}
