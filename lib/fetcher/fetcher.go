// Package fetcher moves assembled cloud payloads into the local download
// directory. Copies run as detached background goroutines, one per mapping
// at a time; all failures are recorded on the mapping and never propagate
// into the reconciliation path.
package fetcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"

	"github.com/lumenarr/seedr/lib/mapping"
	"github.com/lumenarr/seedr/lib/seedrapi"
	"github.com/lumenarr/seedr/utils/backoff"
	"github.com/lumenarr/seedr/utils/fileutil"
	"github.com/lumenarr/seedr/utils/log"
)

// readyFraction is the share of a folder's declared size its immediate
// children must account for before a copy may start.
const readyFraction = 0.95

// CloudClient is the slice of the Seedr API the fetcher consumes.
type CloudClient interface {
	FolderContents(folderID int64) (*seedrapi.Snapshot, error)
	DownloadFileToPath(fileID int64, path string) error
}

// Fetcher copies cloud folders and files to local disk in the background.
type Fetcher struct {
	config  Config
	stats   tally.Scope
	cloud   CloudClient
	store   *mapping.Store
	clk     clock.Clock
	backoff *backoff.Backoff

	// Tracked so tests can wait for detached copies to settle. Production
	// callers never block on this.
	wg sync.WaitGroup
}

// New creates a new Fetcher.
func New(
	config Config,
	stats tally.Scope,
	cloud CloudClient,
	store *mapping.Store,
	clk clock.Clock) *Fetcher {

	config = config.applyDefaults()
	return &Fetcher{
		config:  config,
		stats:   stats.SubScope("fetcher"),
		cloud:   cloud,
		store:   store,
		clk:     clk,
		backoff: backoff.New(config.Backoff),
	}
}

// RetryDelay returns how long a mapping on the given attempt waits before
// its next copy.
func (f *Fetcher) RetryDelay(attempt int) time.Duration {
	return f.backoff.Duration(attempt)
}

// FolderReady reports whether the cloud has finished assembling a folder:
// it must have at least one child, and the children must account for most
// of the declared size. Zero-size folders waive the byte check.
func (f *Fetcher) FolderReady(folder seedrapi.Folder) (bool, error) {
	snapshot, err := f.cloud.FolderContents(folder.ID)
	if err != nil {
		return false, fmt.Errorf("list folder %d: %s", folder.ID, err)
	}
	if len(snapshot.Folders)+len(snapshot.Files) == 0 {
		return false, nil
	}
	if folder.Size == 0 {
		return true, nil
	}
	var children int64
	for _, sub := range snapshot.Folders {
		children += sub.Size
	}
	for _, file := range snapshot.Files {
		children += file.Size
	}
	return float64(children) >= readyFraction*float64(folder.Size), nil
}

// StartFolderCopy begins copying folder for m in the background. No-op if a
// copy is already in flight for m.
func (f *Fetcher) StartFolderCopy(folder seedrapi.Folder, m mapping.DownloadMapping) {
	if !f.begin(&m, folder.Size) {
		return
	}
	f.stats.Counter("folder_copies_started").Inc(1)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.runFolderCopy(folder, m)
	}()
}

// StartFileCopy begins copying a single root-level file for m in the
// background. No-op if a copy is already in flight for m.
func (f *Fetcher) StartFileCopy(file seedrapi.File, m mapping.DownloadMapping) {
	if !f.begin(&m, file.Size) {
		return
	}
	f.stats.Counter("file_copies_started").Inc(1)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.runFileCopy(file, m)
	}()
}

// Wait blocks until all in-flight copies have settled. Testing hook.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

// begin flips the mapping into the in-progress state. Returns false if
// another worker already holds it.
func (f *Fetcher) begin(m *mapping.DownloadMapping, totalBytes int64) bool {
	if m.LocalDownloadInProgress {
		return false
	}
	m.LocalDownloadInProgress = true
	m.LocalDownloadFailed = false
	m.LocalDownloadStartTime = f.clk.Now()
	m.LocalTotalBytes = totalBytes
	f.store.Set(*m)
	return true
}

func (f *Fetcher) runFolderCopy(folder seedrapi.Folder, m mapping.DownloadMapping) {
	name, err := fileutil.SanitizeName(folder.Name)
	if err != nil {
		f.finish(m, 1, 0, fmt.Errorf("folder name %q: %s", folder.Name, err))
		return
	}
	dest := filepath.Join(f.config.DownloadDir, name)
	copied, failed := f.copyFolder(folder.ID, dest)
	f.finish(m, copied, failed, nil)
}

func (f *Fetcher) runFileCopy(file seedrapi.File, m mapping.DownloadMapping) {
	name, err := fileutil.SanitizeName(file.Name)
	if err != nil {
		f.finish(m, 1, 0, fmt.Errorf("file name %q: %s", file.Name, err))
		return
	}
	if err := os.MkdirAll(f.config.DownloadDir, 0775); err != nil {
		f.finish(m, 1, 0, fmt.Errorf("create download dir: %s", err))
		return
	}
	if f.copyFile(file, filepath.Join(f.config.DownloadDir, name)) {
		f.finish(m, 1, 0, nil)
	} else {
		f.finish(m, 1, 1, nil)
	}
}

// copyFolder recursively walks the cloud subtree rooted at folderID,
// mirroring it under dest. Returns counts of attempted and failed files.
func (f *Fetcher) copyFolder(folderID int64, dest string) (copied, failed int) {
	if err := os.MkdirAll(dest, 0775); err != nil {
		log.Errorf("Failed to create %s: %s", dest, err)
		return 0, 1
	}
	snapshot, err := f.cloud.FolderContents(folderID)
	if err != nil {
		log.Errorf("Failed to list cloud folder %d: %s", folderID, err)
		return 0, 1
	}
	for _, file := range snapshot.Files {
		name, err := fileutil.SanitizeName(file.Name)
		if err != nil {
			log.Errorf("Skipping cloud file %d with unusable name %q", file.ID, file.Name)
			failed++
			continue
		}
		if f.copyFile(file, filepath.Join(dest, name)) {
			copied++
		} else {
			copied++
			failed++
		}
	}
	for _, sub := range snapshot.Folders {
		name, err := fileutil.SanitizeName(sub.Name)
		if err != nil {
			log.Errorf("Skipping cloud folder %d with unusable name %q", sub.ID, sub.Name)
			failed++
			continue
		}
		c, x := f.copyFolder(sub.ID, filepath.Join(dest, name))
		copied += c
		failed += x
	}
	return copied, failed
}

// copyFile streams one cloud file to path, unless a prior attempt already
// left most of it on disk. Returns false on failure.
func (f *Fetcher) copyFile(file seedrapi.File, path string) bool {
	if info, err := os.Stat(path); err == nil {
		if float64(info.Size()) >= f.config.ResumeThreshold*float64(file.Size) {
			f.stats.Counter("files_resumed").Inc(1)
			log.Infof("Skipping %s: already on disk (%d bytes)", path, info.Size())
			return true
		}
	}
	if err := f.cloud.DownloadFileToPath(file.ID, path); err != nil {
		f.stats.Counter("file_failures").Inc(1)
		log.Errorf("Failed to download cloud file %d to %s: %s", file.ID, path, err)
		return false
	}
	f.stats.Counter("files_downloaded").Inc(1)
	return true
}

// finish records the copy outcome on the freshest copy of the mapping. An
// empty walk counts as failure: the cloud has not assembled the folder yet.
func (f *Fetcher) finish(m mapping.DownloadMapping, copied, failed int, err error) {
	if err == nil && copied == 0 && failed == 0 {
		err = errors.New("cloud subtree is empty")
	}
	latest, ok := f.store.Get(m.InfoHash)
	if !ok {
		// Removed mid-copy; nothing to record.
		return
	}
	latest.LocalDownloadInProgress = false
	if err != nil || failed > 0 {
		if err == nil {
			err = fmt.Errorf("%d of %d files failed", failed, copied)
		}
		latest.LocalDownloadFailed = true
		latest.DownloadAttempts++
		latest.NextRetryAfter = f.clk.Now().Add(f.backoff.Duration(latest.DownloadAttempts))
		f.store.Set(latest)
		f.stats.Counter("copy_failures").Inc(1)
		log.Warnf("Local copy of %q failed (attempt %d, retry after %s): %s",
			latest.Name, latest.DownloadAttempts, latest.NextRetryAfter, err)
		return
	}
	latest.LocalDownloadComplete = true
	latest.LocalDownloadFailed = false
	latest.DownloadAttempts = 0
	latest.NextRetryAfter = time.Time{}
	f.store.Set(latest)
	f.stats.Counter("copy_completions").Inc(1)
	log.Infof("Local copy of %q complete (%d files)", latest.Name, copied)
}
