package adapter

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lumenarr/seedr/core"
	"github.com/lumenarr/seedr/lib/mapping"
	"github.com/lumenarr/seedr/lib/ownership"
	"github.com/lumenarr/seedr/lib/seedrapi"
	"github.com/lumenarr/seedr/utils/fileutil"
	"github.com/lumenarr/seedr/utils/log"
)

// maxETA bounds remaining-time estimates. Anything above a day means the
// rate memory is garbage.
const maxETA = 24 * time.Hour

// GetItems reconciles the cloud inventory, the mapping store, and local
// disk into the per-release item list. Steady-state idempotent: with an
// unchanged cloud snapshot and disk, consecutive calls emit identical items
// and leave the store unchanged apart from progress-rate memory.
//
// A failure of the root inventory fetch aborts the poll with an empty list;
// any per-mapping failure is localised to its own item.
func (a *Adapter) GetItems() []core.DownloadItem {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.recoverFromHistory()

	snapshot, err := a.cloud.RootContents()
	if err != nil {
		log.Warnf("Cannot list Seedr root folder: %s", err)
		return nil
	}
	if snapshot == nil {
		log.Warnf("Seedr root folder listing came back empty")
		return nil
	}

	a.stats.Gauge("tracked_mappings").Update(float64(a.store.Len()))

	// Seedr materialises a folder before its transfer finishes; a folder
	// whose name still appears as an active transfer is not ready.
	activeNames := make(map[string]bool)
	for _, t := range snapshot.Transfers {
		if t.Name != "" {
			activeNames[strings.ToLower(t.Name)] = true
		}
	}

	var items []core.DownloadItem
	for _, t := range snapshot.Transfers {
		if item, ok := a.reconcileTransfer(t); ok {
			items = append(items, item)
		}
	}
	for _, f := range snapshot.Folders {
		if activeNames[strings.ToLower(f.Name)] {
			continue
		}
		if item, ok := a.reconcileFolder(f); ok {
			items = append(items, item)
		}
	}
	for _, f := range snapshot.Files {
		if activeNames[strings.ToLower(f.Name)] {
			continue
		}
		if item, ok := a.reconcileFile(f); ok {
			items = append(items, item)
		}
	}
	return items
}

// reconcileTransfer emits the Downloading view of a cloud-side transfer and
// maintains the progress-rate memory behind its ETA.
func (a *Adapter) reconcileTransfer(t seedrapi.Transfer) (core.DownloadItem, bool) {
	m, ok := a.store.FindByTransferID(t.ID)
	if !ok {
		m, ok = a.store.FindByName(t.Name)
	}

	infoHash := m.InfoHash
	if !ok {
		if t.Hash != "" {
			infoHash = strings.ToUpper(t.Hash)
		} else {
			infoHash = core.SyntheticID(t.ID)
		}
	}

	if a.config.SharedAccount && a.registry != nil {
		// Unknown falls through: an unreachable registry must not blank
		// out the view of our own downloads.
		if a.registry.IsOwnedByMe(infoHash) == ownership.No {
			return core.DownloadItem{}, false
		}
	}

	if !ok && t.Hash != "" {
		m = mapping.DownloadMapping{InfoHash: infoHash, TransferID: t.ID, Name: t.Name}
		a.store.Set(m)
		ok = true
	} else if ok {
		m.TransferID = t.ID
		if t.Name != "" {
			m.Name = t.Name
		}
		a.store.Set(m)
	}

	var eta time.Duration
	if ok {
		eta = a.transferETA(&m, t.Progress)
		a.store.Set(m)
	}

	done := int64(float64(t.Size) * t.Progress / 100)
	return core.DownloadItem{
		DownloadID:    infoHash,
		Title:         t.Name,
		TotalSize:     t.Size,
		RemainingSize: t.Size - done,
		RemainingTime: eta,
		Status:        core.StatusDownloading,
	}, true
}

// transferETA derives remaining time from the rate between the current and
// previously observed cloud progress, and refreshes the rate memory.
func (a *Adapter) transferETA(m *mapping.DownloadMapping, progress float64) time.Duration {
	now := a.clk.Now()
	var eta time.Duration
	if progress > 0 && progress < 100 &&
		progress > m.LastProgress && !m.LastProgressTime.IsZero() {
		elapsed := now.Sub(m.LastProgressTime).Seconds()
		if elapsed > 0 {
			secs := (100 - progress) / ((progress - m.LastProgress) / elapsed)
			if secs > 0 && secs < maxETA.Seconds() {
				eta = time.Duration(secs * float64(time.Second))
			}
		}
	}
	if progress != m.LastProgress {
		m.LastProgress = progress
		m.LastProgressTime = now
	}
	return eta
}

func (a *Adapter) reconcileFolder(f seedrapi.Folder) (core.DownloadItem, bool) {
	m, ok := a.store.FindByFolderID(f.ID)
	if !ok {
		m, ok = a.store.FindByName(f.Name)
	}
	if !ok {
		if a.config.SharedAccount {
			// A peer instance's folder; not ours to report.
			return core.DownloadItem{}, false
		}
		m, ok = a.rescueFromHistory(f.Name)
		if !ok {
			log.Warnf("No mapping for cloud folder %q (id %d); skipping", f.Name, f.ID)
			return core.DownloadItem{}, false
		}
	}
	m.FolderID = f.ID
	a.store.Set(m)

	name, err := fileutil.SanitizeName(f.Name)
	if err != nil {
		log.Errorf("Cloud folder %d has unusable name %q", f.ID, f.Name)
		return core.DownloadItem{}, false
	}
	localPath := filepath.Join(a.config.DownloadDir, name)

	complete := m.LocalDownloadComplete ||
		(!m.LocalDownloadInProgress && !m.LocalDownloadFailed &&
			a.folderComplete(localPath, f.Size))
	if complete {
		return a.emitCompleted(m, f.Name, f.Size, localPath), true
	}

	if item, retry := a.emitScheduledRetry(&m, f.Name, f.Size, localPath); retry {
		return item, true
	}

	if !m.LocalDownloadInProgress {
		if item, waiting := a.checkFolderReady(&m, f); waiting {
			return item, true
		}
		a.fetcher.StartFolderCopy(f, m)
	}

	onDisk, err := a.disk.FolderBytes(localPath)
	if err != nil {
		log.Warnf("Cannot size local folder %s: %s", localPath, err)
	}
	return a.emitCopying(m, f.Name, f.Size, onDisk), true
}

func (a *Adapter) reconcileFile(f seedrapi.File) (core.DownloadItem, bool) {
	m, ok := a.store.FindByFileID(f.ID)
	if !ok {
		m, ok = a.store.FindByName(f.Name)
	}
	if !ok {
		if a.config.SharedAccount {
			return core.DownloadItem{}, false
		}
		m, ok = a.rescueFromHistory(f.Name)
		if !ok {
			log.Warnf("No mapping for cloud file %q (id %d); skipping", f.Name, f.ID)
			return core.DownloadItem{}, false
		}
	}
	m.FileID = f.ID
	a.store.Set(m)

	name, err := fileutil.SanitizeName(f.Name)
	if err != nil {
		log.Errorf("Cloud file %d has unusable name %q", f.ID, f.Name)
		return core.DownloadItem{}, false
	}
	localPath := filepath.Join(a.config.DownloadDir, name)

	complete := m.LocalDownloadComplete ||
		(!m.LocalDownloadInProgress && !m.LocalDownloadFailed &&
			a.fileComplete(localPath, f.Size))
	if complete {
		return a.emitCompleted(m, f.Name, f.Size, localPath), true
	}

	if item, retry := a.emitScheduledRetry(&m, f.Name, f.Size, localPath); retry {
		return item, true
	}

	if !m.LocalDownloadInProgress {
		a.fetcher.StartFileCopy(f, m)
	}

	return a.emitCopying(m, f.Name, f.Size, a.fileBytesOnDisk(localPath)), true
}

// emitCompleted marks the mapping complete on its first sighting and emits
// the importable item.
func (a *Adapter) emitCompleted(
	m mapping.DownloadMapping, title string, size int64, localPath string) core.DownloadItem {

	if !m.LocalDownloadComplete {
		m.LocalDownloadComplete = true
		m.LocalDownloadInProgress = false
		m.LocalDownloadFailed = false
		m.DownloadAttempts = 0
		m.NextRetryAfter = time.Time{}
		a.store.Set(m)
	}
	return core.DownloadItem{
		DownloadID:    m.InfoHash,
		Title:         title,
		TotalSize:     size,
		RemainingSize: 0,
		Status:        core.StatusCompleted,
		OutputPath:    localPath,
		CanMoveFiles:  true,
		CanBeRemoved:  true,
	}
}

// emitScheduledRetry handles a failed mapping: inside the backoff window it
// reports the scheduled retry; once the window has passed it re-arms the
// mapping and falls through to restart the copy.
func (a *Adapter) emitScheduledRetry(
	m *mapping.DownloadMapping, title string, size int64, localPath string) (core.DownloadItem, bool) {

	if !m.LocalDownloadFailed {
		return core.DownloadItem{}, false
	}
	if !m.NextRetryAfter.IsZero() && a.clk.Now().Before(m.NextRetryAfter) {
		remaining := size - a.fileBytesOnDisk(localPath)
		if onDisk, err := a.disk.FolderBytes(localPath); err == nil && onDisk > 0 {
			remaining = size - onDisk
		}
		if remaining < 0 {
			remaining = 0
		}
		return core.DownloadItem{
			DownloadID:    m.InfoHash,
			Title:         title,
			TotalSize:     size,
			RemainingSize: remaining,
			Status:        core.StatusDownloading,
			Message:       fmt.Sprintf("Retry scheduled (attempt %d)", m.DownloadAttempts),
		}, true
	}
	m.DownloadAttempts++
	m.LocalDownloadFailed = false
	m.NextRetryAfter = time.Time{}
	a.store.Set(*m)
	return core.DownloadItem{}, false
}

// checkFolderReady gates folder copies on cloud-side assembly. Returns the
// waiting item while not ready; flips to failure-with-backoff after the
// attempt ceiling.
func (a *Adapter) checkFolderReady(
	m *mapping.DownloadMapping, f seedrapi.Folder) (core.DownloadItem, bool) {

	ready, err := a.fetcher.FolderReady(f)
	if err != nil {
		log.Warnf("Readiness probe for folder %d failed: %s", f.ID, err)
	}
	if ready {
		m.FolderReadyAttempts = 0
		a.store.Set(*m)
		return core.DownloadItem{}, false
	}
	m.FolderReadyAttempts++
	if m.FolderReadyAttempts > a.config.FolderReadyLimit {
		m.FolderReadyAttempts = 0
		m.LocalDownloadFailed = true
		m.DownloadAttempts++
		m.NextRetryAfter = a.clk.Now().Add(a.fetcher.RetryDelay(m.DownloadAttempts))
		log.Warnf("Folder %q never became ready; backing off until %s",
			f.Name, m.NextRetryAfter)
	}
	a.store.Set(*m)
	return core.DownloadItem{
		DownloadID:    m.InfoHash,
		Title:         f.Name,
		TotalSize:     f.Size,
		RemainingSize: f.Size,
		Status:        core.StatusDownloading,
		Message:       "Waiting for Seedr to finish processing",
	}, true
}

// emitCopying reports an in-flight local copy, estimating remaining time
// from the average rate since the copy started.
func (a *Adapter) emitCopying(
	m mapping.DownloadMapping, title string, size, onDisk int64) core.DownloadItem {

	remaining := size - onDisk
	if remaining < 0 {
		remaining = 0
	}
	var eta time.Duration
	if !m.LocalDownloadStartTime.IsZero() && onDisk > 0 {
		elapsed := a.clk.Now().Sub(m.LocalDownloadStartTime).Seconds()
		if elapsed > 0 {
			secs := float64(remaining) / (float64(onDisk) / elapsed)
			if secs > 0 && secs < maxETA.Seconds() {
				eta = time.Duration(secs * float64(time.Second))
			}
		}
	}
	return core.DownloadItem{
		DownloadID:    m.InfoHash,
		Title:         title,
		TotalSize:     size,
		RemainingSize: remaining,
		RemainingTime: eta,
		Status:        core.StatusDownloading,
	}
}

// folderComplete is the disk-side completion predicate for folders: present,
// holding at least one final file, no part files, and most of the declared
// bytes.
func (a *Adapter) folderComplete(localPath string, size int64) bool {
	if !a.disk.Exists(localPath) {
		return false
	}
	finals, err := a.disk.HasFinalFiles(localPath)
	if err != nil || !finals {
		return false
	}
	parts, err := a.disk.HasPartFiles(localPath)
	if err != nil || parts {
		return false
	}
	if size == 0 {
		return true
	}
	onDisk, err := a.disk.FolderBytes(localPath)
	if err != nil {
		return false
	}
	return float64(onDisk) >= completeFraction*float64(size)
}

// fileComplete is the disk-side completion predicate for single files.
func (a *Adapter) fileComplete(localPath string, size int64) bool {
	if strings.HasSuffix(localPath, fileutil.PartSuffix) {
		return false
	}
	onDisk, err := a.disk.FileSize(localPath)
	if err != nil {
		return false
	}
	if size == 0 {
		return true
	}
	return float64(onDisk) >= completeFraction*float64(size)
}

// fileBytesOnDisk prefers the in-flight part file over the final file.
func (a *Adapter) fileBytesOnDisk(localPath string) int64 {
	if n, err := a.disk.FileSize(localPath + fileutil.PartSuffix); err == nil {
		return n
	}
	if n, err := a.disk.FileSize(localPath); err == nil {
		return n
	}
	return 0
}
