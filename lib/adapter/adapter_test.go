package adapter

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/lumenarr/seedr/core"
	"github.com/lumenarr/seedr/lib/fetcher"
	"github.com/lumenarr/seedr/lib/mapping"
	"github.com/lumenarr/seedr/lib/ownership"
	"github.com/lumenarr/seedr/lib/seedrapi"
)

type adapterMocks struct {
	config   Config
	cloud    *TestCloud
	registry ownership.Registry
	store    *mapping.Store
	fetcher  *fetcher.Fetcher
	history  History
	clk      *clock.Mock
}

func newAdapterMocks(t *testing.T) *adapterMocks {
	t.Helper()
	clk := clock.NewMock()
	clk.Add(time.Hour)
	return &adapterMocks{
		config:  Config{DownloadDir: t.TempDir()},
		cloud:   NewTestCloud(),
		store:   mapping.NewStore(),
		history: EmptyHistory{},
		clk:     clk,
	}
}

func (m *adapterMocks) newAdapter() *Adapter {
	m.fetcher = fetcher.New(
		fetcher.Config{DownloadDir: m.config.DownloadDir},
		tally.NoopScope, m.cloud, m.store, m.clk)
	return New(m.config, tally.NoopScope, m.cloud, m.registry, m.store,
		m.fetcher, OSDisk{}, m.history, TorrentInfoFunc(core.InfoHashFromTorrent), m.clk)
}

func transferSnapshot(id int64, name, hash string, progress float64, size int64) seedrapi.Snapshot {
	return seedrapi.Snapshot{Transfers: []seedrapi.Transfer{
		{ID: id, Name: name, Hash: hash, Progress: progress, Size: size},
	}}
}

// setFolderInventory scripts a root folder whose single child file (id 1)
// accounts for the whole declared size, so readiness probes pass.
func setFolderInventory(m *adapterMocks, folderID int64, name string, size int64) {
	m.cloud.Root.Folders = []seedrapi.Folder{{ID: folderID, Name: name, Size: size}}
	m.cloud.Children[folderID] = &seedrapi.Snapshot{
		Files: []seedrapi.File{{ID: 1, Name: "a.mkv", Size: size}},
	}
}

// testTorrent is a minimal single-file metainfo payload.
const testTorrent = "d8:announce3:url4:infod6:lengthi5e4:name4:test12:piece lengthi16384e6:pieces0:ee"

const testTorrentHash = "664503950C129E72758A150D316260A5E6FC058B"

func TestSubmitMagnetWithKnownHash(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.cloud.AddResult = &seedrapi.AddResult{ID: 7, Name: "Movie.2024"}
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	id, err := a.Submit(Release{
		Title:     "Movie 2024",
		InfoHash:  h,
		MagnetURI: "magnet:?xt=urn:btih:" + h,
	})
	require.NoError(err)
	require.Equal(h, id)
	require.Len(mocks.cloud.AddedMagnets, 1)

	m, ok := mocks.store.Get(h)
	require.True(ok)
	require.Equal(int64(7), m.TransferID)
	require.Equal("Movie.2024", m.Name)
}

func TestSubmitResolvesHashFromMagnet(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.cloud.AddResult = &seedrapi.AddResult{ID: 7, Name: "Movie.2024"}
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	id, err := a.Submit(Release{MagnetURI: "magnet:?xt=urn:btih:" + h})
	require.NoError(err)
	require.Equal(h, id)
}

func TestSubmitResolvesHashFromTorrent(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.cloud.AddResult = &seedrapi.AddResult{ID: 7, Name: "test"}
	a := mocks.newAdapter()

	id, err := a.Submit(Release{
		TorrentFilename: "test.torrent",
		Torrent:         []byte(testTorrent),
	})
	require.NoError(err)
	require.Equal(testTorrentHash, id)
	require.Len(mocks.cloud.AddedTorrents, 1)
}

func TestSubmitFallsBackToSyntheticID(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.cloud.AddResult = &seedrapi.AddResult{ID: 9, Name: "Movie.2024"}
	a := mocks.newAdapter()

	// No hash in the release, the magnet, or the add response.
	id, err := a.Submit(Release{MagnetURI: "magnet:?dn=no-hash-here"})
	require.NoError(err)
	require.Equal("seedr-9", id)
}

func TestSubmitRejectsEmptyRelease(t *testing.T) {
	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	_, err := a.Submit(Release{Title: "nothing"})
	require.Error(t, err)
}

func TestSubmitPropagatesCloudError(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.cloud.AddErr = errors.New("account full")
	a := mocks.newAdapter()

	_, err := a.Submit(Release{MagnetURI: "magnet:?xt=urn:btih:" + core.InfoHashFixture()})
	require.Error(err)
	require.Equal(0, mocks.store.Len())
}

func TestGetItemsTransferDownloading(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, TransferID: 7, Name: "Movie.2024"})
	mocks.cloud.Root = transferSnapshot(7, "Movie.2024", h, 50, 1000)

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(h, items[0].DownloadID)
	require.Equal("Movie.2024", items[0].Title)
	require.Equal(int64(1000), items[0].TotalSize)
	require.Equal(int64(500), items[0].RemainingSize)
	require.Equal(core.StatusDownloading, items[0].Status)
}

func TestGetItemsTransferZeroProgress(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, TransferID: 7, Name: "Movie.2024"})
	mocks.cloud.Root = transferSnapshot(7, "Movie.2024", h, 0, 1000)

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(int64(1000), items[0].RemainingSize)
	require.Equal(time.Duration(0), items[0].RemainingTime)
}

func TestGetItemsTransferETA(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, TransferID: 7, Name: "Movie.2024"})

	mocks.cloud.Root = transferSnapshot(7, "Movie.2024", h, 10, 1000)
	items := a.GetItems()
	require.Equal(time.Duration(0), items[0].RemainingTime)

	// 10% in 10 seconds leaves 80% at the same rate.
	mocks.clk.Add(10 * time.Second)
	mocks.cloud.Root = transferSnapshot(7, "Movie.2024", h, 20, 1000)
	items = a.GetItems()
	require.Equal(80*time.Second, items[0].RemainingTime)
}

func TestGetItemsAdoptsUnmappedTransferWithHash(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.cloud.Root = transferSnapshot(7, "Movie.2024", h, 10, 1000)

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(h, items[0].DownloadID)

	m, ok := mocks.store.Get(h)
	require.True(ok)
	require.Equal(int64(7), m.TransferID)
}

func TestGetItemsSyntheticIDForHashlessTransfer(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	mocks.cloud.Root = transferSnapshot(7, "Movie.2024", "", 10, 1000)

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal("seedr-7", items[0].DownloadID)

	// Hashless transfers are reported but never adopted into the store.
	require.Equal(0, mocks.store.Len())
}

func TestGetItemsSkipsFolderShadowedByActiveTransfer(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, TransferID: 7, Name: "Movie.2024"})
	mocks.cloud.Root = transferSnapshot(7, "Movie.2024", h, 99, 1000)
	mocks.cloud.Root.Folders = []seedrapi.Folder{{ID: 100, Name: "movie.2024", Size: 1000}}

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(core.StatusDownloading, items[0].Status)
}

func TestGetItemsFullProgressTransferStillDownloading(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, TransferID: 7, Name: "Movie.2024"})
	// The transfer hit 100% but Seedr has not converted it into a folder
	// yet; the materialising folder rides along under the same name.
	mocks.cloud.Root = transferSnapshot(7, "Movie.2024", h, 100, 1000)
	mocks.cloud.Root.Folders = []seedrapi.Folder{{ID: 100, Name: "Movie.2024", Size: 1000}}

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(core.StatusDownloading, items[0].Status)
	require.Equal(int64(0), items[0].RemainingSize)
	require.Equal(time.Duration(0), items[0].RemainingTime)
}

func TestGetItemsRootErrorReturnsNothing(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()
	mocks.cloud.RootErr = errors.New("cloud down")

	require.Empty(a.GetItems())
}

func TestFolderLifecycle(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, TransferID: 7, Name: "Movie.2024"})

	setFolderInventory(mocks, 100, "Movie.2024", 5)
	mocks.cloud.FileContent[1] = []byte("movie")

	// First poll starts the background copy and reports it.
	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(core.StatusDownloading, items[0].Status)
	mocks.fetcher.Wait()

	// Second poll sees the finished copy.
	items = a.GetItems()
	require.Len(items, 1)
	require.Equal(core.StatusCompleted, items[0].Status)
	require.True(items[0].CanMoveFiles)
	require.True(items[0].CanBeRemoved)
	require.Equal(filepath.Join(mocks.config.DownloadDir, "Movie.2024"), items[0].OutputPath)
	require.Equal(int64(0), items[0].RemainingSize)

	data, err := ioutil.ReadFile(filepath.Join(mocks.config.DownloadDir, "Movie.2024", "a.mkv"))
	require.NoError(err)
	require.Equal("movie", string(data))

	// Import removes the cloud folder and the mapping, keeps local data.
	a.MarkItemAsImported(h)
	require.Equal([]int64{100}, mocks.cloud.DeletedFolders)
	require.Equal(0, mocks.store.Len())
	_, err = os.Stat(items[0].OutputPath)
	require.NoError(err)
}

func TestFileLifecycle(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, TransferID: 7, Name: "single.mkv"})
	mocks.cloud.Root.Files = []seedrapi.File{{ID: 200, Name: "single.mkv", Size: 6}}
	mocks.cloud.FileContent[200] = []byte("single")

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(core.StatusDownloading, items[0].Status)
	mocks.fetcher.Wait()

	items = a.GetItems()
	require.Len(items, 1)
	require.Equal(core.StatusCompleted, items[0].Status)

	m, _ := mocks.store.Get(h)
	require.Equal(int64(200), m.FileID)
}

func TestFolderNotReadyReportsWaiting(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, TransferID: 7, Name: "Movie.2024"})
	mocks.cloud.Root.Folders = []seedrapi.Folder{{ID: 100, Name: "Movie.2024", Size: 1000}}
	// No children scripted: the folder is still assembling.

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(core.StatusDownloading, items[0].Status)
	require.Equal("Waiting for Seedr to finish processing", items[0].Message)
	require.Equal(int64(1000), items[0].RemainingSize)

	m, _ := mocks.store.Get(h)
	require.Equal(1, m.FolderReadyAttempts)
	require.False(m.LocalDownloadInProgress)
}

func TestFolderReadyCeilingTurnsIntoFailure(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{
		InfoHash:            h,
		Name:                "Movie.2024",
		FolderReadyAttempts: 20,
	})
	mocks.cloud.Root.Folders = []seedrapi.Folder{{ID: 100, Name: "Movie.2024", Size: 1000}}

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal("Waiting for Seedr to finish processing", items[0].Message)

	m, _ := mocks.store.Get(h)
	require.True(m.LocalDownloadFailed)
	require.Equal(1, m.DownloadAttempts)
	require.Equal(0, m.FolderReadyAttempts)
	require.Equal(mocks.clk.Now().Add(2*time.Minute), m.NextRetryAfter)

	// Inside the backoff window the poll reports the scheduled retry.
	items = a.GetItems()
	require.Len(items, 1)
	require.Equal("Retry scheduled (attempt 1)", items[0].Message)
}

func TestCopyFailureRetriesAfterBackoff(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, TransferID: 7, Name: "Movie.2024"})

	setFolderInventory(mocks, 100, "Movie.2024", 5)
	mocks.cloud.DownloadErrs[1] = errors.New("stream reset")

	// First poll starts a copy that fails.
	a.GetItems()
	mocks.fetcher.Wait()

	m, _ := mocks.store.Get(h)
	require.True(m.LocalDownloadFailed)
	require.Equal(1, m.DownloadAttempts)
	require.Equal(mocks.clk.Now().Add(2*time.Minute), m.NextRetryAfter)

	// Still inside the window: no new copy, just the retry notice.
	items := a.GetItems()
	require.Len(items, 1)
	require.Equal("Retry scheduled (attempt 1)", items[0].Message)

	// Past the window with the cloud healthy again, the copy restarts.
	mocks.clk.Add(3 * time.Minute)
	delete(mocks.cloud.DownloadErrs, 1)
	mocks.cloud.FileContent[1] = []byte("movie")

	a.GetItems()
	mocks.fetcher.Wait()

	items = a.GetItems()
	require.Len(items, 1)
	require.Equal(core.StatusCompleted, items[0].Status)

	m, _ = mocks.store.Get(h)
	require.Equal(0, m.DownloadAttempts)
	require.True(m.NextRetryAfter.IsZero())
}

func TestPartFilesBlockCompletion(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, Name: "Movie.2024"})
	setFolderInventory(mocks, 100, "Movie.2024", 5)

	// The payload is fully on disk, but a leftover part file means a copy
	// is unaccounted for.
	dir := filepath.Join(mocks.config.DownloadDir, "Movie.2024")
	require.NoError(os.MkdirAll(dir, 0775))
	require.NoError(ioutil.WriteFile(filepath.Join(dir, "a.mkv"), []byte("movie"), 0664))
	require.NoError(ioutil.WriteFile(filepath.Join(dir, "b.mkv.part"), []byte("x"), 0664))

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(core.StatusDownloading, items[0].Status)
	mocks.fetcher.Wait()
}

func TestFolderCompleteOnDiskWithoutCopy(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, Name: "Movie.2024"})
	mocks.cloud.Root.Folders = []seedrapi.Folder{{ID: 100, Name: "Movie.2024", Size: 5}}

	dir := filepath.Join(mocks.config.DownloadDir, "Movie.2024")
	require.NoError(os.MkdirAll(dir, 0775))
	require.NoError(ioutil.WriteFile(filepath.Join(dir, "a.mkv"), []byte("movie"), 0664))

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(core.StatusCompleted, items[0].Status)

	// Steady state: the next poll emits the same item.
	again := a.GetItems()
	require.Equal(items, again)
}

func TestSharedAccountSkipsForeignItems(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.config.SharedAccount = true
	registry := ownership.NewTestRegistry("radarr-4k")
	mocks.registry = registry
	a := mocks.newAdapter()

	mine := core.InfoHashFixture()
	theirs := core.InfoHashFixture()
	registry.AddOwner(mine, "radarr-4k")
	registry.AddOwner(theirs, "radarr-hd")

	mocks.store.Set(mapping.DownloadMapping{InfoHash: mine, TransferID: 7, Name: "Mine.2024"})
	mocks.cloud.Root.Transfers = []seedrapi.Transfer{
		{ID: 7, Name: "Mine.2024", Hash: mine, Progress: 10, Size: 100},
		{ID: 8, Name: "Theirs.2024", Hash: theirs, Progress: 10, Size: 100},
	}

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(mine, items[0].DownloadID)
}

func TestSharedAccountUnknownOwnershipStillReported(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.config.SharedAccount = true
	registry := ownership.NewTestRegistry("radarr-4k")
	registry.Unavailable = true
	mocks.registry = registry
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, TransferID: 7, Name: "Mine.2024"})
	mocks.cloud.Root = transferSnapshot(7, "Mine.2024", h, 10, 100)

	// A down registry must not hide our own downloads.
	items := a.GetItems()
	require.Len(items, 1)
}

func TestSharedAccountSkipsUnmappedFolders(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.config.SharedAccount = true
	mocks.registry = ownership.NewTestRegistry("radarr-4k")
	a := mocks.newAdapter()

	mocks.cloud.Root.Folders = []seedrapi.Folder{{ID: 100, Name: "Peer.Movie", Size: 5}}

	// Another instance's folder: no mapping, no history rescue, no item.
	require.Empty(a.GetItems())
	require.Equal(0, mocks.store.Len())
}

func TestRemoveItemDeletesEverywhere(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, FolderID: 100, Name: "Movie.2024"})

	dir := filepath.Join(mocks.config.DownloadDir, "Movie.2024")
	require.NoError(os.MkdirAll(dir, 0775))

	a.RemoveItem(h, true)

	require.Equal([]int64{100}, mocks.cloud.DeletedFolders)
	_, err := os.Stat(dir)
	require.True(os.IsNotExist(err))
	require.Equal(0, mocks.store.Len())
}

func TestRemoveItemKeepsLocalDataWhenNotAsked(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, FileID: 200, Name: "single.mkv"})

	path := filepath.Join(mocks.config.DownloadDir, "single.mkv")
	require.NoError(ioutil.WriteFile(path, []byte("x"), 0664))

	a.RemoveItem(h, false)

	require.Equal([]int64{200}, mocks.cloud.DeletedFiles)
	_, err := os.Stat(path)
	require.NoError(err)
	require.Equal(0, mocks.store.Len())
}

func TestRemoveItemRespectsPeerOwnership(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.config.SharedAccount = true
	registry := ownership.NewTestRegistry("radarr-4k")
	mocks.registry = registry
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	registry.AddOwner(h, "radarr-4k")
	registry.AddOwner(h, "radarr-hd")
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, FolderID: 100, Name: "Movie.2024"})

	dir := filepath.Join(mocks.config.DownloadDir, "Movie.2024")
	require.NoError(os.MkdirAll(dir, 0775))

	a.RemoveItem(h, true)

	// A peer still owns the folder: cloud state survives, local data and
	// the mapping do not.
	require.Empty(mocks.cloud.DeletedFolders)
	_, err := os.Stat(dir)
	require.True(os.IsNotExist(err))
	require.Equal(0, mocks.store.Len())
}

func TestRemoveItemUnknownOwnershipKeepsCloudState(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.config.SharedAccount = true
	registry := ownership.NewTestRegistry("radarr-4k")
	registry.Unavailable = true
	mocks.registry = registry
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, FolderID: 100, Name: "Movie.2024"})

	a.RemoveItem(h, false)

	require.Empty(mocks.cloud.DeletedFolders)
	require.Equal(0, mocks.store.Len())
}

func TestMarkItemAsImportedHonorsDeleteToggle(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	off := false
	mocks.config.DeleteFromCloud = &off
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, FolderID: 100, Name: "Movie.2024"})

	a.MarkItemAsImported(h)

	require.Empty(mocks.cloud.DeletedFolders)
	require.Equal(0, mocks.store.Len())
}

func TestGrabMetadataRoundTrip(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	a := mocks.newAdapter()

	h := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: h, TransferID: 7, Name: "Movie.2024"})

	md := a.GrabMetadata(h)
	require.Equal(map[string]string{
		"SeedrName":       "Movie.2024",
		"SeedrTransferId": "7",
	}, md)

	require.Nil(a.GrabMetadata("unknown"))
}

func TestRecoverFromHistory(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	h1 := core.InfoHashFixture()
	h2 := core.InfoHashFixture()
	mocks.history = &MemoryHistory{Records: []GrabRecord{
		{DownloadID: h1, SeedrName: "Movie.A", SeedrTransferID: 7},
		{DownloadID: h2, SeedrName: "Movie.B", Imported: true},
		{DownloadID: "", SeedrName: "orphan"},
	}}
	a := mocks.newAdapter()

	a.GetItems()

	m, ok := mocks.store.Get(h1)
	require.True(ok)
	require.Equal("Movie.A", m.Name)
	require.Equal(int64(7), m.TransferID)

	_, ok = mocks.store.Get(h2)
	require.False(ok)

	// Recovery runs once per process: a drained store is not refilled.
	mocks.store.Remove(h1)
	a.GetItems()
	require.Equal(0, mocks.store.Len())
}

func TestRescueUnmappedFolderFromHistory(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	h := core.InfoHashFixture()
	mocks.history = &MemoryHistory{Records: []GrabRecord{
		{DownloadID: h, SeedrName: "Movie.2024", SeedrTransferID: 7},
	}}
	a := mocks.newAdapter()

	// Startup recovery already ran against a non-empty store, so the grab
	// never made it in.
	other := core.InfoHashFixture()
	mocks.store.Set(mapping.DownloadMapping{InfoHash: other, Name: "Unrelated"})
	a.GetItems()

	// The cloud folder name embeds the grabbed name.
	mocks.cloud.Root.Folders = []seedrapi.Folder{{ID: 100, Name: "Movie.2024.1080p", Size: 0}}

	items := a.GetItems()
	require.Len(items, 1)
	require.Equal(h, items[0].DownloadID)

	m, ok := mocks.store.Get(h)
	require.True(ok)
	require.Equal(int64(100), m.FolderID)
	mocks.fetcher.Wait()
}

func TestValidation(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.cloud.User = seedrapi.User{Email: "u@example.com", SpaceUsed: 10, SpaceMax: 100}
	a := mocks.newAdapter()

	require.Empty(a.Test())
}

func TestValidationBadCredentials(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.cloud.UserErr = errors.New("connection refused")
	a := mocks.newAdapter()

	fails := a.Test()
	require.Len(fails, 1)
	require.Equal(FieldEmail, fails[0].Field)
	require.False(fails[0].IsWarning)
}

func TestValidationAccountNearlyFull(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.cloud.User = seedrapi.User{Email: "u@example.com", SpaceUsed: 95, SpaceMax: 100}
	a := mocks.newAdapter()

	fails := a.Test()
	require.Len(fails, 1)
	require.Equal(FieldEmail, fails[0].Field)
	require.True(fails[0].IsWarning)
}

func TestValidationBadDownloadDir(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.cloud.User = seedrapi.User{Email: "u@example.com", SpaceUsed: 10, SpaceMax: 100}
	mocks.config.DownloadDir = filepath.Join(mocks.config.DownloadDir, "missing")
	a := mocks.newAdapter()

	fails := a.Test()
	require.Len(fails, 1)
	require.Equal(FieldDownloadDir, fails[0].Field)
}

func TestValidationSharedAccountWithoutRegistry(t *testing.T) {
	require := require.New(t)

	mocks := newAdapterMocks(t)
	mocks.cloud.User = seedrapi.User{Email: "u@example.com", SpaceUsed: 10, SpaceMax: 100}
	mocks.config.SharedAccount = true
	a := mocks.newAdapter()

	fails := a.Test()
	require.Len(fails, 1)
	require.Equal(FieldRedis, fails[0].Field)
	require.True(fails[0].IsWarning)
}
