package adapter

import (
	"fmt"
	"io/ioutil"
	"sync"

	"github.com/lumenarr/seedr/lib/seedrapi"
)

// EmptyHistory is a History with no recorded grabs, for deployments without
// a grab-history service.
type EmptyHistory struct{}

// Grabs implements History.
func (EmptyHistory) Grabs() ([]GrabRecord, error) { return nil, nil }

// MemoryHistory is an in-memory History for testing purposes.
type MemoryHistory struct {
	Records []GrabRecord
	Err     error
}

// Grabs implements History.
func (h *MemoryHistory) Grabs() ([]GrabRecord, error) {
	return h.Records, h.Err
}

// TestCloud is a scripted, thread-safe CloudClient for testing purposes.
// Deletes and adds are recorded rather than applied.
type TestCloud struct {
	sync.Mutex

	Root    seedrapi.Snapshot
	RootErr error

	// Children maps folder id to its contents for recursive walks.
	Children map[int64]*seedrapi.Snapshot

	// FileContent maps file id to the bytes DownloadFileToPath writes.
	FileContent  map[int64][]byte
	DownloadErrs map[int64]error

	User    seedrapi.User
	UserErr error

	AddResult *seedrapi.AddResult
	AddErr    error

	AddedMagnets     []string
	AddedTorrents    []string
	DeletedTransfers []int64
	DeletedFolders   []int64
	DeletedFiles     []int64
}

// NewTestCloud returns an empty TestCloud.
func NewTestCloud() *TestCloud {
	return &TestCloud{
		Children:     make(map[int64]*seedrapi.Snapshot),
		FileContent:  make(map[int64][]byte),
		DownloadErrs: make(map[int64]error),
	}
}

// RootContents implements CloudClient.
func (c *TestCloud) RootContents() (*seedrapi.Snapshot, error) {
	c.Lock()
	defer c.Unlock()
	if c.RootErr != nil {
		return nil, c.RootErr
	}
	root := c.Root
	return &root, nil
}

// FolderContents implements CloudClient.
func (c *TestCloud) FolderContents(folderID int64) (*seedrapi.Snapshot, error) {
	c.Lock()
	defer c.Unlock()
	s, ok := c.Children[folderID]
	if !ok {
		return &seedrapi.Snapshot{}, nil
	}
	snapshot := *s
	return &snapshot, nil
}

// AddMagnet implements CloudClient.
func (c *TestCloud) AddMagnet(magnet string) (*seedrapi.AddResult, error) {
	c.Lock()
	defer c.Unlock()
	if c.AddErr != nil {
		return nil, c.AddErr
	}
	c.AddedMagnets = append(c.AddedMagnets, magnet)
	return c.AddResult, nil
}

// AddTorrentFile implements CloudClient.
func (c *TestCloud) AddTorrentFile(filename string, torrent []byte) (*seedrapi.AddResult, error) {
	c.Lock()
	defer c.Unlock()
	if c.AddErr != nil {
		return nil, c.AddErr
	}
	c.AddedTorrents = append(c.AddedTorrents, filename)
	return c.AddResult, nil
}

// DeleteTransfer implements CloudClient.
func (c *TestCloud) DeleteTransfer(id int64) error {
	c.Lock()
	defer c.Unlock()
	c.DeletedTransfers = append(c.DeletedTransfers, id)
	return nil
}

// DeleteFolder implements CloudClient.
func (c *TestCloud) DeleteFolder(id int64) error {
	c.Lock()
	defer c.Unlock()
	c.DeletedFolders = append(c.DeletedFolders, id)
	return nil
}

// DeleteFile implements CloudClient.
func (c *TestCloud) DeleteFile(id int64) error {
	c.Lock()
	defer c.Unlock()
	c.DeletedFiles = append(c.DeletedFiles, id)
	return nil
}

// GetUser implements CloudClient.
func (c *TestCloud) GetUser() (*seedrapi.User, error) {
	c.Lock()
	defer c.Unlock()
	if c.UserErr != nil {
		return nil, c.UserErr
	}
	u := c.User
	return &u, nil
}

// DownloadFileToPath implements CloudClient.
func (c *TestCloud) DownloadFileToPath(fileID int64, path string) error {
	c.Lock()
	defer c.Unlock()
	if err := c.DownloadErrs[fileID]; err != nil {
		return err
	}
	content, ok := c.FileContent[fileID]
	if !ok {
		return fmt.Errorf("no scripted content for file %d", fileID)
	}
	return ioutil.WriteFile(path, content, 0664)
}
