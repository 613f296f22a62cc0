package mapping

import (
	"strings"
	"sync"
)

// Store is a thread-safe, in-process keyed store of DownloadMappings.
// Mutations are whole-record replacement; readers get copies, never shared
// references. Durability across restarts is delegated to grab history.
type Store struct {
	mu sync.Mutex
	m  map[string]DownloadMapping
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{m: make(map[string]DownloadMapping)}
}

// Get returns the mapping for key, if present.
func (s *Store) Get(key string) (DownloadMapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.m[key]
	return m, ok
}

// Set inserts or replaces the mapping keyed by its InfoHash.
func (s *Store) Set(m DownloadMapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[m.InfoHash] = m
}

// Remove deletes the mapping for key.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Len returns the number of tracked mappings.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Values returns a snapshot copy of all mappings. Iteration order is
// unspecified.
func (s *Store) Values() []DownloadMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs := make([]DownloadMapping, 0, len(s.m))
	for _, m := range s.m {
		vs = append(vs, m)
	}
	return vs
}

// FindByTransferID returns the mapping carrying the given transfer id.
func (s *Store) FindByTransferID(id int64) (DownloadMapping, bool) {
	return s.find(func(m DownloadMapping) bool { return m.TransferID == id && id != 0 })
}

// FindByFolderID returns the mapping carrying the given folder id.
func (s *Store) FindByFolderID(id int64) (DownloadMapping, bool) {
	return s.find(func(m DownloadMapping) bool { return m.FolderID == id && id != 0 })
}

// FindByFileID returns the mapping carrying the given file id.
func (s *Store) FindByFileID(id int64) (DownloadMapping, bool) {
	return s.find(func(m DownloadMapping) bool { return m.FileID == id && id != 0 })
}

// FindByName returns the mapping whose display name matches, ignoring case.
func (s *Store) FindByName(name string) (DownloadMapping, bool) {
	if name == "" {
		return DownloadMapping{}, false
	}
	return s.find(func(m DownloadMapping) bool {
		return strings.EqualFold(m.Name, name)
	})
}

func (s *Store) find(pred func(DownloadMapping) bool) (DownloadMapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.m {
		if pred(m) {
			return m, true
		}
	}
	return DownloadMapping{}, false
}
