package dsa

import (
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// PersistedEntry is one display's durable tuning data, keyed by EDID
// identity in the Store (spec.md §3, §4.4, §6 "DSA stats").
type PersistedEntry struct {
	Multiplier float64 `yaml:"multiplier"`
	Attempts   uint64  `yaml:"attempts"`
	Retries    uint64  `yaml:"retries"`
}

// Store is the on-disk keyed map from EDID identifier tuple to
// last-known tuning values (spec.md §6). It is safe for concurrent use;
// writes happen only during teardown, under a single mutex, matching
// spec.md §5 "persisted DSA state is written only during teardown,
// under a global teardown lock".
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]PersistedEntry
}

// NewStore returns an empty, unpersisted Store: Save becomes a no-op
// since path is empty. Used when the caller has disabled the displays
// cache entirely (spec.md §6 "disable-displays-cache").
func NewStore() *Store {
	return &Store{entries: map[string]PersistedEntry{}}
}

// LoadStore reads path if it exists, or returns an empty Store (a
// missing cache file is not an error — spec.md §6 describes caches as
// optional acceleration, never a hard dependency).
func LoadStore(path string) (*Store, error) {
	s := &Store{path: path, entries: map[string]PersistedEntry{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &s.entries); err != nil {
		return nil, err
	}
	if s.entries == nil {
		s.entries = map[string]PersistedEntry{}
	}
	return s, nil
}

// Get returns the persisted entry for key, if any.
func (s *Store) Get(key string) (PersistedEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// Put records (or replaces) the entry for key. Does not write to disk;
// call Save for that.
func (s *Store) Put(key string, e PersistedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
}

// Save serializes the store to its path atomically: write to a
// temporary file in the same directory, then rename over the target
// (spec.md §6 "rewritten atomically (write-temp-then-rename)").
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(s.entries)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".dsa-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}
