package ddc

import (
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// CapabilitiesCache is the persisted "raw capabilities string per EDID"
// store of spec.md §6, mirroring dsa.Store's atomic write-temp-then
// -rename discipline.
type CapabilitiesCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// LoadCapabilitiesCache reads path if present, or starts empty.
func LoadCapabilitiesCache(path string) (*CapabilitiesCache, error) {
	c := &CapabilitiesCache{path: path, entries: map[string]string{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &c.entries); err != nil {
		return nil, err
	}
	if c.entries == nil {
		c.entries = map[string]string{}
	}
	return c, nil
}

// Get returns the cached raw capabilities string for an EDID identity
// key, if any.
func (c *CapabilitiesCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put records (or replaces) the cached string for key.
func (c *CapabilitiesCache) Put(key, raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
}

// Save persists the cache atomically. A no-op for a cache constructed
// without a backing path (spec.md §6 "disable-capabilities-cache").
func (c *CapabilitiesCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" {
		return nil
	}
	data, err := yaml.Marshal(c.entries)
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".capabilities-*.tmp")
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
	return os.Rename(tmpName, c.path)
}
