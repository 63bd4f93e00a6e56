// Package assets maps source asset paths to their fingerprinted builds.
//
// A build pipeline that fingerprints static files emits a manifest.json
// mapping each source path to its hashed version:
//
//	{
//	  "/app.css": "/app.3f9d1c.css",
//	  "/app.js": "/app.b07a22.min.js"
//	}
//
// The head engine consults the manifest before hashing declarations, so a
// link or script that references "/app.css" is declared, deduplicated and
// rendered with its fingerprinted path. Components can also resolve paths
// directly through a Resolver when building nodes.
package assets

import (
	"encoding/json"
	"io/fs"
	"os"
	"sync"
)

// Manifest holds the mapping from source asset paths to fingerprinted
// paths. It is safe for concurrent use, so one manifest can back every
// session of a server.
type Manifest struct {
	entries map[string]string
	mu      sync.RWMutex
}

// NewManifest creates an empty manifest. Use Load or LoadFS to read one
// from a build's manifest.json.
func NewManifest() *Manifest {
	return &Manifest{
		entries: make(map[string]string),
	}
}

// Load reads a manifest.json file from disk. The file holds a flat JSON
// object of source to fingerprinted paths.
//
// In development, where no build has run, ignore the error and mount
// without a manifest; unresolved paths pass through unchanged.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// LoadFS reads a manifest.json from a filesystem, typically an embed.FS
// shipped with the binary.
func LoadFS(fsys fs.FS, path string) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*Manifest, error) {
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	return &Manifest{entries: entries}, nil
}

// Resolve returns the fingerprinted path for the given source path. A
// source the manifest does not know is returned unchanged, which keeps
// resolution safe to apply to any attribute value.
func (m *Manifest) Resolve(source string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if resolved, ok := m.entries[source]; ok {
		return resolved
	}
	return source
}

// Has reports whether the manifest maps the given source path.
func (m *Manifest) Has(source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[source]
	return ok
}

// Set adds or replaces an entry. Useful in tests and for manifests built
// at runtime.
func (m *Manifest) Set(source, resolved string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[source] = resolved
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// All returns a copy of every entry.
func (m *Manifest) All() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}
