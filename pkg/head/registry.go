package head

import (
	"log/slog"
	"sync"

	"github.com/vango-dev/helmet/pkg/dom"
)

// Entry is the registry's record for one materialised declaration.
// Entries are owned by the registry; callers treat them as read-only.
type Entry struct {
	// Declaration is the content the entry was acquired with.
	Declaration Declaration

	// Fingerprint is the declaration's content hash, fixed at acquisition.
	Fingerprint uint64

	// MountCount is the number of live component instances holding the
	// fingerprint.
	MountCount int

	// Node is the document node backing the entry. It is nil between
	// Acquire and Attach, and nil again once the entry is released.
	Node dom.Node
}

// Registry tracks which declarations are materialised in one document,
// keyed by content fingerprint. An entry exists exactly while at least one
// mounted instance holds its fingerprint.
//
// Registry operations never fail: bad input degrades to a logged no-op.
// Implementations assume a single caller at a time; the Binder serialises
// access and offers an optional try-lock for hosts that cannot guarantee
// it.
type Registry interface {
	// Acquire charges one reference for the declaration's fingerprint.
	// When the fingerprint is new, a fresh entry with MountCount 1 and no
	// node is created and fresh is true; otherwise the existing entry's
	// count is incremented and its declaration is left untouched.
	Acquire(d Declaration) (entry *Entry, fresh bool)

	// Release drops one reference. When the last holder releases,
	// the entry is removed and its node returned so the caller can detach
	// it from the document. Releasing an absent fingerprint logs and
	// returns (false, nil).
	Release(fingerprint uint64) (lastHolder bool, node dom.Node)

	// Attach records the document node backing a freshly acquired entry.
	// Attaching to an entry that already has a node is a no-op.
	Attach(entry *Entry, node dom.Node)

	// Lookup returns the live entry for a fingerprint, or nil.
	Lookup(fingerprint uint64) *Entry

	// Len reports the number of live entries.
	Len() int
}

type registry struct {
	entries map[uint64]*Entry
	logger  *slog.Logger
}

// RegistryOption configures a registry created by NewRegistry.
type RegistryOption func(*registry)

// WithRegistryLogger sets the logger used for accounting warnings.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry returns an empty registry. Hosts that mirror one document
// per session should create one registry per document rather than share
// Default.
func NewRegistry(opts ...RegistryOption) Registry {
	r := &registry{
		entries: make(map[uint64]*Entry),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultRegistry     Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry shared by binders that are not
// given their own. It is created lazily on first use.
func Default() Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func (r *registry) Acquire(d Declaration) (*Entry, bool) {
	fp := d.Fingerprint()
	if e, ok := r.entries[fp]; ok {
		e.MountCount++
		return e, false
	}
	e := &Entry{
		Declaration: d,
		Fingerprint: fp,
		MountCount:  1,
	}
	r.entries[fp] = e
	return e, true
}

func (r *registry) Release(fingerprint uint64) (bool, dom.Node) {
	e, ok := r.entries[fingerprint]
	if !ok {
		// A release with no matching acquire points at an accounting bug
		// in the caller.
		r.logger.Warn("release of unknown fingerprint", "fingerprint", fingerprint)
		return false, nil
	}
	e.MountCount--
	if e.MountCount > 0 {
		return false, nil
	}
	delete(r.entries, fingerprint)
	node := e.Node
	e.Node = nil
	return true, node
}

func (r *registry) Attach(entry *Entry, node dom.Node) {
	if entry == nil || node == nil {
		return
	}
	if entry.Node != nil {
		return
	}
	entry.Node = node
}

func (r *registry) Lookup(fingerprint uint64) *Entry {
	return r.entries[fingerprint]
}

func (r *registry) Len() int {
	return len(r.entries)
}
