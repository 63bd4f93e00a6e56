// Package head reconciles declarative head markup against a live document.
//
// Components declare the head elements they want (title, meta, link, style,
// script) as ordinary virtual nodes. On mount the engine projects those
// nodes into value declarations, deduplicates them by content fingerprint
// in a Registry, and materialises every declaration that is not already
// present. On unmount it releases the instance's fingerprints and detaches
// a node only when its last holder is gone. Nothing is diffed in place: a
// changed declaration is simply a different fingerprint, mounted alongside
// the old one until the old holder unmounts.
//
// The Registry interface is the seam for tests and for multi-document
// hosts. Default returns the process-wide registry used when a Binder is
// constructed without one; servers that mirror one document per session
// should build an isolated registry per session with NewRegistry.
//
// # Security
//
// Declaration bodies are written to the document through innerHTML, not
// textContent, so style and script elements behave the way authors expect.
// The engine performs no sanitisation. Never build head children from
// untrusted strings: anything interpolated into a declaration body reaches
// the browser as live markup.
package head
