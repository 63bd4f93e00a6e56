// Package dom defines the small document surface the head engine mutates,
// plus an in-memory implementation of it.
//
// The engine only ever needs to create an element, set attributes and inner
// HTML on it, and append it to (or remove it from) the document head. The
// Document and Node interfaces capture exactly that; nothing else of a real
// DOM is modelled.
//
// MemoryDocument is the implementation used in tests and as the server-side
// mirror of a remote browser head. It validates tag and attribute names the
// way a browser would, so code paths that recover from rejected DOM calls
// can be exercised without a browser.
package dom
