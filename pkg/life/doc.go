// Package life provides the component lifecycle scopes the head engine
// rides on.
//
// An Owner represents one mounted component instance. Owners form a tree
// mirroring the component tree; disposing an Owner disposes its children
// first, then runs its cleanups in reverse registration order. Effects
// created during render run immediately and may return a Cleanup that fires
// on disposal, which is exactly the mount/unmount boundary head
// declarations bind to.
//
// The current Owner is ambient per goroutine. Hosts wrap each component
// render in WithOwner so that OnMount, OnUnmount, and CreateEffect calls
// made inside a render function land on the right scope.
package life
