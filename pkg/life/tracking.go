package life

import (
	"runtime"
	"sync"
)

// currentOwners stores the ambient Owner per goroutine.
// Using sync.Map for concurrent access from multiple session goroutines.
var currentOwners sync.Map

// getGoroutineID returns a unique identifier for the current goroutine.
// This uses the runtime stack to extract the goroutine ID.
// Note: This is an implementation detail and should not be relied upon externally.
func getGoroutineID() uint64 {
	// Use a buffer to read the stack
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> "
	// Parse the ID from the stack trace
	var id uint64
	for i := 10; i < n; i++ { // Skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// Current returns the ambient owner for the calling goroutine.
// Returns nil if no owner context is set.
func Current() *Owner {
	if o, ok := currentOwners.Load(getGoroutineID()); ok {
		return o.(*Owner)
	}
	return nil
}

// setCurrent sets the ambient owner for the calling goroutine.
// Returns the previous owner so it can be restored.
func setCurrent(o *Owner) *Owner {
	gid := getGoroutineID()

	var old *Owner
	if prev, ok := currentOwners.Load(gid); ok {
		old = prev.(*Owner)
	}

	if o == nil {
		currentOwners.Delete(gid)
	} else {
		currentOwners.Store(gid, o)
	}
	return old
}

// WithOwner runs fn with the given owner as the ambient owner.
// Hosts call this around each component render so that OnMount, OnUnmount,
// and CreateEffect land on the scope being rendered.
func WithOwner(owner *Owner, fn func()) {
	old := setCurrent(owner)
	defer setCurrent(old)
	fn()
}
