package life

import "sync/atomic"

// Cleanup is a function run when an effect's owner is disposed.
type Cleanup func()

// Effect represents a side effect bound to an Owner's lifetime. The effect
// function runs once at creation; if it returns a Cleanup, that cleanup is
// called when the effect is disposed.
type Effect struct {
	id uint64

	// fn is the effect function to run.
	fn func() Cleanup

	// cleanup is the cleanup function from the run.
	cleanup Cleanup

	// disposed indicates the effect has been disposed.
	disposed atomic.Bool
}

// ID returns the unique identifier for this effect.
func (e *Effect) ID() uint64 {
	return e.id
}

// run executes the effect function.
func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}
	e.cleanup = e.fn()
}

// dispose runs the effect's cleanup, once.
func (e *Effect) dispose() {
	if e.disposed.Swap(true) {
		return
	}

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

// CreateEffect creates and runs a new effect within the current owner
// context. The effect function runs immediately; if it returns a Cleanup,
// it will be called when the owning scope is disposed.
//
// Example:
//
//	CreateEffect(func() Cleanup {
//	    inst := engine.Mount(ctx, children)
//	    return inst.Unmount
//	})
func CreateEffect(fn func() Cleanup) *Effect {
	owner := Current()

	e := &Effect{
		id: nextID(),
		fn: fn,
	}

	if owner != nil {
		owner.registerEffect(e)
	}

	// Run immediately
	e.run()

	return e
}

// OnMount creates an effect that runs only once on mount.
//
// Example:
//
//	OnMount(func() {
//	    log.Println("component mounted")
//	})
func OnMount(fn func()) {
	CreateEffect(func() Cleanup {
		fn()
		return nil
	})
}

// OnUnmount registers a function to run when the owner is disposed.
// This is typically used for cleanup when a component unmounts.
//
// Example:
//
//	OnUnmount(func() {
//	    log.Println("component unmounted")
//	})
func OnUnmount(fn func()) {
	owner := Current()
	if owner != nil {
		owner.OnCleanup(fn)
	}
}
