// Package headtest provides testing helpers for head reconciliation.
//
// The headtest package reduces boilerplate when testing components that
// declare head elements by bundling a registry, an in-memory document,
// and a binder into one isolated harness with fluent assertions.
//
// # Quick Start
//
//	func TestArticleHead(t *testing.T) {
//	    h := headtest.NewHarness()
//	    h.Mount(
//	        vdom.Title(vdom.Text("Article")),
//	        vdom.Meta(vdom.Name("description"), vdom.Content("Long read")),
//	    )
//	    h.ExpectElement(t, "title")
//	    h.ExpectAttribute(t, "name", "description")
//	}
//
// # Harness Construction
//
// The harness accepts options for the pieces a test wants to control:
//
//	h := headtest.NewHarness(
//	    headtest.WithManifest(manifest),
//	    headtest.WithObserver(recorder),
//	)
//
// Every harness owns its own registry and document, so parallel tests
// never share head state.
//
// # One-Liner Shorthand
//
// For assertions on a single mount, use the shorthand:
//
//	html := headtest.RenderHead(vdom.Title(vdom.Text("Home")))
//
// # Head Assertions
//
// Assert on the reconciled head:
//
//	h.ExpectHeadCount(t, 2)
//	h.ExpectElement(t, "meta")
//	h.ExpectNoElement(t, "script")
//	h.ExpectContains(t, "og:title")
//
// # Lifecycle Tests
//
// Mount returns the instance handle, so tests can drive the full
// lifecycle including shared declarations:
//
//	func TestSharedTitle(t *testing.T) {
//	    h := headtest.NewHarness()
//	    a := h.Mount(vdom.Title(vdom.Text("Home")))
//	    b := h.Mount(vdom.Title(vdom.Text("Home")))
//	    h.ExpectHeadCount(t, 1)
//
//	    a.Unmount()
//	    h.ExpectHeadCount(t, 1)
//
//	    b.Unmount()
//	    h.ExpectHeadCount(t, 0)
//	}
package headtest
