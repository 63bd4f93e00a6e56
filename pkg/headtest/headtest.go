package headtest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/vango-dev/helmet/pkg/assets"
	"github.com/vango-dev/helmet/pkg/dom"
	"github.com/vango-dev/helmet/pkg/head"
	"github.com/vango-dev/helmet/pkg/vdom"
)

// HarnessConfig configures test harness behavior.
type HarnessConfig struct {
	// Manifest rewrites asset references during mounts.
	// If nil, sources pass through unchanged.
	Manifest *assets.Manifest

	// Logger receives reconciliation logs. If nil, logs are discarded.
	Logger *slog.Logger

	// Metrics receives reconciliation counters. If nil, none are recorded.
	Metrics *head.Metrics

	// Observer receives insert and remove notifications.
	Observer head.Observer
}

// HarnessOption configures a Harness.
type HarnessOption func(*HarnessConfig)

// WithManifest sets the asset manifest used to rewrite references.
func WithManifest(m *assets.Manifest) HarnessOption {
	return func(c *HarnessConfig) {
		c.Manifest = m
	}
}

// WithLogger sets the logger for the harness registry and binder.
func WithLogger(logger *slog.Logger) HarnessOption {
	return func(c *HarnessConfig) {
		c.Logger = logger
	}
}

// WithMetrics sets the metrics sink for the harness binder.
func WithMetrics(m *head.Metrics) HarnessOption {
	return func(c *HarnessConfig) {
		c.Metrics = m
	}
}

// WithObserver registers an observer for insert and remove events.
func WithObserver(o head.Observer) HarnessOption {
	return func(c *HarnessConfig) {
		c.Observer = o
	}
}

// Harness bundles a registry, an in-memory document, and a binder so
// tests can mount head declarations and assert on the resulting head.
// Each harness is fully isolated; nothing touches package-level state.
type Harness struct {
	registry head.Registry
	doc      *dom.MemoryDocument
	binder   *head.Binder
}

// NewHarness creates an isolated head engine for testing with optional
// configuration.
//
// Example:
//
//	h := headtest.NewHarness()
//	inst := h.Mount(vdom.Title(vdom.Text("Home")))
//	h.ExpectElement(t, "title")
//
//	inst.Unmount()
//	h.ExpectHeadCount(t, 0)
func NewHarness(opts ...HarnessOption) *Harness {
	config := HarnessConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	doc := dom.NewMemoryDocument()
	registry := head.NewRegistry(head.WithRegistryLogger(config.Logger))

	bopts := []head.BinderOption{
		head.WithRegistry(registry),
		head.WithDocument(doc),
		head.WithLogger(config.Logger),
	}
	if config.Manifest != nil {
		bopts = append(bopts, head.WithManifest(config.Manifest))
	}
	if config.Metrics != nil {
		bopts = append(bopts, head.WithMetrics(config.Metrics))
	}
	if config.Observer != nil {
		bopts = append(bopts, head.WithObserver(config.Observer))
	}

	return &Harness{
		registry: registry,
		doc:      doc,
		binder:   head.NewBinder(bopts...),
	}
}

// Mount reconciles the given head declarations into the document.
//
// Example:
//
//	inst := h.Mount(
//	    vdom.Title(vdom.Text("Dashboard")),
//	    vdom.Meta(vdom.Name("description"), vdom.Content("Stats")),
//	)
func (h *Harness) Mount(children ...*vdom.VNode) *head.Instance {
	return h.binder.Mount(context.Background(), children...)
}

// Binder returns the underlying binder for advanced testing.
func (h *Harness) Binder() *head.Binder {
	return h.binder
}

// Registry returns the underlying registry for advanced testing.
func (h *Harness) Registry() head.Registry {
	return h.registry
}

// Document returns the in-memory document the harness mounts into.
func (h *Harness) Document() *dom.MemoryDocument {
	return h.doc
}

// HeadHTML returns the current head contents as HTML.
func (h *Harness) HeadHTML() string {
	return h.doc.HeadHTML()
}

// RenderHead is a shorthand that mounts declarations into a fresh
// harness and returns the resulting head HTML.
//
// Example:
//
//	html := headtest.RenderHead(vdom.Title(vdom.Text("Home")))
//	if !strings.Contains(html, "<title") {
//	    t.Error("missing title element")
//	}
func RenderHead(children ...*vdom.VNode) string {
	h := NewHarness()
	h.Mount(children...)
	return h.HeadHTML()
}

// ExpectHeadCount asserts the number of live head elements.
//
// Example:
//
//	h.ExpectHeadCount(t, 2)
func (h *Harness) ExpectHeadCount(tb testing.TB, want int) {
	tb.Helper()
	got := len(h.doc.Head().Children())
	if got != want {
		tb.Errorf("expected %d head element(s), got %d:\n%s", want, got, truncate(h.HeadHTML(), 500))
	}
	if live := h.registry.Len(); live != got {
		tb.Errorf("registry holds %d entries but head has %d element(s)", live, got)
	}
}

// ExpectElement asserts that the head contains a specific tag.
//
// Example:
//
//	h.ExpectElement(t, "title")
func (h *Harness) ExpectElement(tb testing.TB, tag string) {
	tb.Helper()
	html := h.HeadHTML()
	if !strings.Contains(html, "<"+tag) {
		tb.Errorf("expected head to contain <%s> element, got:\n%s", tag, truncate(html, 500))
	}
}

// ExpectNoElement asserts that the head does not contain a specific tag.
//
// Example:
//
//	h.ExpectNoElement(t, "script")
func (h *Harness) ExpectNoElement(tb testing.TB, tag string) {
	tb.Helper()
	html := h.HeadHTML()
	if strings.Contains(html, "<"+tag) {
		tb.Errorf("expected head to NOT contain <%s> element, got:\n%s", tag, truncate(html, 500))
	}
}

// ExpectAttribute asserts that the head contains an attribute value.
//
// Example:
//
//	h.ExpectAttribute(t, "name", "description")
func (h *Harness) ExpectAttribute(tb testing.TB, attr, value string) {
	tb.Helper()
	html := h.HeadHTML()
	needle := attr + `="` + value + `"`
	if !strings.Contains(html, needle) {
		tb.Errorf("expected attribute %s=%q not found, got:\n%s", attr, value, truncate(html, 500))
	}
}

// ExpectContains asserts that the head HTML contains a substring.
//
// Example:
//
//	h.ExpectContains(t, "og:title")
func (h *Harness) ExpectContains(tb testing.TB, expected string) {
	tb.Helper()
	html := h.HeadHTML()
	if !strings.Contains(html, expected) {
		tb.Errorf("expected head to contain %q, got:\n%s", expected, truncate(html, 500))
	}
}

// ExpectNotContains asserts that the head HTML does not contain a substring.
//
// Example:
//
//	h.ExpectNotContains(t, "stale")
func (h *Harness) ExpectNotContains(tb testing.TB, unexpected string) {
	tb.Helper()
	html := h.HeadHTML()
	if strings.Contains(html, unexpected) {
		tb.Errorf("expected head to NOT contain %q, got:\n%s", unexpected, truncate(html, 500))
	}
}

// ExpectMarker asserts that an element carrying the fingerprint marker
// is present in the head.
//
// Example:
//
//	fps := inst.Fingerprints()
//	h.ExpectMarker(t, fps[0])
func (h *Harness) ExpectMarker(tb testing.TB, fingerprint uint64) {
	tb.Helper()
	html := h.HeadHTML()
	needle := head.MarkerAttr + `="` + head.MarkerValue(fingerprint) + `"`
	if !strings.Contains(html, needle) {
		tb.Errorf("expected marker for fingerprint %d not found, got:\n%s", fingerprint, truncate(html, 500))
	}
}

// ExpectLive asserts that the registry holds an entry for the fingerprint.
func (h *Harness) ExpectLive(tb testing.TB, fingerprint uint64) {
	tb.Helper()
	if h.registry.Lookup(fingerprint) == nil {
		tb.Errorf("expected fingerprint %d to be live in the registry", fingerprint)
	}
}

// ExpectReleased asserts that the registry no longer holds the fingerprint.
func (h *Harness) ExpectReleased(tb testing.TB, fingerprint uint64) {
	tb.Helper()
	if h.registry.Lookup(fingerprint) != nil {
		tb.Errorf("expected fingerprint %d to be released from the registry", fingerprint)
	}
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
