// Package helmet provides the public API for declarative document-head
// management.
//
// This is the recommended import for most applications:
//
//	import "github.com/vango-dev/helmet"
//
// Usage:
//
//	helmet.Helmet(
//	    helmet.Title(helmet.Text("Dashboard")),
//	    helmet.Meta(helmet.Name("description"), helmet.Content("Live stats")),
//	    helmet.Link(helmet.Rel("icon"), helmet.Href("/favicon.ico")),
//	)
//
// Helmet returns a component node that renders nothing. When the host
// framework mounts it, the declared elements are reconciled into the
// document head; when the owning scope is disposed, they are released
// again. Identical declarations from different components share a single
// head element through reference counting.
//
// Element bodies are applied as innerHTML, not as text content, so that
// style and script declarations behave the way authors expect. Never
// build declaration bodies from untrusted input.
package helmet

import (
	"context"
	"sync"

	"github.com/vango-dev/helmet/pkg/dom"
	"github.com/vango-dev/helmet/pkg/head"
	"github.com/vango-dev/helmet/pkg/life"
	"github.com/vango-dev/helmet/pkg/vdom"
)

// =============================================================================
// Engine (head.Binder exposed as helmet.Engine)
// =============================================================================

// Engine reconciles head declarations against one document. It is
// head.Binder under a friendlier name; servers construct one per session,
// single-document hosts use the process-wide default.
type Engine = head.Binder

// Instance holds the declarations one mounted Helmet acquired. Unmount
// releases them.
type Instance = head.Instance

// Option configures an Engine.
type Option = head.BinderOption

// Engine options (re-export from pkg/head)
var (
	// WithRegistry substitutes the registry. Tests use this to isolate
	// reference counts from the process default.
	WithRegistry = head.WithRegistry

	// WithDocument sets the document whose head the engine manages.
	WithDocument = head.WithDocument

	// WithManifest resolves href, src and content values through an asset
	// manifest before fingerprinting.
	WithManifest = head.WithManifest

	// WithLogger sets the engine's structured logger.
	WithLogger = head.WithLogger

	// WithMetrics wires Prometheus instruments into the engine.
	WithMetrics = head.WithMetrics

	// WithTracing wires OpenTelemetry spans around mount and unmount.
	WithTracing = head.WithTracing

	// WithTryLock makes concurrent reconcile passes skip instead of block.
	WithTryLock = head.WithTryLock

	// WithObserver registers a hook for insert and remove events.
	WithObserver = head.WithObserver
)

// New returns an engine wired to the given options.
//
// With no options the engine shares the process-wide registry and manages
// the process-wide in-memory document, so two zero-config engines count
// references against the same head.
//
// Example:
//
//	engine := helmet.New(
//	    helmet.WithManifest(manifest),
//	    helmet.WithLogger(logger),
//	)
//	inst := engine.Mount(ctx, helmet.Title(helmet.Text("Home")))
//	defer inst.Unmount()
func New(opts ...Option) *Engine {
	base := []Option{WithDocument(Document())}
	return head.NewBinder(append(base, opts...)...)
}

var (
	processDoc     *dom.MemoryDocument
	processDocOnce sync.Once
)

// Document returns the process-wide in-memory document. It is created
// lazily on first use and shared by every zero-config engine.
func Document() *dom.MemoryDocument {
	processDocOnce.Do(func() {
		processDoc = dom.NewMemoryDocument()
	})
	return processDoc
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
)

// DefaultEngine returns the process-wide engine used by Helmet. It is
// created lazily on first use.
func DefaultEngine() *Engine {
	defaultEngineOnce.Do(func() {
		defaultEngine = New()
	})
	return defaultEngine
}

// HeadHTML returns the process-wide document head as HTML. Handy for
// serving the reconciled head or inspecting it in tests.
func HeadHTML() string {
	return Document().HeadHTML()
}

// =============================================================================
// Helmet component
// =============================================================================

// Helmet declares head elements for the lifetime of the surrounding
// component scope. It accepts head-bound element nodes (title, meta,
// link, base, style, script, noscript) and renders nothing itself.
//
// The declarations mount when the component mounts and release when the
// owning scope is disposed. Children are not diffed on re-render; to
// change declarations, remount the component (for example by keying it).
//
// Bodies are innerHTML. Do not pass untrusted input.
//
// Example:
//
//	func ArticlePage(a Article) *vdom.VNode {
//	    return vdom.Fragment(
//	        helmet.Helmet(
//	            helmet.Title(helmet.Text(a.Title)),
//	            helmet.Meta(helmet.Property("og:title"), helmet.Content(a.Title)),
//	        ),
//	        ArticleBody(a),
//	    )
//	}
func Helmet(children ...any) *vdom.VNode {
	return component(DefaultEngine(), children)
}

// Bind returns a Helmet constructor tied to a specific engine. Servers
// use this to scope declarations to one session's document.
//
// Example:
//
//	Helmet := helmet.Bind(sessionEngine)
//	view := Helmet(helmet.Title(helmet.Text("Inbox")))
func Bind(engine *Engine) func(children ...any) *vdom.VNode {
	return func(children ...any) *vdom.VNode {
		return component(engine, children)
	}
}

// component builds the render-nothing component node. The mount effect
// registers once per node; rendering the same node again is a no-op, so
// hosts that re-render without remounting cannot double-acquire.
func component(engine *Engine, children []any) *vdom.VNode {
	nodes := collectNodes(children)
	var once sync.Once
	return &vdom.VNode{
		Kind: vdom.KindComponent,
		Comp: vdom.Func(func() *vdom.VNode {
			once.Do(func() {
				life.CreateEffect(func() life.Cleanup {
					inst := engine.Mount(context.Background(), nodes...)
					return inst.Unmount
				})
			})
			return nil
		}),
	}
}

// collectNodes coerces the children slot the way Fragment does: nodes
// pass through, slices flatten, strings become text, nils drop.
func collectNodes(children []any) []*vdom.VNode {
	nodes := make([]*vdom.VNode, 0, len(children))
	for _, child := range children {
		switch v := child.(type) {
		case nil:
			continue
		case *vdom.VNode:
			if v != nil {
				nodes = append(nodes, v)
			}
		case []*vdom.VNode:
			for _, c := range v {
				if c != nil {
					nodes = append(nodes, c)
				}
			}
		case string:
			nodes = append(nodes, vdom.Text(v))
		}
	}
	return nodes
}

// =============================================================================
// Declarations and registry (re-export from pkg/head)
// =============================================================================

// Declaration is the content-addressed projection of one head element.
type Declaration = head.Declaration

// Registry reference-counts live declarations.
type Registry = head.Registry

// Observer receives insert and remove notifications from an engine.
type Observer = head.Observer

// MarkerAttr is the attribute every managed head element carries; its
// value is the declaration fingerprint in decimal.
const MarkerAttr = head.MarkerAttr

// NewRegistry creates an isolated registry, typically one per test or
// per server session.
var NewRegistry = head.NewRegistry

// WithRegistryLogger sets the logger a registry reports illegal releases
// with.
var WithRegistryLogger = head.WithRegistryLogger

// Extract projects component children into declarations without
// mounting them.
var Extract = head.Extract

// =============================================================================
// Element constructors (re-export from pkg/vdom)
// =============================================================================

// Head-bound element constructors.
var (
	Title    = vdom.Title
	Meta     = vdom.Meta
	Link     = vdom.Link
	Base     = vdom.Base
	Style    = vdom.Style
	Script   = vdom.Script
	Noscript = vdom.Noscript
)

// CustomElement declares an element with an arbitrary tag.
var CustomElement = vdom.CustomElement

// Text creates a text node for element bodies.
var Text = vdom.Text

// Textf creates a formatted text node.
var Textf = vdom.Textf

// Fragment groups declarations without a wrapper element.
var Fragment = vdom.Fragment

// Common attribute helpers.
var (
	Name      = vdom.Name
	Content   = vdom.Content
	Charset   = vdom.Charset
	HttpEquiv = vdom.HttpEquiv
	Property  = vdom.Property
	Href      = vdom.Href
	Rel       = vdom.Rel
	Hreflang  = vdom.Hreflang
	Target    = vdom.Target
	As        = vdom.As
	Media     = vdom.Media
	Sizes     = vdom.Sizes
	Src       = vdom.Src
	Type      = vdom.Type
	Async     = vdom.Async
	Nonce     = vdom.Nonce
	Disabled  = vdom.Disabled
)

// VNode is the virtual node type the element constructors produce.
type VNode = vdom.VNode

// Attr is a single attribute produced by the attribute helpers.
type Attr = vdom.Attr

// Component is anything that can render to a VNode.
type Component = vdom.Component
