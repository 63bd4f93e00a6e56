package head

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/helmet/pkg/assets"
	"github.com/vango-dev/helmet/pkg/dom"
	"github.com/vango-dev/helmet/pkg/vdom"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stage labels for dropped document operations.
const (
	stageCreate    = "create"
	stageAttribute = "attribute"
	stageAppend    = "append"
	stageDetach    = "detach"
)

// Skip reasons for reconcile passes that never ran.
const (
	skipNoDocument   = "no_document"
	skipRegistryBusy = "registry_busy"
)

// Observer receives notifications as the binder mutates the head.
// Implementations must be fast; they run inside the reconcile pass.
// Sessions use this hook to stream head operations to a client mirror.
type Observer interface {
	// HeadInserted fires after a declaration's node is appended to the
	// head and attached to its registry entry.
	HeadInserted(d Declaration, fingerprint uint64)

	// HeadRemoved fires after the last holder's node is detached.
	HeadRemoved(fingerprint uint64)
}

// Binder drives head reconciliation for one document. Mount charges the
// declarations found in a component's children and materialises the fresh
// ones; the returned Instance releases them again on Unmount.
//
// A Binder without a document skips every pass, which lets components
// render unchanged in hosts that have no head to manage.
type Binder struct {
	reg      Registry
	doc      dom.Document
	manifest *assets.Manifest
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	observer Observer
	mu       *sync.Mutex
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithRegistry sets the registry the binder charges. Defaults to the
// process-wide registry from Default.
func WithRegistry(r Registry) BinderOption {
	return func(b *Binder) {
		if r != nil {
			b.reg = r
		}
	}
}

// WithDocument sets the document whose head the binder manages. A binder
// without a document skips every mount and unmount.
func WithDocument(d dom.Document) BinderOption {
	return func(b *Binder) {
		b.doc = d
	}
}

// WithManifest enables asset resolution. Attribute values the manifest
// recognises (href, src and content) are rewritten to their fingerprinted
// paths before declarations are hashed, so the rewrite participates in
// deduplication.
func WithManifest(m *assets.Manifest) BinderOption {
	return func(b *Binder) {
		b.manifest = m
	}
}

// WithLogger sets the binder's logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) BinderOption {
	return func(b *Binder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics sets the Prometheus instruments the binder records.
func WithMetrics(m *Metrics) BinderOption {
	return func(b *Binder) {
		b.metrics = m
	}
}

// WithObserver sets the mutation observer.
func WithObserver(o Observer) BinderOption {
	return func(b *Binder) {
		b.observer = o
	}
}

// WithTryLock guards reconcile passes with a non-blocking mutex. The host
// is expected to run passes one at a time; with this option a contended
// pass is skipped gracefully instead of racing, and the skip is logged and
// counted. Skipped unmounts keep their instance releasable so a later call
// can retry.
func WithTryLock() BinderOption {
	return func(b *Binder) {
		b.mu = new(sync.Mutex)
	}
}

// NewBinder returns a binder wired to the given options.
func NewBinder(opts ...BinderOption) *Binder {
	b := &Binder{
		reg:    Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Registry returns the registry the binder charges.
func (b *Binder) Registry() Registry {
	return b.reg
}

// Document returns the document the binder manages, nil when unset.
func (b *Binder) Document() dom.Document {
	return b.doc
}

// Instance tracks the fingerprints one mounted component holds. The zero
// value holds nothing and unmounts as a no-op.
type Instance struct {
	binder       *Binder
	fingerprints []uint64
	released     bool
}

// Mount extracts declarations from children and charges them against the
// registry. Fresh fingerprints are materialised as head nodes; repeated
// ones only gain a reference. A fingerprint occurring more than once in
// children is charged a single time, so mount and unmount stay balanced.
//
// Mount never fails. Declarations the document rejects are dropped with
// their registry charge rolled back, and a pass that cannot run at all
// (no document, or a contended try-lock) returns an empty instance.
func (b *Binder) Mount(ctx context.Context, children ...*vdom.VNode) *Instance {
	inst := &Instance{binder: b}
	if ctx == nil {
		ctx = context.Background()
	}
	if b.doc == nil {
		b.metrics.RecordSkip(skipNoDocument)
		b.logger.Debug("head mount skipped", "reason", "no document")
		return inst
	}
	if !b.tryLock() {
		b.metrics.RecordSkip(skipRegistryBusy)
		b.logger.Debug("head mount skipped", "reason", "registry busy")
		return inst
	}
	defer b.unlock()

	start := time.Now()
	ctx, span := b.startSpan(ctx, "helmet.mount")
	defer span.End()

	decls := Extract(children)
	for i := range decls {
		b.resolveAssets(&decls[i])
	}

	headNode := b.doc.Head()
	seen := make(map[uint64]struct{}, len(decls))
	var fresh int
	for _, d := range decls {
		fp := d.Fingerprint()
		if _, dup := seen[fp]; dup {
			continue
		}
		entry, isFresh := b.reg.Acquire(d)
		if isFresh {
			node, stage, err := b.materialise(headNode, d, fp)
			if err != nil {
				b.reg.Release(fp)
				b.metrics.RecordRejection(stage)
				b.logger.Warn("head declaration dropped",
					"tag", d.Tag, "fingerprint", fp, "stage", stage, "error", err)
				span.RecordError(err)
				continue
			}
			b.reg.Attach(entry, node)
			if b.observer != nil {
				b.observer.HeadInserted(d, fp)
			}
			fresh++
		}
		b.metrics.RecordAcquire(d.Tag, isFresh)
		seen[fp] = struct{}{}
		inst.fingerprints = append(inst.fingerprints, fp)
	}

	b.metrics.SetLive(b.reg.Len())
	b.metrics.RecordReconcile("mount", time.Since(start))
	span.SetAttributes(
		attribute.Int("helmet.declarations", len(decls)),
		attribute.Int("helmet.fresh", fresh),
	)
	span.SetStatus(codes.Ok, "")
	return inst
}

// materialise creates, fills and appends the node for a fresh declaration.
// Attributes are applied in sorted order, then the marker, then the body.
// On error the partially built node is abandoned and the failing stage
// returned for accounting.
func (b *Binder) materialise(parent dom.Node, d Declaration, fp uint64) (dom.Node, string, error) {
	node, err := b.doc.CreateElement(d.Tag)
	if err != nil {
		return nil, stageCreate, err
	}
	for _, name := range sortedAttrNames(d.Attrs) {
		if err := node.SetAttribute(name, d.Attrs[name]); err != nil {
			return nil, stageAttribute, err
		}
	}
	if err := node.SetAttribute(MarkerAttr, MarkerValue(fp)); err != nil {
		return nil, stageAttribute, err
	}
	if d.InnerHTML != nil {
		node.SetInnerHTML(*d.InnerHTML)
	}
	if err := parent.AppendChild(node); err != nil {
		return nil, stageAppend, err
	}
	return node, "", nil
}

// resolvableAttrs are the attributes the manifest may rewrite.
var resolvableAttrs = [...]string{"href", "src", "content"}

// resolveAssets rewrites asset references the manifest knows about.
// Rewriting happens before fingerprinting so that a manifest change yields
// a new fingerprint rather than a stale node.
func (b *Binder) resolveAssets(d *Declaration) {
	if b.manifest == nil {
		return
	}
	for _, name := range resolvableAttrs {
		if v, ok := d.Attrs[name]; ok && b.manifest.Has(v) {
			d.Attrs[name] = b.manifest.Resolve(v)
		}
	}
}

// Unmount releases every fingerprint the instance holds and detaches the
// nodes whose last holder it was. It is idempotent; only the first
// successful call releases. With a contended try-lock the pass is skipped
// and the instance stays releasable.
func (inst *Instance) Unmount() {
	if inst == nil || inst.binder == nil || inst.released {
		return
	}
	if len(inst.fingerprints) == 0 {
		inst.released = true
		return
	}
	b := inst.binder
	if !b.tryLock() {
		b.metrics.RecordSkip(skipRegistryBusy)
		b.logger.Debug("head unmount skipped", "reason", "registry busy")
		return
	}
	defer b.unlock()

	start := time.Now()
	_, span := b.startSpan(context.Background(), "helmet.unmount")
	defer span.End()

	headNode := b.doc.Head()
	var released, detached int
	for _, fp := range inst.fingerprints {
		var tag string
		if e := b.reg.Lookup(fp); e != nil {
			tag = e.Declaration.Tag
		}
		last, node := b.reg.Release(fp)
		b.metrics.RecordRelease(tag, last)
		released++
		if !last || node == nil {
			continue
		}
		if err := headNode.RemoveChild(node); err != nil {
			// The registry entry is already gone; the node lingers in the
			// document rather than leaving the count wrong.
			b.metrics.RecordRejection(stageDetach)
			b.logger.Warn("head node detach failed", "fingerprint", fp, "error", err)
			span.RecordError(err)
			continue
		}
		detached++
		if b.observer != nil {
			b.observer.HeadRemoved(fp)
		}
	}
	inst.fingerprints = nil
	inst.released = true

	b.metrics.SetLive(b.reg.Len())
	b.metrics.RecordReconcile("unmount", time.Since(start))
	span.SetAttributes(
		attribute.Int("helmet.released", released),
		attribute.Int("helmet.detached", detached),
	)
	span.SetStatus(codes.Ok, "")
}

// Fingerprints returns the fingerprints the instance holds, in acquisition
// order. After Unmount it returns nil.
func (inst *Instance) Fingerprints() []uint64 {
	if inst == nil || len(inst.fingerprints) == 0 {
		return nil
	}
	out := make([]uint64, len(inst.fingerprints))
	copy(out, inst.fingerprints)
	return out
}

func (b *Binder) tryLock() bool {
	if b.mu == nil {
		return true
	}
	return b.mu.TryLock()
}

func (b *Binder) unlock() {
	if b.mu != nil {
		b.mu.Unlock()
	}
}
