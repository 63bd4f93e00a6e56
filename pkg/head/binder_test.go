package head

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vango-dev/helmet/pkg/assets"
	"github.com/vango-dev/helmet/pkg/dom"
	"github.com/vango-dev/helmet/pkg/vdom"
	"pgregory.net/rapid"
)

func newTestBinder(opts ...BinderOption) (*Binder, *dom.MemoryDocument) {
	doc := dom.NewMemoryDocument()
	base := []BinderOption{
		WithRegistry(quietRegistry()),
		WithDocument(doc),
		WithLogger(discardLogger()),
	}
	return NewBinder(append(base, opts...)...), doc
}

func TestMountMaterialisesDeclarations(t *testing.T) {
	b, doc := newTestBinder()

	inst := b.Mount(context.Background(),
		vdom.Title(vdom.Text("Home")),
		vdom.Meta(vdom.Charset("utf-8")),
	)

	children := doc.Head().Children()
	if len(children) != 2 {
		t.Fatalf("head has %d children, want 2", len(children))
	}
	title := children[0]
	if title.TagName() != "title" {
		t.Errorf("first child tag = %q, want title", title.TagName())
	}
	if title.InnerHTML() != "Home" {
		t.Errorf("title body = %q, want Home", title.InnerHTML())
	}
	fps := inst.Fingerprints()
	if len(fps) != 2 {
		t.Fatalf("instance holds %d fingerprints, want 2", len(fps))
	}
	if v, ok := title.Attribute(MarkerAttr); !ok || v != MarkerValue(fps[0]) {
		t.Errorf("title marker = %q, want %q", v, MarkerValue(fps[0]))
	}

	inst.Unmount()
	if got := len(doc.Head().Children()); got != 0 {
		t.Errorf("head has %d children after unmount, want 0", got)
	}
	if b.Registry().Len() != 0 {
		t.Errorf("registry holds %d entries after unmount, want 0", b.Registry().Len())
	}
}

func TestSharedDeclarationSurvivesFirstUnmount(t *testing.T) {
	b, doc := newTestBinder()
	decl := func() *vdom.VNode {
		return vdom.Meta(vdom.Name("description"), vdom.Content("shared"))
	}

	first := b.Mount(context.Background(), decl())
	second := b.Mount(context.Background(), decl())

	if got := len(doc.Head().Children()); got != 1 {
		t.Fatalf("head has %d children, want 1 shared node", got)
	}
	entry := b.Registry().Lookup(first.Fingerprints()[0])
	if entry == nil || entry.MountCount != 2 {
		t.Fatalf("entry = %+v, want MountCount 2", entry)
	}

	first.Unmount()
	if got := len(doc.Head().Children()); got != 1 {
		t.Errorf("head has %d children after first unmount, want 1", got)
	}
	if entry.MountCount != 1 {
		t.Errorf("MountCount = %d after first unmount, want 1", entry.MountCount)
	}

	second.Unmount()
	if got := len(doc.Head().Children()); got != 0 {
		t.Errorf("head has %d children after last unmount, want 0", got)
	}
	if b.Registry().Len() != 0 {
		t.Errorf("registry holds %d entries, want 0", b.Registry().Len())
	}
}

func TestUpdateReplacesDeclaration(t *testing.T) {
	b, doc := newTestBinder()

	old := b.Mount(context.Background(), vdom.Title(vdom.Text("One")))
	updated := b.Mount(context.Background(), vdom.Title(vdom.Text("Two")))

	// Both titles coexist until the old holder lets go.
	if got := len(doc.Head().Children()); got != 2 {
		t.Fatalf("head has %d children during overlap, want 2", got)
	}

	old.Unmount()
	children := doc.Head().Children()
	if len(children) != 1 {
		t.Fatalf("head has %d children after replacement, want 1", len(children))
	}
	if children[0].InnerHTML() != "Two" {
		t.Errorf("surviving title body = %q, want Two", children[0].InnerHTML())
	}

	updated.Unmount()
	if b.Registry().Len() != 0 {
		t.Errorf("registry holds %d entries, want 0", b.Registry().Len())
	}
}

func TestDuplicateDeclarationChargedOnce(t *testing.T) {
	b, doc := newTestBinder()

	inst := b.Mount(context.Background(),
		vdom.Link(vdom.Rel("stylesheet"), vdom.Href("/a.css")),
		vdom.Link(vdom.Rel("stylesheet"), vdom.Href("/a.css")),
	)

	fps := inst.Fingerprints()
	if len(fps) != 1 {
		t.Fatalf("instance holds %d fingerprints, want 1", len(fps))
	}
	if got := len(doc.Head().Children()); got != 1 {
		t.Fatalf("head has %d children, want 1", got)
	}
	if entry := b.Registry().Lookup(fps[0]); entry == nil || entry.MountCount != 1 {
		t.Fatalf("entry = %+v, want MountCount 1", entry)
	}

	inst.Unmount()
	if b.Registry().Len() != 0 || len(doc.Head().Children()) != 0 {
		t.Error("duplicate charge left residue after unmount")
	}
}

func TestUnmountIdempotent(t *testing.T) {
	b, doc := newTestBinder()

	keeper := b.Mount(context.Background(), vdom.Title(vdom.Text("Kept")))
	inst := b.Mount(context.Background(), vdom.Title(vdom.Text("Kept")))

	inst.Unmount()
	inst.Unmount()
	inst.Unmount()

	if entry := b.Registry().Lookup(keeper.Fingerprints()[0]); entry == nil || entry.MountCount != 1 {
		t.Fatalf("entry = %+v, want MountCount 1 after repeated unmounts", entry)
	}
	if got := len(doc.Head().Children()); got != 1 {
		t.Errorf("head has %d children, want 1", got)
	}

	keeper.Unmount()

	var nilInst *Instance
	nilInst.Unmount()
	(&Instance{}).Unmount()
}

func TestAttributeStringificationOnNodes(t *testing.T) {
	b, doc := newTestBinder()

	inst := b.Mount(context.Background(), vdom.CustomElement("meta",
		vdom.Attr{Key: "data-count", Value: 3},
		vdom.Attr{Key: "data-ratio", Value: 0.5},
		vdom.Attr{Key: "data-flag", Value: true},
		vdom.Attr{Key: "data-off", Value: false},
	))
	defer inst.Unmount()

	node := doc.Head().Children()[0]
	want := map[string]string{
		"data-count": "3",
		"data-ratio": "0.5",
		"data-flag":  "true",
		"data-off":   "false",
	}
	for name, value := range want {
		if got, ok := node.Attribute(name); !ok || got != value {
			t.Errorf("attribute %s = %q, want %q", name, got, value)
		}
	}
}

func TestRejectedDeclarationRolledBack(t *testing.T) {
	tests := []struct {
		name string
		node *vdom.VNode
	}{
		{
			name: "invalid tag",
			node: vdom.CustomElement("bad tag"),
		},
		{
			name: "invalid attribute name",
			node: vdom.CustomElement("meta", vdom.Attr{Key: "bad name", Value: "x"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, doc := newTestBinder()

			inst := b.Mount(context.Background(),
				tt.node,
				vdom.Meta(vdom.Charset("utf-8")),
			)

			children := doc.Head().Children()
			if len(children) != 1 {
				t.Fatalf("head has %d children, want only the valid one", len(children))
			}
			if children[0].TagName() != "meta" {
				t.Errorf("surviving tag = %q, want meta", children[0].TagName())
			}
			if b.Registry().Len() != 1 {
				t.Errorf("registry holds %d entries, want 1", b.Registry().Len())
			}
			if got := len(inst.Fingerprints()); got != 1 {
				t.Errorf("instance holds %d fingerprints, want 1", got)
			}

			inst.Unmount()
			if b.Registry().Len() != 0 || len(doc.Head().Children()) != 0 {
				t.Error("rejected declaration left residue after unmount")
			}
		})
	}
}

func TestMountWithoutDocumentSkips(t *testing.T) {
	b := NewBinder(
		WithRegistry(quietRegistry()),
		WithLogger(discardLogger()),
	)

	inst := b.Mount(context.Background(), vdom.Title(vdom.Text("X")))
	if len(inst.Fingerprints()) != 0 {
		t.Errorf("instance holds fingerprints without a document: %v", inst.Fingerprints())
	}
	if b.Registry().Len() != 0 {
		t.Errorf("registry holds %d entries, want 0", b.Registry().Len())
	}
	inst.Unmount()
}

func TestTryLockSkipsContendedMount(t *testing.T) {
	b, doc := newTestBinder(WithTryLock())

	b.mu.Lock()
	inst := b.Mount(context.Background(), vdom.Title(vdom.Text("X")))
	b.mu.Unlock()

	if len(inst.Fingerprints()) != 0 {
		t.Errorf("contended mount charged %v", inst.Fingerprints())
	}
	if got := len(doc.Head().Children()); got != 0 {
		t.Errorf("head has %d children after skipped mount, want 0", got)
	}

	retry := b.Mount(context.Background(), vdom.Title(vdom.Text("X")))
	if got := len(doc.Head().Children()); got != 1 {
		t.Errorf("head has %d children after uncontended mount, want 1", got)
	}
	retry.Unmount()
}

func TestTryLockSkippedUnmountRetries(t *testing.T) {
	b, doc := newTestBinder(WithTryLock())

	inst := b.Mount(context.Background(), vdom.Title(vdom.Text("X")))
	if got := len(doc.Head().Children()); got != 1 {
		t.Fatalf("head has %d children, want 1", got)
	}

	b.mu.Lock()
	inst.Unmount()
	b.mu.Unlock()

	// The skipped unmount must leave the node and stay retryable.
	if got := len(doc.Head().Children()); got != 1 {
		t.Fatalf("skipped unmount detached the node")
	}

	inst.Unmount()
	if got := len(doc.Head().Children()); got != 0 {
		t.Errorf("head has %d children after retried unmount, want 0", got)
	}
	if b.Registry().Len() != 0 {
		t.Errorf("registry holds %d entries, want 0", b.Registry().Len())
	}
}

type recordingObserver struct {
	inserted []uint64
	removed  []uint64
}

func (o *recordingObserver) HeadInserted(d Declaration, fingerprint uint64) {
	o.inserted = append(o.inserted, fingerprint)
}

func (o *recordingObserver) HeadRemoved(fingerprint uint64) {
	o.removed = append(o.removed, fingerprint)
}

func TestObserverSeesMutations(t *testing.T) {
	obs := &recordingObserver{}
	b, _ := newTestBinder(WithObserver(obs))
	decl := func() *vdom.VNode { return vdom.Meta(vdom.Name("a"), vdom.Content("1")) }

	first := b.Mount(context.Background(), decl())
	second := b.Mount(context.Background(), decl())
	if len(obs.inserted) != 1 {
		t.Fatalf("observer saw %d inserts, want 1", len(obs.inserted))
	}

	first.Unmount()
	if len(obs.removed) != 0 {
		t.Fatalf("observer saw a removal while the node was still held")
	}
	second.Unmount()
	if len(obs.removed) != 1 {
		t.Fatalf("observer saw %d removals, want 1", len(obs.removed))
	}
	if obs.removed[0] != obs.inserted[0] {
		t.Errorf("removed fingerprint %d, want %d", obs.removed[0], obs.inserted[0])
	}
}

func TestManifestRewritesAssetPaths(t *testing.T) {
	m := assets.NewManifest()
	m.Set("/app.css", "/app.3f9d1c.css")

	b, doc := newTestBinder(WithManifest(m))
	inst := b.Mount(context.Background(),
		vdom.Link(vdom.Rel("stylesheet"), vdom.Href("/app.css")),
		vdom.Meta(vdom.Name("description"), vdom.Content("hello")),
	)
	defer inst.Unmount()

	link := doc.Head().Children()[0]
	if got, _ := link.Attribute("href"); got != "/app.3f9d1c.css" {
		t.Errorf("href = %q, want the fingerprinted path", got)
	}

	// The fingerprint must cover the resolved value, not the source.
	want := Declaration{
		Tag:   "link",
		Attrs: map[string]string{"rel": "stylesheet", "href": "/app.3f9d1c.css"},
	}.Fingerprint()
	if inst.Fingerprints()[0] != want {
		t.Errorf("fingerprint = %d, want %d", inst.Fingerprints()[0], want)
	}

	// Values the manifest does not know pass through untouched.
	meta := doc.Head().Children()[1]
	if got, _ := meta.Attribute("content"); got != "hello" {
		t.Errorf("content = %q, want hello", got)
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	b, doc := newTestBinder()

	a := b.Mount(context.Background(), vdom.Title(vdom.Text("T")))
	mid := b.Mount(context.Background(), vdom.Meta(vdom.Charset("utf-8")))
	c := b.Mount(context.Background(), vdom.Link(vdom.Rel("icon"), vdom.Href("/f.ico")))

	tags := func() []string {
		var out []string
		for _, n := range doc.Head().Children() {
			out = append(out, n.TagName())
		}
		return out
	}

	got := tags()
	want := []string{"title", "meta", "link"}
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("head order = %v, want %v", got, want)
		}
	}

	mid.Unmount()
	got = tags()
	want = []string{"title", "link"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("head order after middle unmount = %v, want %v", got, want)
	}

	a.Unmount()
	c.Unmount()
}

func TestMountUnmountBalance(t *testing.T) {
	pool := []func() *vdom.VNode{
		func() *vdom.VNode { return vdom.Title(vdom.Text("Home")) },
		func() *vdom.VNode { return vdom.Meta(vdom.Charset("utf-8")) },
		func() *vdom.VNode { return vdom.Link(vdom.Rel("icon"), vdom.Href("/favicon.ico")) },
		func() *vdom.VNode { return vdom.CustomElement("style", vdom.Text("body{margin:0}")) },
	}

	rapid.Check(t, func(rt *rapid.T) {
		b, doc := newTestBinder()
		var live []*Instance

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "mount") || len(live) == 0 {
				count := rapid.IntRange(1, 3).Draw(rt, "count")
				children := make([]*vdom.VNode, count)
				for j := range children {
					children[j] = pool[rapid.IntRange(0, len(pool)-1).Draw(rt, "decl")]()
				}
				live = append(live, b.Mount(context.Background(), children...))
			} else {
				idx := rapid.IntRange(0, len(live)-1).Draw(rt, "victim")
				live[idx].Unmount()
				live = append(live[:idx], live[idx+1:]...)
			}

			children := doc.Head().Children()
			if len(children) != b.Registry().Len() {
				rt.Fatalf("head has %d children but registry holds %d entries",
					len(children), b.Registry().Len())
			}
			for _, child := range children {
				v, ok := child.Attribute(MarkerAttr)
				if !ok {
					rt.Fatalf("managed node %s lacks marker", child.TagName())
				}
				fp, err := ParseMarker(v)
				if err != nil {
					rt.Fatalf("marker %q does not parse: %v", v, err)
				}
				entry := b.Registry().Lookup(fp)
				if entry == nil || entry.Node != child {
					rt.Fatalf("marker %d does not map back to its node", fp)
				}
			}
		}

		for _, inst := range live {
			inst.Unmount()
		}
		if b.Registry().Len() != 0 || len(doc.Head().Children()) != 0 {
			rt.Errorf("residue after releasing all instances: %d entries, %d nodes",
				b.Registry().Len(), len(doc.Head().Children()))
		}
	})
}

func TestBinderRecordsMetrics(t *testing.T) {
	promReg := prometheus.NewRegistry()
	m := NewMetrics(MetricsConfig{Registerer: promReg})

	b, _ := newTestBinder(WithMetrics(m))
	inst := b.Mount(context.Background(), vdom.Title(vdom.Text("X")))
	inst.Unmount()

	families, err := promReg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"helmet_head_acquires_total",
		"helmet_head_releases_total",
		"helmet_head_live_declarations",
		"helmet_head_reconcile_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("metric %s not gathered", want)
		}
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordAcquire("title", true)
	m.RecordRelease("title", false)
	m.RecordSkip(skipRegistryBusy)
	m.RecordRejection(stageCreate)
	m.RecordReconcile("mount", time.Millisecond)
	m.SetLive(3)
}

func TestBinderWithTracingUsesNoopProvider(t *testing.T) {
	// Without a configured tracer provider the spans are no-ops, and the
	// reconcile pass must behave identically.
	b, doc := newTestBinder(WithTracing(""))

	inst := b.Mount(context.Background(), vdom.Title(vdom.Text("X")))
	if got := len(doc.Head().Children()); got != 1 {
		t.Fatalf("head has %d children, want 1", got)
	}
	inst.Unmount()
	if got := len(doc.Head().Children()); got != 0 {
		t.Errorf("head has %d children after unmount, want 0", got)
	}
}

func TestMountNilContext(t *testing.T) {
	b, doc := newTestBinder()
	inst := b.Mount(nil, vdom.Meta(vdom.Charset("utf-8")))
	if got := len(doc.Head().Children()); got != 1 {
		t.Errorf("head has %d children, want 1", got)
	}
	inst.Unmount()
}
