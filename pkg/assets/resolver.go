package assets

// Resolver turns a source asset path into the URL a browser should fetch.
// Components use it when building head nodes so that authored paths stay
// stable across builds:
//
//	vdom.Link(vdom.Rel("stylesheet"), vdom.Href(resolver.Asset("app.css")))
type Resolver interface {
	// Asset resolves a source path to its served URL, applying any
	// configured prefix and fingerprinted filename.
	Asset(source string) string
}

// manifestResolver combines manifest lookup with a path prefix.
type manifestResolver struct {
	manifest *Manifest
	prefix   string
}

// NewResolver creates a Resolver backed by a manifest, with an optional
// prefix prepended to every resolved path.
//
//	manifest, _ := assets.Load("dist/manifest.json")
//	resolver := assets.NewResolver(manifest, "/static/")
//	resolver.Asset("app.css") // "/static/app.3f9d1c.css"
func NewResolver(m *Manifest, prefix string) Resolver {
	return &manifestResolver{
		manifest: m,
		prefix:   prefix,
	}
}

func (r *manifestResolver) Asset(source string) string {
	return r.prefix + r.manifest.Resolve(source)
}

// passthrough applies only the prefix, for development mode where no
// fingerprinting build has run.
type passthrough struct {
	prefix string
}

// NewPassthroughResolver creates a resolver that returns paths unchanged
// apart from the prefix, keeping development and production markup
// consistent:
//
//	// development
//	assets.NewPassthroughResolver("/static/").Asset("app.css") // "/static/app.css"
//	// production
//	assets.NewResolver(manifest, "/static/").Asset("app.css")  // "/static/app.3f9d1c.css"
func NewPassthroughResolver(prefix string) Resolver {
	return &passthrough{prefix: prefix}
}

func (p *passthrough) Asset(source string) string {
	return p.prefix + source
}
