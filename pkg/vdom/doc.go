// Package vdom provides the virtual node representation consumed by the
// head engine.
//
// VNode is the fundamental building block representing elements, text,
// fragments, components, and raw HTML. Props holds attributes and event
// handlers. Attr and EventHandler are used to build Props.
//
// # Element API
//
// Head elements are created using variadic factory functions:
//
//	Link(Rel("stylesheet"), Href("/app.css"))
//	Title("Dashboard")
//	Meta(Name("description"), Content("A dashboard"))
//
// Factory arguments may be Attr values, []Attr, child nodes, plain strings
// (shorthand for text children), or nil for conditional omission.
//
// Only the metadata tags that are legal inside a document head get factory
// functions here; CustomElement covers anything else.
package vdom
