package dom

import "errors"

// Validation errors returned by Document and Node implementations.
var (
	// ErrBadTag is returned for element names a document would reject.
	ErrBadTag = errors.New("dom: invalid element name")

	// ErrBadAttribute is returned for attribute names a document would reject.
	ErrBadAttribute = errors.New("dom: invalid attribute name")

	// ErrNotChild is returned when removing a node that is not a child.
	ErrNotChild = errors.New("dom: node is not a child")

	// ErrForeignNode is returned when a node from another Document
	// implementation is handed to this one.
	ErrForeignNode = errors.New("dom: node from another implementation")
)

// Document is the engine's view of a host document.
type Document interface {
	// Head returns the document head node. It is never nil for a live
	// document.
	Head() Node

	// CreateElement creates a detached element with the given tag name.
	CreateElement(tag string) (Node, error)
}

// Node is the engine's view of a document element.
type Node interface {
	// TagName returns the element's tag name as created.
	TagName() string

	// SetAttribute sets or replaces an attribute.
	SetAttribute(name, value string) error

	// Attribute returns an attribute value and whether it is present.
	Attribute(name string) (string, bool)

	// SetInnerHTML replaces the element's body with raw HTML.
	// The value is not parsed or sanitised here; callers own that risk.
	SetInnerHTML(html string)

	// InnerHTML returns the element's raw HTML body.
	InnerHTML() string

	// AppendChild appends a child as the last child of this node.
	AppendChild(child Node) error

	// RemoveChild detaches a direct child of this node.
	RemoveChild(child Node) error

	// Children returns the current children in document order.
	// The returned slice is a snapshot; mutating it has no effect.
	Children() []Node
}
