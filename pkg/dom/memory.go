package dom

import (
	"fmt"
	"strings"
	"sync"
)

// MemoryDocument is an in-memory Document.
//
// It is the backing store for tests and for the server-side mirror of a
// remote browser head. A single mutex owned by the document guards every
// node it created, so snapshot reads (HeadHTML) are safe while a session
// loop mutates the head.
type MemoryDocument struct {
	mu   sync.RWMutex
	head *MemoryNode
}

// NewMemoryDocument creates an empty document with a head node.
func NewMemoryDocument() *MemoryDocument {
	d := &MemoryDocument{}
	d.head = &MemoryNode{doc: d, tag: "head"}
	return d
}

// Head returns the document head.
func (d *MemoryDocument) Head() Node {
	return d.head
}

// CreateElement creates a detached element.
func (d *MemoryDocument) CreateElement(tag string) (Node, error) {
	if !validTagName(tag) {
		return nil, fmt.Errorf("%w: %q", ErrBadTag, tag)
	}
	return &MemoryNode{doc: d, tag: tag}, nil
}

// HeadHTML renders the current head children as HTML, one element per line.
// Intended for snapshots and debugging, not for serving to browsers as-is.
func (d *MemoryDocument) HeadHTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var b strings.Builder
	for i, child := range d.head.children {
		if i > 0 {
			b.WriteByte('\n')
		}
		child.writeOuterHTML(&b)
	}
	return b.String()
}

// MemoryNode is an element owned by a MemoryDocument.
type MemoryNode struct {
	doc       *MemoryDocument
	tag       string
	attrNames []string // insertion order, for deterministic rendering
	attrs     map[string]string
	innerHTML string
	children  []*MemoryNode
}

// TagName returns the tag the node was created with.
func (n *MemoryNode) TagName() string {
	return n.tag
}

// SetAttribute sets or replaces an attribute.
func (n *MemoryNode) SetAttribute(name, value string) error {
	if !validAttrName(name) {
		return fmt.Errorf("%w: %q", ErrBadAttribute, name)
	}

	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	if _, exists := n.attrs[name]; !exists {
		n.attrNames = append(n.attrNames, name)
	}
	n.attrs[name] = value
	return nil
}

// Attribute returns an attribute value and whether it is present.
func (n *MemoryNode) Attribute(name string) (string, bool) {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()

	v, ok := n.attrs[name]
	return v, ok
}

// SetInnerHTML replaces the node's body with raw HTML.
func (n *MemoryNode) SetInnerHTML(html string) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.innerHTML = html
}

// InnerHTML returns the node's raw HTML body.
func (n *MemoryNode) InnerHTML() string {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return n.innerHTML
}

// AppendChild appends child as the last child of n.
func (n *MemoryNode) AppendChild(child Node) error {
	mc, ok := child.(*MemoryNode)
	if !ok {
		return fmt.Errorf("%w: %T", ErrForeignNode, child)
	}

	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.children = append(n.children, mc)
	return nil
}

// RemoveChild detaches a direct child of n.
func (n *MemoryNode) RemoveChild(child Node) error {
	mc, ok := child.(*MemoryNode)
	if !ok {
		return fmt.Errorf("%w: %T", ErrForeignNode, child)
	}

	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()

	for i, c := range n.children {
		if c == mc {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return nil
		}
	}
	return ErrNotChild
}

// Children returns a snapshot of the current children in document order.
func (n *MemoryNode) Children() []Node {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()

	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// OuterHTML renders the node and its body as HTML.
func (n *MemoryNode) OuterHTML() string {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()

	var b strings.Builder
	n.writeOuterHTML(&b)
	return b.String()
}

// writeOuterHTML renders without locking; callers hold the document lock.
func (n *MemoryNode) writeOuterHTML(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(n.tag)
	for _, name := range n.attrNames {
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(n.attrs[name]))
		b.WriteByte('"')
	}
	b.WriteByte('>')

	if voidElements[n.tag] {
		return
	}

	// innerHTML is raw by contract; it is not escaped here.
	b.WriteString(n.innerHTML)
	for _, c := range n.children {
		c.writeOuterHTML(b)
	}

	b.WriteString("</")
	b.WriteString(n.tag)
	b.WriteByte('>')
}

// voidElements are elements that cannot have children and have no closing tag.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// validTagName accepts a lowercase letter, then lowercase letters, digits,
// or hyphens. Uppercase is rejected rather than folded so the mirror never
// holds a tag the head engine would not have declared.
func validTagName(tag string) bool {
	if tag == "" {
		return false
	}
	for i, r := range tag {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}

// validAttrName rejects the characters a browser's setAttribute rejects.
func validAttrName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r <= ' ':
			return false
		case r == '"' || r == '\'' || r == '>' || r == '/' || r == '=':
			return false
		}
	}
	return true
}
