package head

import (
	"strconv"
	"strings"

	"github.com/vango-dev/helmet/pkg/vdom"
)

// Extract projects the children of a head component into declarations.
//
// Fragments at the root are flattened, so callers may pass either a flat
// list of elements or a single wrapping Fragment. Root nodes that are not
// elements (text, raw markup, unrendered components) carry no head
// semantics and are skipped. Element children deeper than the body rule
// described on innerText are ignored rather than serialised.
func Extract(children []*vdom.VNode) []Declaration {
	roots := flattenRoots(children, nil)
	decls := make([]Declaration, 0, len(roots))
	for _, n := range roots {
		if n.Kind != vdom.KindElement || n.Tag == "" {
			continue
		}
		decls = append(decls, project(n))
	}
	return decls
}

// flattenRoots expands fragment nodes in place of themselves, dropping
// nils, so that grouping helpers never change what gets declared.
func flattenRoots(nodes []*vdom.VNode, out []*vdom.VNode) []*vdom.VNode {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.Kind == vdom.KindFragment {
			out = flattenRoots(n.Children, out)
			continue
		}
		out = append(out, n)
	}
	return out
}

// project reduces one element node to a Declaration.
func project(el *vdom.VNode) Declaration {
	d := Declaration{
		Tag:   el.Tag,
		Attrs: make(map[string]string, len(el.Props)),
	}
	for name, value := range el.Props {
		if name == "" || name == "key" || strings.HasPrefix(name, "_") {
			continue
		}
		if vdom.IsEventHandler(name) {
			continue
		}
		if value == nil {
			continue
		}
		if s, ok := stringifyAttr(value); ok {
			d.Attrs[name] = s
		}
	}
	d.InnerHTML = innerText(el.Children)
	return d
}

// stringifyAttr renders a prop value as an attribute string. The second
// return is false for values with no attribute form, such as handlers and
// arbitrary objects; those props are dropped from the declaration.
func stringifyAttr(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// innerText returns the element body when the children reduce to a single
// text or raw node, either directly or through one fragment wrapper. Any
// other shape leaves the body absent: the engine declares elements, it
// does not serialise subtrees.
func innerText(children []*vdom.VNode) *string {
	if len(children) != 1 {
		return nil
	}
	c := children[0]
	if s, ok := textOf(c); ok {
		return &s
	}
	if c != nil && c.Kind == vdom.KindFragment && len(c.Children) == 1 {
		if s, ok := textOf(c.Children[0]); ok {
			return &s
		}
	}
	return nil
}

func textOf(n *vdom.VNode) (string, bool) {
	if n == nil {
		return "", false
	}
	if n.Kind == vdom.KindText || n.Kind == vdom.KindRaw {
		return n.Text, true
	}
	return "", false
}
