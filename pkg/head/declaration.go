package head

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// MarkerAttr is the attribute the engine writes on every head node it
// owns. Its value is the owning fingerprint in decimal, which lets tooling
// and tests trace a live node back to its declaration.
const MarkerAttr = "data-helmet-id"

// innerHTMLAbsent is hashed in place of a missing body so that an absent
// body and an empty string produce different fingerprints.
const innerHTMLAbsent = 0xFF

// Declaration is one element destined for the document head, reduced to
// plain values. Declarations are produced by Extract and treated as
// immutable once fingerprinted.
type Declaration struct {
	// Tag is the lowercase element name, never empty.
	Tag string

	// Attrs holds the element's attributes as final strings. A nil map is
	// equivalent to an empty one.
	Attrs map[string]string

	// InnerHTML is the element's raw body, or nil when the element has
	// none. The value is written to the node verbatim, so it must come
	// from trusted input.
	InnerHTML *string
}

// Fingerprint returns the declaration's 64-bit content hash.
//
// The hash covers the tag, the attributes sorted by name with each pair
// written as name\x00value\x00, and the body (or a sentinel byte when the
// body is absent). Attribute insertion order never affects the result, so
// two declarations with equal content always collide onto one entry.
func (d Declaration) Fingerprint() uint64 {
	h := xxhash.New()
	h.WriteString(d.Tag)
	for _, name := range sortedAttrNames(d.Attrs) {
		h.WriteString(name)
		h.Write(nulByte)
		h.WriteString(d.Attrs[name])
		h.Write(nulByte)
	}
	if d.InnerHTML != nil {
		h.WriteString(*d.InnerHTML)
	} else {
		h.Write(absentByte)
	}
	return h.Sum64()
}

var (
	nulByte    = []byte{0}
	absentByte = []byte{innerHTMLAbsent}
)

// sortedAttrNames returns the attribute names in lexicographic order. The
// same ordering is used for hashing and for applying attributes to nodes,
// which keeps serialised output stable.
func sortedAttrNames(attrs map[string]string) []string {
	if len(attrs) == 0 {
		return nil
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarkerValue renders a fingerprint as the decimal string stored under
// MarkerAttr.
func MarkerValue(fingerprint uint64) string {
	return strconv.FormatUint(fingerprint, 10)
}

// ParseMarker parses a MarkerAttr value back into a fingerprint.
func ParseMarker(value string) (uint64, error) {
	return strconv.ParseUint(value, 10, 64)
}
