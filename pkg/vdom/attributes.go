package vdom

import "strings"

// attr creates an Attr with the given key and value.
func attr(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Identity attributes

// ID sets the id attribute.
func ID(id string) Attr { return attr("id", id) }

// Class sets the class attribute, joining multiple classes with spaces.
func Class(classes ...string) Attr { return attr("class", strings.Join(classes, " ")) }

// Lang sets the lang attribute.
func Lang(lang string) Attr { return attr("lang", lang) }

// TitleAttr sets the title attribute (named to avoid conflict with Title element).
func TitleAttr(title string) Attr { return attr("title", title) }

// Link attributes

// Href sets the href attribute.
func Href(url string) Attr { return attr("href", url) }

// Rel sets the rel attribute.
func Rel(rel string) Attr { return attr("rel", rel) }

// Hreflang sets the hreflang attribute.
func Hreflang(lang string) Attr { return attr("hreflang", lang) }

// Target sets the target attribute (for base).
func Target(target string) Attr { return attr("target", target) }

// As sets the as attribute (for rel="preload" links).
func As(kind string) Attr { return attr("as", kind) }

// Media sets the media attribute.
func Media(query string) Attr { return attr("media", query) }

// Sizes sets the sizes attribute.
func Sizes(sizes string) Attr { return attr("sizes", sizes) }

// Meta attributes

// Name sets the name attribute.
func Name(name string) Attr { return attr("name", name) }

// Content sets the content attribute.
func Content(content string) Attr { return attr("content", content) }

// Charset sets the charset attribute.
func Charset(charset string) Attr { return attr("charset", charset) }

// HttpEquiv sets the http-equiv attribute.
func HttpEquiv(value string) Attr { return attr("http-equiv", value) }

// Property sets the property attribute (for Open Graph meta tags).
func Property(value string) Attr { return attr("property", value) }

// Script attributes

// Src sets the src attribute.
func Src(url string) Attr { return attr("src", url) }

// Type sets the type attribute.
func Type(t string) Attr { return attr("type", t) }

// Defer_ sets the defer attribute for script elements.
func Defer_() Attr { return attr("defer", true) }

// Async sets the async attribute for script elements.
func Async() Attr { return attr("async", true) }

// Nonce sets the nonce attribute.
func Nonce(value string) Attr { return attr("nonce", value) }

// Crossorigin sets the crossorigin attribute.
func Crossorigin(value string) Attr { return attr("crossorigin", value) }

// Integrity sets the integrity attribute for subresource integrity.
func Integrity(value string) Attr { return attr("integrity", value) }

// State attributes

// Disabled sets the disabled attribute (for alternate stylesheets).
func Disabled(disabled bool) Attr { return attr("disabled", disabled) }

// Data creates a data-* attribute.
// Example: Data("theme", "dark") → data-theme="dark"
func Data(key, value string) Attr { return attr("data-"+key, value) }

// Conditional attributes

// AttrIf adds any attribute conditionally.
func AttrIf(condition bool, a Attr) Attr {
	if condition {
		return a
	}
	return Attr{} // Empty attr, will be ignored
}
