package xmlpatch

import (
	"strings"

	"github.com/beevik/etree"
)

// Equal reports whether two elements are structurally equal: same qualified
// tag, same attribute set regardless of order, same whitespace-normalized
// text, and pairwise equal child elements.
func Equal(a, b *etree.Element) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.FullTag() != b.FullTag() {
		return false
	}
	if !sameAttrs(a, b) {
		return false
	}
	if normalizedText(a) != normalizedText(b) {
		return false
	}

	ac, bc := a.ChildElements(), b.ChildElements()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !Equal(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

func sameAttrs(a, b *etree.Element) bool {
	if len(a.Attr) != len(b.Attr) {
		return false
	}
	values := make(map[string]string, len(a.Attr))
	for _, attr := range a.Attr {
		values[attr.FullKey()] = attr.Value
	}
	for _, attr := range b.Attr {
		v, ok := values[attr.FullKey()]
		if !ok || v != attr.Value {
			return false
		}
	}
	return true
}

func normalizedText(el *etree.Element) string {
	var parts []string
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			parts = append(parts, strings.Fields(cd.Data)...)
		}
	}
	return strings.Join(parts, " ")
}

// findEqual returns the first child element of parent equal to el.
func findEqual(parent, el *etree.Element) *etree.Element {
	for _, child := range parent.ChildElements() {
		if Equal(child, el) {
			return child
		}
	}
	return nil
}
