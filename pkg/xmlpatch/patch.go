// Package xmlpatch grafts XML fragments into configuration documents and
// prunes them out again.
//
// Documents are held as etree trees so untouched nodes keep their original
// formatting. Grafting is idempotent: an element structurally equal to one
// already under the anchor is never inserted twice, and only the elements a
// graft actually inserted should be pruned again.
package xmlpatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/winxky/cordova-plugman/pkg/manifest"
)

// ErrAnchorNotFound is returned when a selector matches no element.
var ErrAnchorNotFound = errors.New("xml anchor not found")

// defaultIndent is used when an anchor has no children to copy indentation from.
const defaultIndent = "    "

// Placement controls where grafted elements are inserted under the anchor.
type Placement struct {
	Mode manifest.Mode

	// After lists sibling tags for manifest.ModeAfter, in priority order.
	After []string
}

// Graft inserts a copy of each fragment element under the element addressed
// by selector. Elements already present (structurally equal) are skipped.
// It returns the fragment elements that were inserted, in fragment order.
func Graft(doc *etree.Document, fragment []*etree.Element, selector string, place Placement) ([]*etree.Element, error) {
	anchor, err := resolve(doc, selector)
	if err != nil {
		return nil, err
	}

	var inserted []*etree.Element
	var last *etree.Element
	for _, el := range fragment {
		if findEqual(anchor, el) != nil {
			continue
		}

		node := el.Copy()
		switch place.Mode {
		case manifest.ModeAfter:
			ref := last
			if ref == nil {
				ref = lastSiblingOf(anchor, place.After)
			}
			if ref != nil {
				insertAfter(anchor, ref, node)
			} else {
				appendChild(anchor, node)
			}
		case manifest.ModeOverwrite:
			removeIdentical(anchor, node)
			appendChild(anchor, node)
		default:
			appendChild(anchor, node)
		}

		last = node
		inserted = append(inserted, el)
	}

	return inserted, nil
}

// Prune removes, for each fragment element, the first structurally equal
// child of the anchor. It reports whether anything was removed.
func Prune(doc *etree.Document, fragment []*etree.Element, selector string) (bool, error) {
	anchor, err := resolve(doc, selector)
	if err != nil {
		return false, err
	}

	changed := false
	for _, el := range fragment {
		match := findEqual(anchor, el)
		if match == nil {
			continue
		}
		removeWithIndent(anchor, match)
		changed = true
	}

	return changed, nil
}

// Contains reports whether every fragment element is present under the anchor.
func Contains(doc *etree.Document, fragment []*etree.Element, selector string) (bool, error) {
	anchor, err := resolve(doc, selector)
	if err != nil {
		return false, err
	}
	for _, el := range fragment {
		if findEqual(anchor, el) == nil {
			return false, nil
		}
	}
	return true, nil
}

func resolve(doc *etree.Document, selector string) (*etree.Element, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	anchor := sel.Find(doc)
	if anchor == nil {
		return nil, fmt.Errorf("%w: %s", ErrAnchorNotFound, selector)
	}
	return anchor, nil
}

// lastSiblingOf returns the last child whose tag equals the first tag in tags
// that has any match.
func lastSiblingOf(parent *etree.Element, tags []string) *etree.Element {
	children := parent.ChildElements()
	for _, tag := range tags {
		for i := len(children) - 1; i >= 0; i-- {
			if children[i].FullTag() == tag {
				return children[i]
			}
		}
	}
	return nil
}

// removeIdentical drops children sharing el's tag and identity attribute.
func removeIdentical(parent, el *etree.Element) {
	key, value, ok := identity(el)
	if !ok {
		return
	}
	for _, child := range parent.ChildElements() {
		if child.FullTag() != el.FullTag() {
			continue
		}
		if attr := findAttr(child, key); attr != nil && attr.Value == value {
			removeWithIndent(parent, child)
		}
	}
}

func identity(el *etree.Element) (key, value string, ok bool) {
	for _, k := range []string{"name", "id", "android:name"} {
		if attr := findAttr(el, k); attr != nil {
			return k, attr.Value, true
		}
	}
	return "", "", false
}

func appendChild(parent, el *etree.Element) {
	children := parent.ChildElements()
	if len(children) > 0 {
		insertAfter(parent, children[len(children)-1], el)
		return
	}

	outer := indentBefore(parent)
	inner := outer + defaultIndent
	if outer == "" {
		outer, inner = "\n", "\n"+defaultIndent
	}

	// Drop whitespace-only content so the closing tag lands on its own line.
	for i := len(parent.Child) - 1; i >= 0; i-- {
		if cd, ok := parent.Child[i].(*etree.CharData); ok && cd.IsWhitespace() {
			parent.RemoveChildAt(i)
		}
	}
	parent.AddChild(etree.NewText(inner))
	parent.AddChild(el)
	parent.AddChild(etree.NewText(outer))
}

func insertAfter(parent, ref, el *etree.Element) {
	indent := indentBefore(ref)
	at := ref.Index() + 1
	if indent != "" {
		parent.InsertChildAt(at, etree.NewText(indent))
		at++
	}
	parent.InsertChildAt(at, el)
}

// indentBefore returns the whitespace token immediately preceding el, starting
// at its last newline.
func indentBefore(el *etree.Element) string {
	parent := el.Parent()
	if parent == nil {
		return ""
	}
	i := el.Index()
	if i <= 0 {
		return ""
	}
	cd, ok := parent.Child[i-1].(*etree.CharData)
	if !ok || !cd.IsWhitespace() {
		return ""
	}
	if nl := strings.LastIndexByte(cd.Data, '\n'); nl >= 0 {
		return cd.Data[nl:]
	}
	return cd.Data
}

func removeWithIndent(parent, el *etree.Element) {
	i := el.Index()
	parent.RemoveChildAt(i)
	if i > 0 {
		if cd, ok := parent.Child[i-1].(*etree.CharData); ok && cd.IsWhitespace() {
			parent.RemoveChildAt(i - 1)
		}
	}
}
