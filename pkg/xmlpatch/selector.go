package xmlpatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ErrInvalidSelector is returned for selector expressions that cannot be parsed.
var ErrInvalidSelector = errors.New("invalid selector")

// Selector is a compiled path expression addressing a single element.
//
// Supported grammar:
//
//	/widget                      the root, which must be <widget>
//	/manifest/application        child of the root
//	plugins                      relative to the root element
//	/cordova/plugins/plugin[@name="Echo"]
//	/*  .  /                     the root itself
type Selector struct {
	expr     string
	absolute bool
	steps    []step
}

type step struct {
	tag        string
	predicates []predicate
}

type predicate struct {
	key   string
	value string
	// exists only checks for presence of the attribute.
	exists bool
}

// ParseSelector compiles expr.
func ParseSelector(expr string) (*Selector, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidSelector)
	}

	sel := &Selector{expr: expr}
	if s == "." || s == "/" || s == "/*" {
		return sel, nil
	}

	if strings.HasPrefix(s, "/") {
		sel.absolute = true
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "./")

	segments, err := splitSegments(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSelector, expr, err)
	}

	for _, seg := range segments {
		st, err := parseStep(seg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSelector, expr, err)
		}
		sel.steps = append(sel.steps, st)
	}

	return sel, nil
}

// String returns the original expression.
func (s *Selector) String() string {
	return s.expr
}

// Find returns the first element matching the selector in document order, or
// nil when nothing matches.
func (s *Selector) Find(doc *etree.Document) *etree.Element {
	root := doc.Root()
	if root == nil {
		return nil
	}
	if len(s.steps) == 0 {
		return root
	}

	if s.absolute {
		if !s.steps[0].matches(root) {
			return nil
		}
		if len(s.steps) == 1 {
			return root
		}
		return descend(root, s.steps[1:])
	}
	return descend(root, s.steps)
}

func descend(el *etree.Element, steps []step) *etree.Element {
	for _, child := range el.ChildElements() {
		if !steps[0].matches(child) {
			continue
		}
		if len(steps) == 1 {
			return child
		}
		if found := descend(child, steps[1:]); found != nil {
			return found
		}
	}
	return nil
}

func (st step) matches(el *etree.Element) bool {
	if st.tag != "*" && st.tag != el.FullTag() {
		return false
	}
	for _, p := range st.predicates {
		attr := findAttr(el, p.key)
		if attr == nil {
			return false
		}
		if !p.exists && attr.Value != p.value {
			return false
		}
	}
	return true
}

func findAttr(el *etree.Element, key string) *etree.Attr {
	for i := range el.Attr {
		if el.Attr[i].FullKey() == key {
			return &el.Attr[i]
		}
	}
	return nil
}

// splitSegments splits on '/' outside of predicate brackets and quotes.
func splitSegments(s string) ([]string, error) {
	var (
		segments []string
		depth    int
		quote    rune
		start    int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[':
			depth++
		case r == ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ']'")
			}
		case r == '/' && depth == 0:
			segments = append(segments, s[start:i])
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '['")
	}
	segments = append(segments, s[start:])

	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("empty path segment")
		}
	}
	return segments, nil
}

func parseStep(seg string) (step, error) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return step{tag: seg}, nil
	}

	st := step{tag: seg[:open]}
	if st.tag == "" {
		return step{}, fmt.Errorf("segment %q has no tag", seg)
	}

	rest := seg[open:]
	for rest != "" {
		if rest[0] != '[' {
			return step{}, fmt.Errorf("unexpected %q in segment %q", rest, seg)
		}
		end := closingBracket(rest)
		if end < 0 {
			return step{}, fmt.Errorf("unterminated predicate in %q", seg)
		}
		p, err := parsePredicate(rest[1:end])
		if err != nil {
			return step{}, err
		}
		st.predicates = append(st.predicates, p)
		rest = rest[end+1:]
	}

	return st, nil
}

func closingBracket(s string) int {
	var quote byte
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ']':
			return i
		}
	}
	return -1
}

func parsePredicate(body string) (predicate, error) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "@") {
		return predicate{}, fmt.Errorf("unsupported predicate [%s]", body)
	}
	body = body[1:]

	eq := strings.IndexByte(body, '=')
	if eq < 0 {
		if body == "" {
			return predicate{}, fmt.Errorf("empty attribute predicate")
		}
		return predicate{key: body, exists: true}, nil
	}

	key := strings.TrimSpace(body[:eq])
	raw := strings.TrimSpace(body[eq+1:])
	if key == "" || len(raw) < 2 {
		return predicate{}, fmt.Errorf("malformed predicate [@%s]", body)
	}
	q := raw[0]
	if (q != '"' && q != '\'') || raw[len(raw)-1] != q {
		return predicate{}, fmt.Errorf("predicate value must be quoted: [@%s]", body)
	}

	return predicate{key: key, value: raw[1 : len(raw)-1]}, nil
}
