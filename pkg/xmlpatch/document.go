package xmlpatch

import (
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"
)

// fragmentWrapper encloses raw fragments so multi-element snippets parse as
// a single document.
const fragmentWrapper = "fragment"

// ParseFragment parses raw XML holding one or more sibling elements.
func ParseFragment(raw string) ([]*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString("<" + fragmentWrapper + ">" + raw + "</" + fragmentWrapper + ">"); err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	elements := doc.Root().ChildElements()
	if len(elements) == 0 {
		return nil, fmt.Errorf("fragment contains no elements")
	}
	return elements, nil
}

// FragmentString serializes elements back to raw XML.
func FragmentString(elements []*etree.Element) (string, error) {
	var b strings.Builder
	for _, el := range elements {
		doc := etree.NewDocument()
		doc.SetRoot(el.Copy())
		s, err := doc.WriteToString()
		if err != nil {
			return "", fmt.Errorf("failed to serialize fragment: %w", err)
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// LoadDocument reads and parses the XML document at path.
func LoadDocument(path string) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("failed to load %s: no root element", path)
	}
	return doc, nil
}

// SaveDocument writes doc to path as UTF-8, keeping the file mode of an
// existing file.
func SaveDocument(doc *etree.Document, path string) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	data, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
