package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/go-playground/validator/v10"
)

// FileName is the manifest file expected at the root of every plugin directory.
const FileName = "plugin.xml"

// ErrPluginNotFound is returned when no plugin directory matches a requested id.
var ErrPluginNotFound = errors.New("plugin not found")

// Loader loads and validates plugin manifests.
type Loader struct {
	validate *validator.Validate
}

// NewLoader creates a new manifest loader.
func NewLoader() *Loader {
	return &Loader{
		validate: validator.New(),
	}
}

// LoadFromDir loads the plugin.xml found in dir.
func (l *Loader) LoadFromDir(dir string) (*Manifest, error) {
	return l.LoadFromFile(filepath.Join(dir, FileName))
}

// LoadFromFile loads a manifest from a plugin.xml file.
func (l *Loader) LoadFromFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	m, err := l.LoadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}
	m.Path = abs
	m.Dir = filepath.Dir(abs)

	return m, nil
}

// LoadFromBytes parses and validates raw plugin.xml content.
func (l *Loader) LoadFromBytes(data []byte) (*Manifest, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse manifest XML: %w", err)
	}

	m, err := parse(doc)
	if err != nil {
		return nil, err
	}

	if err := l.validate.Struct(m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	return m, nil
}

// Find locates the plugin identified by pluginID under pluginsDir. The
// directory <pluginsDir>/<pluginID> is tried first; otherwise every
// sub-directory is scanned for a manifest whose id equals pluginID.
func (l *Loader) Find(pluginsDir, pluginID string) (*Manifest, error) {
	direct := filepath.Join(pluginsDir, pluginID)
	if _, err := os.Stat(filepath.Join(direct, FileName)); err == nil {
		return l.LoadFromDir(direct)
	}

	entries, err := os.ReadDir(pluginsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugins directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(pluginsDir, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
			continue
		}
		m, err := l.LoadFromDir(dir)
		if err != nil {
			// A broken neighbour must not hide the plugin being looked for.
			continue
		}
		if m.ID == pluginID {
			return m, nil
		}
	}

	return nil, fmt.Errorf("%w: %s in %s", ErrPluginNotFound, pluginID, pluginsDir)
}

func parse(doc *etree.Document) (*Manifest, error) {
	root := doc.Root()
	if root == nil || root.Tag != "plugin" {
		return nil, fmt.Errorf("manifest root element must be <plugin>")
	}

	m := &Manifest{
		ID:        root.SelectAttrValue("id", ""),
		Version:   root.SelectAttrValue("version", ""),
		Platforms: make(map[string]*PlatformSpec),
	}
	if name := root.SelectElement("name"); name != nil {
		m.Name = strings.TrimSpace(name.Text())
	}

	for _, el := range root.SelectElements("asset") {
		m.Assets = append(m.Assets, parseAsset(el))
	}

	for _, platform := range root.SelectElements("platform") {
		name := strings.ToLower(platform.SelectAttrValue("name", ""))
		if name == "" {
			return nil, fmt.Errorf("<platform> element without a name attribute")
		}

		spec, ok := m.Platforms[name]
		if !ok {
			spec = &PlatformSpec{}
			m.Platforms[name] = spec
		}

		for _, el := range platform.ChildElements() {
			switch el.Tag {
			case "source-file":
				spec.SourceFiles = append(spec.SourceFiles, SourceFile{
					Src:       el.SelectAttrValue("src", ""),
					TargetDir: el.SelectAttrValue("target-dir", ""),
				})
			case "config-file":
				cf, err := parseConfigFile(el)
				if err != nil {
					return nil, fmt.Errorf("platform %s: %w", name, err)
				}
				spec.ConfigFiles = append(spec.ConfigFiles, cf)
			case "asset":
				spec.Assets = append(spec.Assets, parseAsset(el))
			}
		}
	}

	return m, nil
}

func parseAsset(el *etree.Element) Asset {
	return Asset{
		Src:    el.SelectAttrValue("src", ""),
		Target: el.SelectAttrValue("target", ""),
	}
}

func parseConfigFile(el *etree.Element) (ConfigFile, error) {
	cf := ConfigFile{
		Target: el.SelectAttrValue("target", ""),
		Parent: el.SelectAttrValue("parent", ""),
		Mode:   Mode(el.SelectAttrValue("mode", "")),
		After:  el.SelectAttrValue("after", ""),
	}
	if cf.Mode == "" {
		cf.Mode = ModeAppend
		if cf.After != "" {
			cf.Mode = ModeAfter
		}
	}

	var b strings.Builder
	for _, child := range el.ChildElements() {
		frag := etree.NewDocument()
		frag.SetRoot(child.Copy())
		s, err := frag.WriteToString()
		if err != nil {
			return ConfigFile{}, fmt.Errorf("failed to serialize config-file fragment: %w", err)
		}
		b.WriteString(s)
	}
	cf.Fragment = b.String()

	return cf, nil
}
