// Package manifest models a parsed plugin descriptor (plugin.xml) and the
// per-platform entries an installation applies to a project.
package manifest

import (
	"sort"
	"strings"
)

// Mode controls where a config-file fragment is placed under its anchor.
type Mode string

const (
	// ModeAppend appends the fragment as the last children of the anchor.
	ModeAppend Mode = "append"

	// ModeAfter inserts the fragment after the last sibling whose tag is named in After.
	ModeAfter Mode = "after"

	// ModeOverwrite replaces children carrying the same tag and identity attribute.
	ModeOverwrite Mode = "overwrite"
)

// Manifest is the in-memory representation of a plugin.xml file.
// It is read-only once returned by a Loader.
type Manifest struct {
	// ID is the globally unique plugin identifier (e.g. "org.apache.cordova.echo").
	ID string `json:"id" validate:"required"`

	// Version is the declared plugin version.
	Version string `json:"version,omitempty"`

	// Name is the human-readable plugin name.
	Name string `json:"name,omitempty"`

	// Assets are web assets shared by every platform.
	Assets []Asset `json:"assets,omitempty" validate:"dive"`

	// Platforms maps a platform name to the entries declared for it.
	Platforms map[string]*PlatformSpec `json:"platforms,omitempty" validate:"dive"`

	// Dir is the plugin source directory the manifest was loaded from.
	Dir string `json:"-"`

	// Path is the manifest file path.
	Path string `json:"-"`
}

// PlatformSpec holds the ordered entries a plugin declares for one platform.
type PlatformSpec struct {
	SourceFiles []SourceFile `json:"source_files,omitempty" validate:"dive"`
	ConfigFiles []ConfigFile `json:"config_files,omitempty" validate:"dive"`
	Assets      []Asset      `json:"assets,omitempty" validate:"dive"`
}

// SourceFile is a native source file copied into the project tree.
type SourceFile struct {
	// Src is relative to the plugin directory.
	Src string `json:"src" validate:"required"`

	// TargetDir is relative to the project root; its meaning is platform-specific.
	TargetDir string `json:"target_dir" validate:"required"`
}

// ConfigFile is an XML patch applied to a project configuration document.
type ConfigFile struct {
	// Target is the document path, relative to the project root before platform mapping.
	Target string `json:"target" validate:"required"`

	// Parent is the selector addressing the anchor element.
	Parent string `json:"parent" validate:"required"`

	// Fragment is the raw XML of the elements grafted under the anchor.
	Fragment string `json:"fragment" validate:"required"`

	Mode Mode `json:"mode,omitempty" validate:"omitempty,oneof=append after overwrite"`

	// After lists sibling tags, semicolon separated, used by ModeAfter.
	After string `json:"after,omitempty"`
}

// Asset is a web resource copied into the platform's www directory.
type Asset struct {
	Src    string `json:"src" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// ForPlatform returns the entries that apply to the named platform: the
// platform's own entries followed by the manifest-wide assets. It returns nil
// when the plugin declares nothing for the platform.
func (m *Manifest) ForPlatform(name string) *PlatformSpec {
	p, ok := m.Platforms[name]
	if !ok {
		return nil
	}

	spec := p.Clone()
	spec.Assets = append(spec.Assets, m.Assets...)
	return spec
}

// PlatformNames returns the declared platform names in sorted order.
func (m *Manifest) PlatformNames() []string {
	names := make([]string, 0, len(m.Platforms))
	for name := range m.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether p declares no entries at all.
func (p *PlatformSpec) Empty() bool {
	return p == nil || (len(p.SourceFiles) == 0 && len(p.ConfigFiles) == 0 && len(p.Assets) == 0)
}

// Clone returns a deep copy of p.
func (p *PlatformSpec) Clone() *PlatformSpec {
	if p == nil {
		return &PlatformSpec{}
	}
	return &PlatformSpec{
		SourceFiles: append([]SourceFile(nil), p.SourceFiles...),
		ConfigFiles: append([]ConfigFile(nil), p.ConfigFiles...),
		Assets:      append([]Asset(nil), p.Assets...),
	}
}

// WithVariables returns a copy of p with every $NAME token in the
// config-file fragments replaced by vars[NAME]. Longer names are substituted
// first so $API_KEY is not clobbered by $API.
func (p *PlatformSpec) WithVariables(vars map[string]string) *PlatformSpec {
	spec := p.Clone()
	if len(vars) == 0 {
		return spec
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, "$"+name, vars[name])
	}
	replacer := strings.NewReplacer(pairs...)

	for i := range spec.ConfigFiles {
		spec.ConfigFiles[i].Fragment = replacer.Replace(spec.ConfigFiles[i].Fragment)
	}
	return spec
}

// AfterTags splits the After attribute into its sibling tag names.
func (c ConfigFile) AfterTags() []string {
	var tags []string
	for _, tag := range strings.Split(c.After, ";") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
