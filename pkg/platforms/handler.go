// Package platforms knows how a plugin's declared entries map onto the source
// tree of each supported mobile platform, and applies or reverts them.
package platforms

import (
	"context"

	"github.com/winxky/cordova-plugman/pkg/manifest"
)

// Handler installs and uninstalls a plugin's platform entries into one
// project tree.
type Handler interface {
	// Name returns the lowercase platform name.
	Name() string

	// WWWDir returns the absolute web-assets root for the project.
	WWWDir(projectDir string, opts Options) string

	// Install applies the platform entries to the project. The returned mutations cover
	// everything applied before a failure as well.
	Install(ctx context.Context, req InstallRequest) (*Mutations, error)

	// Uninstall reverts the platform entries. Missing files are tolerated; a missing XML
	// anchor is not.
	Uninstall(ctx context.Context, req UninstallRequest) error
}

// Options carries per-call overrides.
type Options struct {
	// WWWDir overrides the platform's web-assets root; absolute or relative
	// to the project directory.
	WWWDir string `json:"www_dir,omitempty"`

	// Variables substitute $NAME tokens in config-file fragments.
	Variables map[string]string `json:"variables,omitempty"`
}

// InstallRequest describes one install into a project.
type InstallRequest struct {
	Spec       *manifest.PlatformSpec
	PluginID   string
	PluginDir  string
	ProjectDir string
	Options    Options
}

// UninstallRequest describes one uninstall from a project.
type UninstallRequest struct {
	Spec       *manifest.PlatformSpec
	PluginID   string
	PluginDir  string
	ProjectDir string
	Options    Options
}

// Mutations lists what an install changed.
type Mutations struct {
	// Files are copied source files, relative to the project directory.
	Files []string `json:"files,omitempty"`

	// Fragments are the grafted config-file fragments.
	Fragments []GraftedFragment `json:"fragments,omitempty"`

	// Assets are absolute paths of copied web assets.
	Assets []string `json:"assets,omitempty"`

	// Spec holds the entries as applied, with variables substituted.
	Spec *manifest.PlatformSpec `json:"-"`
}

// GraftedFragment identifies one config-file fragment in a target document.
type GraftedFragment struct {
	Target   string `json:"target"`
	Selector string `json:"selector"`
	XML      string `json:"xml"`
}

// Count returns the number of copied paths and grafted fragments.
func (m *Mutations) Count() (files, fragments int) {
	if m == nil {
		return 0, 0
	}
	return len(m.Files) + len(m.Assets), len(m.Fragments)
}
