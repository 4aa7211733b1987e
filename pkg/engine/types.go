package engine

import (
	"context"
	"time"

	"github.com/winxky/cordova-plugman/pkg/manifest"
	"github.com/winxky/cordova-plugman/pkg/platforms"
	"github.com/winxky/cordova-plugman/pkg/policy"
	"github.com/winxky/cordova-plugman/pkg/stores"
)

// Action is the operation requested of the orchestrator.
type Action string

const (
	ActionInstall   Action = "install"
	ActionUninstall Action = "uninstall"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionInstall || a == ActionUninstall
}

// Request describes one install or uninstall.
type Request struct {
	Action   Action
	Platform string

	// ProjectDir is the platform project root; it is made absolute.
	ProjectDir string

	// PluginID is the plugin id or the name of its directory under PluginsDir.
	PluginID string

	// PluginsDir holds one sub-directory per plugin. Required for install;
	// uninstall uses it only to resolve a directory name to a plugin id.
	PluginsDir string

	Options platforms.Options

	// OnComplete, if set, is called exactly once with the call's outcome.
	OnComplete func(*Result, error)
}

// Result describes a finished call.
type Result struct {
	Action     Action `json:"action"`
	Platform   string `json:"platform"`
	PluginID   string `json:"plugin_id"`
	Version    string `json:"version,omitempty"`
	ProjectDir string `json:"project_dir"`

	// Noop is set when the plugin declares nothing for the platform.
	Noop bool `json:"noop,omitempty"`

	// Warnings holds non-blocking policy findings.
	Warnings []string `json:"warnings,omitempty"`

	Mutations *platforms.Mutations `json:"mutations,omitempty"`
	Duration  time.Duration        `json:"duration"`
}

// Drift is a recorded mutation no longer present in a project.
type Drift struct {
	PluginID string `json:"plugin_id"`
	Platform string `json:"platform"`

	// Kind is "file", "asset" or "fragment".
	Kind string `json:"kind"`

	Path   string `json:"path"`
	Detail string `json:"detail,omitempty"`
}

// Ledger records installed plugins and the audit trail.
type Ledger interface {
	GetInstallation(ctx context.Context, key stores.InstallationKey) (*stores.Installation, error)
	SaveInstallation(ctx context.Context, inst *stores.Installation) error
	DeleteInstallation(ctx context.Context, key stores.InstallationKey) error
	ListInstallations(ctx context.Context, projectPath string) ([]*stores.Installation, error)
	CreateAuditEntry(ctx context.Context, entry *stores.AuditEntry) error
}

// ManifestSource locates plugin manifests.
type ManifestSource interface {
	Find(pluginsDir, pluginID string) (*manifest.Manifest, error)
}

// PolicyEvaluator checks a plugin before any of it is applied.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, input *policy.Input) (*policy.Result, error)
}
