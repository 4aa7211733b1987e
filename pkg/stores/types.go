package stores

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Outcome values recorded in the audit trail.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeNoop    = "noop"
)

// InstallationKey identifies a plugin installed into one project for one platform.
type InstallationKey struct {
	PluginID    string `json:"plugin_id"`
	Platform    string `json:"platform"`
	ProjectPath string `json:"project_path"`
}

// Installation is a ledger entry for an installed plugin.
type Installation struct {
	ID          string    `json:"id"`
	PluginID    string    `json:"plugin_id"`
	Platform    string    `json:"platform"`
	ProjectPath string    `json:"project_path"` // absolute, cleaned
	PluginDir   string    `json:"plugin_dir"`
	Version     string    `json:"version,omitempty"`
	WWWDir      string    `json:"www_dir"`   // absolute web-assets root used at install time
	Spec        string    `json:"spec"`      // JSON of the applied platform spec
	Mutations   string    `json:"mutations"` // JSON of the applied mutations
	InstalledAt time.Time `json:"installed_at"`
}

// Key returns the installation's unique key.
func (i *Installation) Key() InstallationKey {
	return InstallationKey{PluginID: i.PluginID, Platform: i.Platform, ProjectPath: i.ProjectPath}
}

// AuditEntry represents an audit trail entry
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`              // "install" or "uninstall"
	Actor     string    `json:"actor"`               // user or system identifier
	TargetID  *string   `json:"target_id,omitempty"` // plugin@platform:project
	Details   *string   `json:"details,omitempty"`   // JSON blob
	Outcome   string    `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Installations
	GetInstallation(ctx context.Context, key InstallationKey) (*Installation, error)
	SaveInstallation(ctx context.Context, inst *Installation) error
	DeleteInstallation(ctx context.Context, key InstallationKey) error
	ListInstallations(ctx context.Context, projectPath string) ([]*Installation, error)

	// Audit
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error)
}
