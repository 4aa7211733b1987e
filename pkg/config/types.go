package config

import (
	"path/filepath"
	"strings"

	"github.com/winxky/cordova-plugman/pkg/telemetry"
)

// FileName is the configuration file looked up when no path is given.
const FileName = "plugman.yaml"

// Config is the plugman configuration file.
type Config struct {
	// PluginsDir holds one sub-directory per plugin.
	PluginsDir string `yaml:"plugins_dir" validate:"required"`

	// Actor is recorded in audit entries. Defaults to $USER.
	Actor string `yaml:"actor,omitempty"`

	Ledger LedgerConfig `yaml:"ledger"`
	Policy PolicyConfig `yaml:"policy"`

	Logging telemetry.LoggingConfig `yaml:"logging"`
	Tracing telemetry.TracingConfig `yaml:"tracing"`
	Metrics telemetry.MetricsConfig `yaml:"metrics"`

	// Platforms holds per-platform overrides keyed by platform name.
	Platforms map[string]PlatformConfig `yaml:"platforms,omitempty" validate:"dive"`

	// Variables are substituted into config-file fragments on every platform.
	Variables map[string]string `yaml:"variables,omitempty" validate:"dive,keys,required,excludes=$,endkeys"`

	// Path is the file the configuration was loaded from, if any.
	Path string `yaml:"-"`
}

// LedgerConfig configures the installed-plugin ledger.
type LedgerConfig struct {
	// Path of the SQLite database. Defaults to <plugins_dir>/.plugman/ledger.db.
	Path string `yaml:"path,omitempty"`

	MaxOpenConns int `yaml:"max_open_conns,omitempty" validate:"gte=0"`
}

// PolicyConfig configures the install policy gate.
type PolicyConfig struct {
	Enabled bool `yaml:"enabled"`

	// Paths lists .rego or .json files, or directories of them, loaded in
	// addition to the built-in policies.
	Paths []string `yaml:"paths,omitempty"`

	// Disabled names policies, built-in or loaded, that are not evaluated.
	Disabled []string `yaml:"disabled,omitempty"`
}

// PlatformConfig overrides the defaults of one platform.
type PlatformConfig struct {
	// WWWDir replaces the platform's web-assets directory. Relative paths
	// are resolved against the project directory.
	WWWDir string `yaml:"www_dir,omitempty"`

	// Variables are merged over the global variables for this platform.
	Variables map[string]string `yaml:"variables,omitempty"`
}

// LedgerPath returns the ledger database path.
func (c *Config) LedgerPath() string {
	if c.Ledger.Path != "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.PluginsDir, ".plugman", "ledger.db")
}

// LockDir returns the directory holding per-project lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.PluginsDir, ".plugman", "locks")
}

// WWWDir returns the configured www directory for platform, or "".
func (c *Config) WWWDir(platform string) string {
	return c.platform(platform).WWWDir
}

// VariablesFor returns the global variables overlaid with platform's own.
func (c *Config) VariablesFor(platform string) map[string]string {
	vars := make(map[string]string, len(c.Variables))
	for k, v := range c.Variables {
		vars[k] = v
	}
	for k, v := range c.platform(platform).Variables {
		vars[k] = v
	}
	return vars
}

// Telemetry returns the telemetry configuration.
func (c *Config) Telemetry(version string) *telemetry.Config {
	return &telemetry.Config{
		ServiceName:    "plugman",
		ServiceVersion: version,
		Logging:        c.Logging,
		Tracing:        c.Tracing,
		Metrics:        c.Metrics,
	}
}

func (c *Config) platform(name string) PlatformConfig {
	if p, ok := c.Platforms[name]; ok {
		return p
	}
	return c.Platforms[strings.ToLower(name)]
}
