package policy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/winxky/cordova-plugman/pkg/manifest"
)

// ErrDenied is returned when a blocking policy violation stops an install.
var ErrDenied = errors.New("denied by policy")

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of this severity stop an install.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. The module must define a
	// "deny" set in its package.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// PluginID is the plugin that violated the policy.
	PluginID string `json:"plugin_id,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Remediation provides suggested fixes.
	Remediation string `json:"remediation,omitempty"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Policy, v.Message)
}

// Result represents the result of policy evaluation.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists the blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists violations that don't block operations.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	EvaluatedAt time.Time     `json:"evaluated_at"`
	Duration    time.Duration `json:"duration"`
}

// Err returns an error wrapping ErrDenied that lists the blocking
// violations, or nil when the operation is allowed.
func (r *Result) Err() error {
	if r == nil || r.Allowed {
		return nil
	}
	msgs := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		msgs = append(msgs, v.String())
	}
	return fmt.Errorf("%w: %s", ErrDenied, strings.Join(msgs, "; "))
}

// Input is the document policies are evaluated against, available to Rego
// as input.
type Input struct {
	// Action is "install" or "validate".
	Action string `json:"action"`

	Platform   string `json:"platform"`
	ProjectDir string `json:"project_dir,omitempty"`

	Plugin PluginInfo `json:"plugin"`

	// Spec holds the entries that will be applied, before variable
	// substitution.
	Spec *manifest.PlatformSpec `json:"spec"`

	Context *Context `json:"context"`
}

// PluginInfo identifies the plugin under evaluation.
type PluginInfo struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Context provides context information for policy evaluation.
type Context struct {
	// User is the actor performing the operation.
	User string `json:"user,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}

// NewInput builds the evaluation input for one platform of a manifest.
func NewInput(action string, m *manifest.Manifest, platform, projectDir, user string) *Input {
	return &Input{
		Action:     action,
		Platform:   platform,
		ProjectDir: projectDir,
		Plugin: PluginInfo{
			ID:      m.ID,
			Version: m.Version,
			Name:    m.Name,
		},
		Spec: m.ForPlatform(platform),
		Context: &Context{
			User:      user,
			Timestamp: time.Now(),
		},
	}
}
