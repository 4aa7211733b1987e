package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const requireVersionRego = `# Plugins must declare a version.
# Unversioned plugins cannot be audited.
package custom.version

import rego.v1

deny contains msg if {
	input.plugin.version == ""
	msg := sprintf("%s has no version", [input.plugin.id])
}
`

func writePolicyFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func TestLoadFromFile_Rego(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	policyFile := writePolicyFile(t, t.TempDir(), "require-version.rego", requireVersionRego)

	policy, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "require-version" {
		t.Errorf("Expected name 'require-version', got '%s'", policy.Name)
	}
	if policy.Rego != requireVersionRego {
		t.Error("Rego content doesn't match")
	}
	if !policy.Enabled {
		t.Error("Policy should be enabled by default")
	}
	if policy.Severity != SeverityError {
		t.Errorf("Expected severity error, got %s", policy.Severity)
	}
	if policy.Source != policyFile {
		t.Errorf("Expected source %s, got %s", policyFile, policy.Source)
	}
	expected := "Plugins must declare a version. Unversioned plugins cannot be audited."
	if policy.Description != expected {
		t.Errorf("Expected description %q, got %q", expected, policy.Description)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	policyFile := writePolicyFile(t, t.TempDir(), "version.json", `{
  "name": "require-version",
  "description": "Plugins must declare a version",
  "severity": "warning",
  "enabled": true,
  "tags": ["release"],
  "rego": "package custom.version\n\nimport rego.v1\n\ndeny contains \"no version\" if input.plugin.version == \"\"\n"
}`)

	policy, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "require-version" {
		t.Errorf("Expected name 'require-version', got '%s'", policy.Name)
	}
	if policy.Severity != SeverityWarning {
		t.Errorf("Expected severity warning, got %s", policy.Severity)
	}
	if len(policy.Tags) != 1 || policy.Tags[0] != "release" {
		t.Errorf("Unexpected tags: %v", policy.Tags)
	}
	if policy.Source != policyFile {
		t.Errorf("Expected source %s, got %s", policyFile, policy.Source)
	}
}

func TestLoadFromFile_JSONWithoutName(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	policyFile := writePolicyFile(t, t.TempDir(), "anon.json", `{"rego": "package x"}`)

	if _, err := loader.loadFromFile(context.Background(), policyFile); err == nil {
		t.Fatal("Expected error for unnamed JSON policy")
	}
}

func TestLoadFromDirectory(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	dir := t.TempDir()
	writePolicyFile(t, dir, "a.rego", requireVersionRego)
	writePolicyFile(t, dir, "nested/b.rego", "package custom.b\n")
	writePolicyFile(t, dir, "README.md", "not a policy")
	writePolicyFile(t, dir, "broken.json", "{not json")

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}

	names := make(map[string]bool)
	for _, p := range policies {
		names[p.Name] = true
	}
	if len(policies) != 2 || !names["a"] || !names["b"] {
		t.Errorf("Expected policies a and b, got %v", names)
	}
}

func TestLoadFromPaths_Missing(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))

	_, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
}

func TestLoaderCache(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	policyFile := writePolicyFile(t, t.TempDir(), "cached.rego", requireVersionRego)
	ctx := context.Background()

	first, err := loader.loadFromFile(ctx, policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	writePolicyFile(t, filepath.Dir(policyFile), "cached.rego", "package changed\n")

	second, err := loader.loadFromFile(ctx, policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if second != first {
		t.Error("Expected cached policy")
	}

	loader.ClearCache()
	third, err := loader.loadFromFile(ctx, policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if third.Rego != "package changed\n" {
		t.Error("Expected reloaded policy after ClearCache")
	}
}

func TestEngineLoadPolicies(t *testing.T) {
	eng := newTestEngine(t)
	dir := t.TempDir()
	writePolicyFile(t, dir, "require-version.rego", requireVersionRego)

	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}

	input := testInput("org.acme.unversioned", nil)
	input.Plugin.Version = ""

	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("Expected file policy to deny")
	}
	if result.Violations[0].Policy != "require-version" {
		t.Errorf("Unexpected violation: %+v", result.Violations[0])
	}
}
