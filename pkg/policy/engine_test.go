package policy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/winxky/cordova-plugman/pkg/manifest"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func testInput(id string, spec *manifest.PlatformSpec) *Input {
	m := &manifest.Manifest{
		ID:        id,
		Version:   "1.0.0",
		Platforms: map[string]*manifest.PlatformSpec{"android": spec},
	}
	return NewInput("install", m, "android", "/work/app", "tester")
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("No built-in policies loaded")
	}

	expectedPolicies := []string{
		"android-permissions",
		"config-target",
		"path-containment",
		"plugin-id",
	}

	if len(policies) != len(expectedPolicies) {
		t.Fatalf("Expected %d policies, got %d", len(expectedPolicies), len(policies))
	}
	for i, expected := range expectedPolicies {
		if policies[i].Name != expected {
			t.Errorf("Policy %d: expected %s, got %s", i, expected, policies[i].Name)
		}
	}
}

func TestEvaluate_CleanPlugin(t *testing.T) {
	eng := newTestEngine(t)

	input := testInput("org.acme.echo", &manifest.PlatformSpec{
		SourceFiles: []manifest.SourceFile{
			{Src: "src/android/Echo.java", TargetDir: "src/org/acme"},
		},
		ConfigFiles: []manifest.ConfigFile{
			{Target: "res/xml/config.xml", Parent: "/cordova/plugins", Fragment: `<plugin name="Echo" value="org.acme.Echo"/>`},
		},
		Assets: []manifest.Asset{{Src: "www/echo.js", Target: "echo.js"}},
	})

	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if !result.Allowed {
		t.Errorf("Expected allowed, got violations: %v", result.Violations)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", result.Warnings)
	}
	if len(result.EvaluatedPolicies) != 4 {
		t.Errorf("Expected 4 evaluated policies, got %d", len(result.EvaluatedPolicies))
	}
	if err := result.Err(); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestEvaluate_PluginID(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name          string
		id            string
		expectAllowed bool
	}{
		{name: "reverse domain", id: "org.apache.cordova.device", expectAllowed: true},
		{name: "dashes and underscores", id: "my-plugin_2", expectAllowed: true},
		{name: "slash", id: "org/acme", expectAllowed: false},
		{name: "space", id: "org acme", expectAllowed: false},
		{name: "parent reference", id: "..", expectAllowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.Evaluate(context.Background(), testInput(tt.id, &manifest.PlatformSpec{}))
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}
			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v (violations: %v)", tt.expectAllowed, result.Allowed, result.Violations)
			}
			for _, v := range result.Violations {
				if v.Policy != "plugin-id" {
					t.Errorf("Unexpected violation from %s: %s", v.Policy, v.Message)
				}
			}
		})
	}
}

func TestEvaluate_PathContainment(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name          string
		spec          *manifest.PlatformSpec
		expectAllowed bool
	}{
		{
			name: "nested relative paths",
			spec: &manifest.PlatformSpec{
				SourceFiles: []manifest.SourceFile{{Src: "src/a/B.java", TargetDir: "src/org/acme"}},
			},
			expectAllowed: true,
		},
		{
			name: "target dir climbs out",
			spec: &manifest.PlatformSpec{
				SourceFiles: []manifest.SourceFile{{Src: "B.java", TargetDir: "src/../../etc"}},
			},
			expectAllowed: false,
		},
		{
			name: "absolute source",
			spec: &manifest.PlatformSpec{
				SourceFiles: []manifest.SourceFile{{Src: "/etc/passwd", TargetDir: "src"}},
			},
			expectAllowed: false,
		},
		{
			name: "windows drive in asset target",
			spec: &manifest.PlatformSpec{
				Assets: []manifest.Asset{{Src: "www/a.js", Target: `C:\a.js`}},
			},
			expectAllowed: false,
		},
		{
			name: "backslash parent in asset source",
			spec: &manifest.PlatformSpec{
				Assets: []manifest.Asset{{Src: `..\secret.js`, Target: "a.js"}},
			},
			expectAllowed: false,
		},
		{
			name: "dots inside a name",
			spec: &manifest.PlatformSpec{
				Assets: []manifest.Asset{{Src: "www/a..b.js", Target: "a..b.js"}},
			},
			expectAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.Evaluate(context.Background(), testInput("org.acme.paths", tt.spec))
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}
			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v (violations: %v)", tt.expectAllowed, result.Allowed, result.Violations)
			}
			if !tt.expectAllowed && result.Violations[0].Remediation == "" {
				t.Error("Expected a remediation hint")
			}
		})
	}
}

func TestEvaluate_ConfigTarget(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		target        string
		expectAllowed bool
	}{
		{target: "res/xml/config.xml", expectAllowed: true},
		{target: "*-Info.plist", expectAllowed: true},
		{target: "AndroidManifest.xml", expectAllowed: true},
		{target: "res/values/strings.txt", expectAllowed: false},
		{target: "../other/config.xml", expectAllowed: false},
		{target: "/etc/config.xml", expectAllowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			spec := &manifest.PlatformSpec{
				ConfigFiles: []manifest.ConfigFile{{Target: tt.target, Parent: "/*", Fragment: "<a/>"}},
			}
			result, err := eng.Evaluate(context.Background(), testInput("org.acme.cfg", spec))
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}
			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v (violations: %v)", tt.expectAllowed, result.Allowed, result.Violations)
			}
		})
	}
}

func TestEvaluate_AndroidPermissionsWarn(t *testing.T) {
	eng := newTestEngine(t)

	input := testInput("org.acme.camera", &manifest.PlatformSpec{
		ConfigFiles: []manifest.ConfigFile{{
			Target:   "AndroidManifest.xml",
			Parent:   "/manifest",
			Fragment: `<uses-permission android:name="android.permission.CAMERA"/><uses-feature android:name="android.hardware.camera"/>`,
		}},
	})

	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if !result.Allowed {
		t.Fatalf("Permissions must not block, got violations: %v", result.Violations)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d: %v", len(result.Warnings), result.Warnings)
	}
	w := result.Warnings[0]
	if w.Policy != "android-permissions" || w.Severity != SeverityWarning {
		t.Errorf("Unexpected warning: %+v", w)
	}
	if !strings.Contains(w.Message, "android.permission.CAMERA") {
		t.Errorf("Expected permission name in message, got %q", w.Message)
	}
	if w.PluginID != "org.acme.camera" {
		t.Errorf("Expected plugin id on warning, got %q", w.PluginID)
	}

	// Only android installs are reported.
	input.Platform = "ios"
	result, err = eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings for ios, got %v", result.Warnings)
	}
}

func TestResultErr(t *testing.T) {
	eng := newTestEngine(t)

	result, err := eng.Evaluate(context.Background(), testInput("bad/id", &manifest.PlatformSpec{}))
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	denied := result.Err()
	if !errors.Is(denied, ErrDenied) {
		t.Fatalf("Expected ErrDenied, got %v", denied)
	}
	if !strings.Contains(denied.Error(), "plugin-id:") {
		t.Errorf("Expected policy name in error, got %q", denied.Error())
	}

	var nilResult *Result
	if nilResult.Err() != nil {
		t.Error("Nil result should not deny")
	}
}

func TestAddPolicy(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.AddPolicy(context.Background(), Policy{
		Name:    "no-beta",
		Enabled: true,
		Rego: `package custom.beta

import rego.v1

deny contains msg if {
	endswith(input.plugin.version, "-beta")
	msg := sprintf("%s is a beta release", [input.plugin.id])
}`,
	})
	if err != nil {
		t.Fatalf("Failed to add policy: %v", err)
	}

	p, err := eng.GetPolicy("no-beta")
	if err != nil {
		t.Fatalf("Policy not registered: %v", err)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("Expected default severity warning, got %s", p.Severity)
	}

	input := testInput("org.acme.beta", &manifest.PlatformSpec{})
	input.Plugin.Version = "2.0.0-beta"

	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Warning severity must not block: %v", result.Violations)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Message != "org.acme.beta is a beta release" {
		t.Errorf("Unexpected warnings: %v", result.Warnings)
	}
}

func TestAddPolicy_InvalidRego(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.AddPolicy(context.Background(), Policy{
		Name: "broken",
		Rego: "package broken\n\ndeny contains if {",
	})
	if err == nil {
		t.Fatal("Expected compile error")
	}
	if _, err := eng.GetPolicy("broken"); err == nil {
		t.Error("Broken policy must not be registered")
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	input := testInput("bad id", &manifest.PlatformSpec{})

	if err := eng.DisablePolicy("plugin-id"); err != nil {
		t.Fatalf("Failed to disable: %v", err)
	}

	result, err := eng.Evaluate(ctx, input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Disabled policy still denied: %v", result.Violations)
	}
	for _, name := range result.EvaluatedPolicies {
		if name == "plugin-id" {
			t.Error("Disabled policy was evaluated")
		}
	}

	if err := eng.EnablePolicy("plugin-id"); err != nil {
		t.Fatalf("Failed to enable: %v", err)
	}
	result, err = eng.Evaluate(ctx, input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if result.Allowed {
		t.Error("Re-enabled policy did not deny")
	}

	if err := eng.DisablePolicy("missing"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}
