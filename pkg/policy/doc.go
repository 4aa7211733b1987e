// Package policy gates plugin installs with Open Policy Agent (OPA) Rego
// policies.
//
// Before a platform handler touches a project, the orchestrator builds an
// Input from the plugin manifest and evaluates every enabled policy against
// it. Each policy is a Rego module that defines a "deny" set in its package.
// Members of the set are either message strings or objects:
//
//	{"message": "...", "severity": "warning", "remediation": "..."}
//
// Violations with severity error or critical block the install; anything
// else is reported as a warning and the install proceeds.
//
// # Built-in Policies
//
//   - plugin-id: the id must be usable as a single path component
//   - path-containment: source-file and asset paths must stay inside the
//     plugin and project directories
//   - config-target: config-file targets must be relative XML or plist
//     documents
//   - android-permissions: reports <uses-permission> elements added to
//     AndroidManifest.xml (warning)
//
// # Input Document
//
// Policies see the Input type as JSON:
//
//	{
//	  "action": "install",
//	  "platform": "android",
//	  "project_dir": "/work/app/platforms/android",
//	  "plugin": {"id": "org.acme.echo", "version": "1.0.0"},
//	  "spec": {
//	    "source_files": [{"src": "src/Echo.java", "target_dir": "src/org/acme"}],
//	    "config_files": [{"target": "res/xml/config.xml", "parent": "/cordova/plugins", "fragment": "<plugin .../>"}],
//	    "assets": [{"src": "www/echo.js", "target": "echo.js"}]
//	  },
//	  "context": {"user": "ci", "timestamp": "..."}
//	}
//
// # Custom Policies
//
// Extra policies are loaded from .rego and .json files. A .rego file is
// named after its file and blocks by default; leading comments become its
// description. A .json file carries the Policy fields directly.
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//	result, err := eng.Evaluate(ctx, policy.NewInput("install", m, "android", projectDir, user))
//	if err != nil {
//	    return err
//	}
//	if err := result.Err(); err != nil {
//	    return err // wraps ErrDenied
//	}
package policy
