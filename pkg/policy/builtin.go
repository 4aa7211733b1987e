package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		pluginIDPolicy(),
		pathContainmentPolicy(),
		configTargetPolicy(),
		androidPermissionsPolicy(),
	}
}

// pluginIDPolicy rejects ids that are unsafe as a path component; the id
// names the plugin's directory under www/plugins.
func pluginIDPolicy() Policy {
	return Policy{
		Name:        "plugin-id",
		Description: "Plugin ids must be a single path-safe name (letters, digits, dot, dash, underscore)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "safety"},
		Rego: `package plugman.policies.id

import rego.v1

deny contains violation if {
	id := input.plugin.id
	not regex.match("^[A-Za-z0-9._-]+$", id)
	violation := {
		"message": sprintf("plugin id '%s' may only contain letters, digits, '.', '-' and '_'", [id]),
		"severity": "error",
	}
}

deny contains violation if {
	id := input.plugin.id
	contains(id, "..")
	violation := {
		"message": sprintf("plugin id '%s' must not contain '..'", [id]),
		"severity": "error",
	}
}
`,
	}
}

// pathContainmentPolicy keeps every copy inside the plugin and project trees.
func pathContainmentPolicy() Policy {
	return Policy{
		Name:        "path-containment",
		Description: "Source and target paths must be relative and must not climb out of their root",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"paths", "safety"},
		Rego: `package plugman.policies.paths

import rego.v1

escapes(p) if startswith(p, "/")

escapes(p) if startswith(p, "\\")

escapes(p) if regex.match("^[A-Za-z]:", p)

escapes(p) if {
	some part in split(replace(p, "\\", "/"), "/")
	part == ".."
}

paths contains [kind, p] if {
	some sf in input.spec.source_files
	some p in [sf.src, object.get(sf, "target_dir", "")]
	kind := "source-file"
}

paths contains [kind, p] if {
	some a in input.spec.assets
	some p in [a.src, a.target]
	kind := "asset"
}

deny contains violation if {
	some entry in paths
	kind := entry[0]
	p := entry[1]
	escapes(p)
	violation := {
		"message": sprintf("%s path '%s' escapes its root directory", [kind, p]),
		"severity": "error",
		"remediation": "use a path relative to the plugin or project directory",
	}
}
`,
	}
}

// configTargetPolicy checks config-file targets the same way and requires
// them to name an XML document.
func configTargetPolicy() Policy {
	return Policy{
		Name:        "config-target",
		Description: "Config-file targets must be relative paths to .xml or .plist documents",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"paths", "xml"},
		Rego: `package plugman.policies.config

import rego.v1

xml_document(t) if endswith(lower(t), ".xml")

xml_document(t) if endswith(lower(t), ".plist")

deny contains violation if {
	some cf in input.spec.config_files
	not xml_document(cf.target)
	violation := {
		"message": sprintf("config-file target '%s' is not an XML document", [cf.target]),
		"severity": "error",
	}
}

deny contains violation if {
	some cf in input.spec.config_files
	some part in split(cf.target, "/")
	part == ".."
	violation := {
		"message": sprintf("config-file target '%s' escapes the project directory", [cf.target]),
		"severity": "error",
	}
}

deny contains violation if {
	some cf in input.spec.config_files
	startswith(cf.target, "/")
	violation := {
		"message": sprintf("config-file target '%s' must be relative", [cf.target]),
		"severity": "error",
	}
}
`,
	}
}

// androidPermissionsPolicy surfaces permission requests so they are reviewed.
func androidPermissionsPolicy() Policy {
	return Policy{
		Name:        "android-permissions",
		Description: "Reports Android permissions a plugin adds to AndroidManifest.xml",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"android", "review"},
		Rego: `package plugman.policies.android

import rego.v1

deny contains violation if {
	input.platform == "android"
	some cf in input.spec.config_files
	endswith(cf.target, "AndroidManifest.xml")
	some tag in regex.find_n("<uses-permission[^>]*>", cf.fragment, -1)
	some attr in regex.find_n("android:name=\"[^\"]+\"", tag, 1)
	name := trim_suffix(trim_prefix(attr, "android:name=\""), "\"")
	violation := {
		"message": sprintf("plugin requests %s", [name]),
		"severity": "warning",
	}
}
`,
	}
}
