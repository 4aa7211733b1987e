package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winxky/cordova-plugman/pkg/config"
	"github.com/winxky/cordova-plugman/pkg/manifest"
	"github.com/winxky/cordova-plugman/pkg/stores"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand("test", "abc", "today")

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"init", "install", "uninstall", "list", "verify", "www", "validate"} {
		assert.Contains(t, names, want)
	}

	install, _, err := root.Find([]string{"install"})
	require.NoError(t, err)
	for _, flag := range []string{"platform", "project", "plugin", "plugins-dir", "www", "variable"} {
		assert.NotNil(t, install.Flags().Lookup(flag), flag)
	}
}

func TestCheckManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plugin.xml", `<plugin id="org.acme.echo" version="1.0.0">
    <platform name="android">
        <source-file src="src/Echo.java" target-dir="src/org/acme"/>
        <source-file src="src/Missing.java" target-dir="src/org/acme"/>
        <config-file target="res/xml/config.xml" parent="/cordova/plugins[@bad">
            <plugin name="Echo"/>
        </config-file>
    </platform>
</plugin>`)
	writeFile(t, dir, "src/Echo.java", "class Echo {}")

	m, err := manifest.NewLoader().LoadFromDir(dir)
	require.NoError(t, err)

	problems := checkManifest(m)
	require.Len(t, problems, 2)
	assert.True(t, strings.Contains(problems[0], "Missing.java"))
	assert.True(t, strings.Contains(problems[1], "config-file"))
}

func TestInitInstallUninstall(t *testing.T) {
	work := t.TempDir()
	configPath = filepath.Join(work, "plugman.yaml")
	t.Cleanup(func() { configPath = "" })

	writeFile(t, work, "plugins/echo/plugin.xml", `<plugin id="org.acme.echo" version="1.0.0">
    <platform name="blackberry">
        <source-file src="client.js" target-dir="ext-qnx/org.acme.echo"/>
    </platform>
</plugin>`)
	writeFile(t, work, "plugins/echo/client.js", "client")
	project := filepath.Join(work, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(project, "ext-qnx"), 0o755))

	run := func(args ...string) error {
		root := newRootCommand("test", "abc", "today")
		root.SetArgs(args)
		return root.ExecuteContext(context.Background())
	}

	require.NoError(t, run("init", "--config", configPath))
	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.FileExists(t, cfg.LedgerPath())

	require.Error(t, run("init", "--config", configPath), "init refuses to overwrite")

	require.NoError(t, run("install", "--config", configPath, "--platform", "blackberry", "--project", project, "--plugin", "org.acme.echo"))
	assert.FileExists(t, filepath.Join(project, "ext-qnx", "org.acme.echo", "client.js"))

	require.NoError(t, run("verify", "--config", configPath, "--project", project))

	require.NoError(t, run("uninstall", "--config", configPath, "--platform", "blackberry", "--project", project, "--plugin", "org.acme.echo"))
	assert.NoDirExists(t, filepath.Join(project, "ext-qnx", "org.acme.echo"))

	err = run("uninstall", "--config", configPath, "--platform", "blackberry", "--project", project, "--plugin", "org.acme.echo")
	assert.ErrorContains(t, err, "not installed")

	require.NoError(t, run("list", "--config", configPath, "--audit"))
	require.NoError(t, run("list", "--config", configPath, "--audit", "--action", "uninstall", "--json"))
	assert.Error(t, run("list", "--config", configPath, "--audit", "--limit", "0"))

	ctx := context.Background()
	store, err := openLedger(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	installs, err := auditEntries(ctx, store, "install", "", 10)
	require.NoError(t, err)
	require.Len(t, installs, 1)
	assert.Equal(t, stores.OutcomeSuccess, installs[0].Outcome)

	uninstalls, err := auditEntries(ctx, store, "uninstall", "", 10)
	require.NoError(t, err)
	require.Len(t, uninstalls, 2)
	assert.Equal(t, stores.OutcomeFailure, uninstalls[0].Outcome, "newest first")
	assert.Equal(t, stores.OutcomeSuccess, uninstalls[1].Outcome)

	none, err := auditEntries(ctx, store, "", "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOpenLedgerInitFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blocker", "not a directory")

	cfg := config.Default()
	cfg.Ledger.Path = filepath.Join(dir, "blocker", "ledger.db")

	_, err := openLedger(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to initialize store")
}

func TestCheckPolicies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plugin.xml", `<plugin id="org.acme.camera" version="1.0.0">
    <platform name="android">
        <source-file src="src/Camera.java" target-dir="../../outside"/>
        <config-file target="AndroidManifest.xml" parent="/manifest">
            <uses-permission android:name="android.permission.CAMERA"/>
        </config-file>
    </platform>
</plugin>`)
	writeFile(t, dir, "src/Camera.java", "class Camera {}")

	m, err := manifest.NewLoader().LoadFromDir(dir)
	require.NoError(t, err)

	gate, err := newPolicyEngine(context.Background(), config.Default(), zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, gate)

	denied, warned, err := checkPolicies(context.Background(), gate, m)
	require.NoError(t, err)
	require.Len(t, denied, 1)
	assert.Contains(t, denied[0], "path-containment")
	require.Len(t, warned, 1)
	assert.Contains(t, warned[0], "android.permission.CAMERA")

	cfg := config.Default()
	cfg.Policy.Enabled = false
	gate, err = newPolicyEngine(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, gate)
}
