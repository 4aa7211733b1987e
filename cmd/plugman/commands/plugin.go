package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/winxky/cordova-plugman/pkg/engine"
	"github.com/winxky/cordova-plugman/pkg/platforms"
)

// newPluginCommand builds the install and uninstall commands, which share
// their flags.
func newPluginCommand(action engine.Action) *cobra.Command {
	var (
		platform   string
		project    string
		pluginID   string
		pluginsDir string
		wwwDir     string
		variables  []string
	)

	verb := string(action)
	cmd := &cobra.Command{
		Use:   verb,
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a plugin in a platform project",
		Long: fmt.Sprintf(`%s a plugin in a platform project.

Install copies the plugin's source files and assets and grafts its config-file
fragments, then records what was applied in the ledger. Uninstall replays the
ledger record in reverse. A failure stops the operation where it happened;
changes made before it are kept.`, strings.ToUpper(verb[:1])+verb[1:]),
		Example: fmt.Sprintf(`  # %[1]s by plugin id
  plugman %[1]s --platform android --project ./platforms/android --plugin org.acme.echo

  # Use a different plugins directory and set a variable
  plugman %[1]s --platform ios --project ./platforms/ios --plugin echo \
    --plugins-dir ./vendor/plugins --variable API_KEY=secret`, verb),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if pluginsDir != "" {
				cfg.PluginsDir = pluginsDir
			}

			vars := cfg.VariablesFor(platform)
			for _, kv := range variables {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid --variable %q, expected NAME=VALUE", kv)
				}
				vars[k] = v
			}

			www := wwwDir
			if www == "" {
				www = cfg.WWWDir(platform)
			}

			log.Info().
				Str("action", verb).
				Str("platform", platform).
				Str("project", project).
				Str("plugin", pluginID).
				Msg("Handling plugin")

			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.orch.HandlePlugin(cmd.Context(), engine.Request{
				Action:     action,
				Platform:   platform,
				ProjectDir: project,
				PluginID:   pluginID,
				PluginsDir: cfg.PluginsDir,
				Options: platforms.Options{
					WWWDir:    www,
					Variables: vars,
				},
			})
			if jsonOutput {
				if printErr := printJSON(result); printErr != nil {
					return printErr
				}
			}
			if err != nil {
				return err
			}

			if !jsonOutput {
				printResult(result)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "target platform (android, ios, blackberry)")
	cmd.Flags().StringVar(&project, "project", ".", "platform project directory")
	cmd.Flags().StringVar(&pluginID, "plugin", "", "plugin id or directory name")
	cmd.Flags().StringVar(&pluginsDir, "plugins-dir", "", "directory holding plugins (overrides config)")
	cmd.Flags().StringVar(&wwwDir, "www", "", "web assets directory (overrides the platform default)")
	cmd.Flags().StringArrayVar(&variables, "variable", nil, "NAME=VALUE substituted into config fragments (repeatable)")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("plugin")

	return cmd
}

func printResult(r *engine.Result) {
	if r.Noop {
		fmt.Printf("%s declares nothing for %s, nothing to do\n", r.PluginID, r.Platform)
		return
	}

	version := ""
	if r.Version != "" {
		version = "@" + r.Version
	}
	fmt.Printf("✓ %s %s%s (%s) in %s\n", pastTense(r.Action), r.PluginID, version, r.Platform, r.ProjectDir)
	for _, w := range r.Warnings {
		fmt.Printf("! %s\n", w)
	}

	if m := r.Mutations; m != nil && verbose {
		for _, f := range m.Files {
			fmt.Printf("  file      %s\n", f)
		}
		for _, f := range m.Fragments {
			fmt.Printf("  fragment  %s %s\n", f.Target, f.Selector)
		}
		for _, a := range m.Assets {
			fmt.Printf("  asset     %s\n", a)
		}
	}
}

func pastTense(a engine.Action) string {
	if a == engine.ActionUninstall {
		return "Uninstalled"
	}
	return "Installed"
}
