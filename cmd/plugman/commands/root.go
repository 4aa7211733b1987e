package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/winxky/cordova-plugman/pkg/engine"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	version = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, ver, commit, buildDate string) error {
	version = ver
	rootCmd := newRootCommand(ver, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "plugman",
		Short: "plugman - Cordova plugin installer",
		Long: `plugman installs and uninstalls native plugins in Cordova platform projects.

A plugin is a directory holding a plugin.xml manifest. Installing it copies its
native sources and web assets into the project and grafts its XML fragments into
the project's configuration documents. Uninstalling reverses exactly what was
applied, using the record kept in the ledger.

Supported platforms: android, ios, blackberry`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ./plugman.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newPluginCommand(engine.ActionInstall))
	rootCmd.AddCommand(newPluginCommand(engine.ActionUninstall))
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newWWWCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}
