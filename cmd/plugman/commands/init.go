package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/winxky/cordova-plugman/pkg/config"
)

func newInitCommand() *cobra.Command {
	var (
		pluginsDir string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a plugman workspace",
		Long: `Initialize a plugman workspace: write a configuration file, create the
plugins directory and create the ledger database.`,
		Example: `  # Initialize in the current directory
  plugman init

  # Initialize with a custom config path and plugins directory
  plugman init --config ./build/plugman.yaml --plugins-dir ./vendor/plugins`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.FileName
			}

			log.Info().
				Str("config", path).
				Str("plugins_dir", pluginsDir).
				Msg("Initializing workspace")

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.Default()
			cfg.PluginsDir = pluginsDir
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Printf("✓ Created config file: %s\n", path)

			// Reload so relative paths resolve against the file's directory.
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.PluginsDir, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", cfg.PluginsDir, err)
			}
			fmt.Printf("✓ Created directory: %s\n", cfg.PluginsDir)

			store, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				return err
			}
			fmt.Printf("✓ Initialized ledger: %s\n", cfg.LedgerPath())

			fmt.Printf("\n✅ Workspace initialized successfully!\n\n")
			fmt.Printf("Next steps:\n")
			fmt.Printf("  1. Put plugins under %s\n\n", filepath.Clean(cfg.PluginsDir))
			fmt.Printf("  2. Install one:\n")
			fmt.Printf("     plugman install --platform android --project <dir> --plugin <id>\n\n")

			return nil
		},
	}

	cmd.Flags().StringVar(&pluginsDir, "plugins-dir", "plugins", "plugins directory, relative to the config file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}
