package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/winxky/cordova-plugman/pkg/platforms"
)

func newWWWCommand() *cobra.Command {
	var (
		platform string
		project  string
	)

	cmd := &cobra.Command{
		Use:     "www",
		Short:   "Print a platform's web assets directory",
		Example: `  plugman www --platform blackberry --project ./platforms/blackberry`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			h, err := platforms.Default().Get(platform)
			if err != nil {
				return err
			}

			abs, err := filepath.Abs(project)
			if err != nil {
				return fmt.Errorf("failed to resolve project path: %w", err)
			}

			www := h.WWWDir(abs, platforms.Options{WWWDir: cfg.WWWDir(h.Name())})
			if jsonOutput {
				return printJSON(map[string]string{"platform": h.Name(), "www_dir": www})
			}
			fmt.Println(www)
			return nil
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "target platform (android, ios, blackberry)")
	cmd.Flags().StringVar(&project, "project", ".", "platform project directory")
	_ = cmd.MarkFlagRequired("platform")

	return cmd
}
