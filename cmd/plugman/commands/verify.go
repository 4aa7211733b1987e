package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newVerifyCommand() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Detect drift between the ledger and a project",
		Long: `Check that every file, asset and XML fragment recorded for a project is
still present. Exits with an error when drift is found.`,
		Example: `  plugman verify --project ./platforms/android`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			drifts, err := a.orch.Verify(cmd.Context(), project)
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := printJSON(drifts); err != nil {
					return err
				}
			} else if len(drifts) == 0 {
				fmt.Println("✓ No drift detected")
			} else {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PLUGIN\tPLATFORM\tKIND\tPATH\tDETAIL")
				for _, d := range drifts {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.PluginID, d.Platform, d.Kind, d.Path, d.Detail)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			if len(drifts) > 0 {
				return fmt.Errorf("%d drift items found", len(drifts))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", ".", "platform project directory")

	return cmd
}
