package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/winxky/cordova-plugman/pkg/stores"
)

func newListCommand() *cobra.Command {
	var (
		project string
		all     bool
		audit   bool
		action  string
		actor   string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Long:  `List the plugins recorded in the ledger for a platform project.`,
		Example: `  # Plugins installed in the Android project
  plugman list --project ./platforms/android

  # Every project known to the ledger
  plugman list --all --json

  # The last 20 installs recorded in the audit trail
  plugman list --audit --action install --limit 20`,
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

			if audit {
				entries, err := auditEntries(cmd.Context(), a.store, action, actor, limit)
				if err != nil {
					return err
				}
				return printAudit(entries)
			}

			var installed []*stores.Installation
			if all {
				installed, err = a.store.ListInstallations(cmd.Context(), "")
			} else {
				installed, err = a.orch.Installed(cmd.Context(), project)
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(installed)
			}

			if len(installed) == 0 {
				fmt.Println("No plugins installed")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PLUGIN\tVERSION\tPLATFORM\tPROJECT\tINSTALLED")
			for _, inst := range installed {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					inst.PluginID, inst.Version, inst.Platform, inst.ProjectPath,
					inst.InstalledAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&project, "project", ".", "platform project directory")
	cmd.Flags().BoolVar(&all, "all", false, "list every project in the ledger")
	cmd.Flags().BoolVar(&audit, "audit", false, "list the audit trail instead of installed plugins")
	cmd.Flags().StringVar(&action, "action", "", "with --audit, only show this action (install or uninstall)")
	cmd.Flags().StringVar(&actor, "actor", "", "with --audit, only show entries by this actor")
	cmd.Flags().IntVar(&limit, "limit", 50, "with --audit, maximum number of entries")

	return cmd
}

// auditEntries reads the audit trail newest first; empty filters match everything.
func auditEntries(ctx context.Context, store stores.Store, action, actor string, limit int) ([]*stores.AuditEntry, error) {
	var actionFilter, actorFilter *string
	if action != "" {
		actionFilter = &action
	}
	if actor != "" {
		actorFilter = &actor
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return store.ListAuditEntries(ctx, actionFilter, actorFilter, limit, 0)
}

func printAudit(entries []*stores.AuditEntry) error {
	if jsonOutput {
		return printJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tACTOR\tTARGET\tOUTCOME")
	for _, e := range entries {
		target := "-"
		if e.TargetID != nil {
			target = *e.TargetID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Action, e.Actor, target, e.Outcome)
	}
	return w.Flush()
}
