package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/winxky/cordova-plugman/pkg/fileops"
	"github.com/winxky/cordova-plugman/pkg/manifest"
	"github.com/winxky/cordova-plugman/pkg/policy"
	"github.com/winxky/cordova-plugman/pkg/xmlpatch"
)

func newValidateCommand() *cobra.Command {
	var pluginDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a plugin manifest",
		Long: `Validate a plugin directory without touching any project.

This command checks:
  - plugin.xml parses and declares the required attributes
  - every source-file and asset source exists in the plugin directory
  - every config-file parent is a valid selector and its fragment parses
  - every declared platform passes the install policies, when enabled`,
		Example: `  plugman validate --plugin-dir ./plugins/echo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().Str("plugin_dir", pluginDir).Msg("Validating plugin")

			m, err := manifest.NewLoader().LoadFromDir(pluginDir)
			if err != nil {
				return err
			}

			problems := checkManifest(m)

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			gate, err := newPolicyEngine(cmd.Context(), cfg, log.Logger)
			if err != nil {
				return err
			}
			var warnings []string
			if gate != nil {
				denied, warned, err := checkPolicies(cmd.Context(), gate, m)
				if err != nil {
					return err
				}
				problems = append(problems, denied...)
				warnings = warned
			}

			if jsonOutput {
				if err := printJSON(map[string]interface{}{
					"id":        m.ID,
					"version":   m.Version,
					"platforms": m.PlatformNames(),
					"problems":  problems,
					"warnings":  warnings,
				}); err != nil {
					return err
				}
			} else {
				fmt.Printf("%s %s\n", m.ID, m.Version)
				for _, name := range m.PlatformNames() {
					spec := m.ForPlatform(name)
					fmt.Printf("  %-10s %d source files, %d config files, %d assets\n",
						name, len(spec.SourceFiles), len(spec.ConfigFiles), len(spec.Assets))
				}
				for _, w := range warnings {
					fmt.Printf("! %s\n", w)
				}
				for _, p := range problems {
					fmt.Printf("✗ %s\n", p)
				}
			}

			if len(problems) > 0 {
				return fmt.Errorf("%d problems found in %s", len(problems), filepath.Join(m.Dir, manifest.FileName))
			}
			if !jsonOutput {
				fmt.Println("✓ Manifest is valid")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pluginDir, "plugin-dir", ".", "plugin directory holding plugin.xml")

	return cmd
}

// checkManifest reports the problems install would hit before touching a project.
func checkManifest(m *manifest.Manifest) []string {
	var problems []string
	missing := func(kind, platform, src string) {
		ok, err := fileops.Exists(m.Dir, src)
		switch {
		case err != nil:
			problems = append(problems, fmt.Sprintf("%s: %s %s: %v", platform, kind, src, err))
		case !ok:
			problems = append(problems, fmt.Sprintf("%s: %s %s does not exist", platform, kind, src))
		}
	}

	for _, name := range m.PlatformNames() {
		spec := m.ForPlatform(name)
		for _, sf := range spec.SourceFiles {
			missing("source-file", name, sf.Src)
		}
		for _, a := range spec.Assets {
			missing("asset", name, a.Src)
		}
		for _, cf := range spec.ConfigFiles {
			if _, err := xmlpatch.ParseSelector(cf.Parent); err != nil {
				problems = append(problems, fmt.Sprintf("%s: config-file %s: %v", name, cf.Target, err))
			}
			if _, err := xmlpatch.ParseFragment(cf.Fragment); err != nil {
				problems = append(problems, fmt.Sprintf("%s: config-file %s: %v", name, cf.Target, err))
			}
		}
	}
	return problems
}

// checkPolicies evaluates every declared platform of m against the install
// policies and returns the blocking violations and the warnings.
func checkPolicies(ctx context.Context, gate *policy.Engine, m *manifest.Manifest) (denied, warned []string, err error) {
	for _, name := range m.PlatformNames() {
		res, err := gate.Evaluate(ctx, policy.NewInput("validate", m, name, "", ""))
		if err != nil {
			return nil, nil, err
		}
		for _, v := range res.Violations {
			denied = append(denied, fmt.Sprintf("%s: %s", name, v))
		}
		for _, v := range res.Warnings {
			warned = append(warned, fmt.Sprintf("%s: %s", name, v))
		}
	}
	return denied, warned, nil
}
