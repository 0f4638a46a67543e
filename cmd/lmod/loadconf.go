// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/invowk/lmod/internal/issue"
	"github.com/invowk/lmod/internal/modload"
	"github.com/invowk/lmod/pkg/kmod"

	"github.com/spf13/cobra"
)

// pinnedLoader loads every entry for one kernel selection.
type pinnedLoader struct {
	loader modload.Loader
	sel    kmod.Selection
}

func (l pinnedLoader) Modprobe(ctx context.Context, name string, params kmod.Params, _ kmod.Selection) error {
	return l.loader.Modprobe(ctx, name, params, l.sel)
}

func (l pinnedLoader) DryRun() bool { return l.loader.DryRun() }

// newLoadConfCommand creates the `lmod load-conf` command.
func newLoadConfCommand(app *App) *cobra.Command {
	var (
		kernel string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "load-conf [DIR...]",
		Short: "Load the modules listed in modules-load.d",
		Long: `Load every module listed in the *.conf files of the given directories
(default: load_dirs from the configuration). A file masks files of the same
name in later directories. Failures are reported and loading continues.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := args
			if len(dirs) == 0 {
				for _, d := range app.cfg.LoadDirs {
					dirs = append(dirs, d.String())
				}
			}

			loader := pinnedLoader{
				loader: app.modprober.WithDryRun(dryRun),
				sel:    app.selection(kernel),
			}
			results, err := modload.Load(cmd.Context(), loader, dirs)
			for _, res := range results {
				writeLoadResult(app, res)
			}
			if err != nil {
				return app.fail(cmd, err, issue.Classify)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kernel, "kernel", "k", "", "resolve against another kernel release")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "resolve every entry without loading it")

	return cmd
}

func writeLoadResult(app *App, res modload.Result) {
	var mark string
	switch res.Status {
	case modload.StatusLoaded:
		mark = SuccessStyle.Render("✓")
	case modload.StatusAlreadyLoaded:
		mark = SubtitleStyle.Render("•")
	case modload.StatusWouldLoad:
		mark = SubtitleStyle.Render("○")
	default:
		mark = ErrorStyle.Render("✗")
	}
	fmt.Fprintf(app.stdout, "%s %s %s %s\n",
		mark,
		CmdStyle.Render(res.Module),
		res.Status,
		VerboseStyle.Render(fmt.Sprintf("(%s:%d)", res.File, res.Line)))
}
