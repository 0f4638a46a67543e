// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/invowk/lmod/internal/issue"
	"github.com/invowk/lmod/pkg/kmod"

	"github.com/spf13/cobra"
)

type modprobeFlags struct {
	kernel string
	dryRun bool
	remove bool
}

// newModprobeCommand creates the `lmod modprobe` command.
func newModprobeCommand(app *App) *cobra.Command {
	var flags modprobeFlags

	cmd := &cobra.Command{
		Use:   "modprobe NAME [PARAM...]",
		Short: "Load a module and its dependencies",
		Long: `Load a module by name or alias together with everything it depends on.

Dependencies are taken from modules.dep and loaded deepest first. Parameters
(key=value) are passed to the requested module only. Dashes and underscores
in NAME are interchangeable.

` + SubtitleStyle.Render("Examples:") + `
  lmod modprobe kvm-intel nested=1
  lmod modprobe --dry-run fs-ext4
  lmod modprobe --remove kvm_intel`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModprobe(cmd, app, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.kernel, "kernel", "k", "", "resolve against another kernel release")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "print the steps instead of running them")
	cmd.Flags().BoolVarP(&flags.remove, "remove", "r", false, "remove the module and its dependencies")

	return cmd
}

func runModprobe(cmd *cobra.Command, app *App, flags modprobeFlags, args []string) error {
	ctx := cmd.Context()
	name := args[0]
	sel := app.selection(flags.kernel)

	if flags.remove {
		if len(args) > 1 {
			return fmt.Errorf("--remove takes no module parameters")
		}
		if flags.dryRun {
			plan, err := app.modprober.Resolve(ctx, name, sel)
			if err != nil {
				return app.fail(cmd, issue.ModuleError(issue.RemoveModule, name, err), issue.Classify)
			}
			writeRemovePlan(app.stdout, plan)
			return nil
		}
		if err := app.modprober.Remove(ctx, name, sel); err != nil {
			return app.fail(cmd, issue.ModuleError(issue.RemoveModule, name, err), issue.ClassifyRemove)
		}
		slog.Info("module removed", "module", name)
		return nil
	}

	params := kmod.ParseParams(args[1:])
	if flags.dryRun {
		plan, err := app.modprober.Resolve(ctx, name, sel)
		if err != nil {
			return app.fail(cmd, issue.ModuleError(issue.LoadModule, name, err), issue.Classify)
		}
		writeLoadPlan(app.stdout, plan, params)
		return nil
	}

	err := app.modprober.Modprobe(ctx, name, params, sel)
	switch {
	case err == nil:
		slog.Info("module loaded", "module", name)
		return nil
	case kmod.IsAlreadyLoaded(err) && app.cfg.Modprobe.IgnoreLoaded:
		fmt.Fprintf(app.stderr, "%s module %s is already loaded\n", WarningStyle.Render("Warning:"), CmdStyle.Render(name))
		return nil
	default:
		return app.fail(cmd, issue.ModuleError(issue.LoadModule, name, err), issue.Classify)
	}
}

// writeLoadPlan prints one insmod line per step, in load order.
func writeLoadPlan(w io.Writer, plan *kmod.Plan, params kmod.Params) {
	if plan.Builtin {
		fmt.Fprintf(w, "builtin %s\n", plan.Target)
		return
	}
	for i, step := range plan.Steps {
		if i == len(plan.Steps)-1 && params != "" {
			fmt.Fprintf(w, "insmod %s %s\n", step.Path, params)
			continue
		}
		fmt.Fprintf(w, "insmod %s\n", step.Path)
	}
}

// writeRemovePlan prints one rmmod line per step, in unload order.
func writeRemovePlan(w io.Writer, plan *kmod.Plan) {
	if plan.Builtin {
		fmt.Fprintf(w, "builtin %s\n", plan.Target)
		return
	}
	for i := len(plan.Steps) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "rmmod %s\n", plan.Steps[i].Name)
	}
}
