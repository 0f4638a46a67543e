// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"log/slog"

	"github.com/invowk/lmod/internal/issue"
	"github.com/invowk/lmod/pkg/kmod"

	"github.com/spf13/cobra"
)

// newRmmodCommand creates the `lmod rmmod` command.
func newRmmodCommand(app *App) *cobra.Command {
	var force, nonBlock bool

	cmd := &cobra.Command{
		Use:   "rmmod NAME...",
		Short: "Unload modules",
		Long: `Unload one or more modules. Dependencies are left loaded; use
'lmod modprobe --remove' to unload a module together with its unused
dependencies.

Without flags the kernel waits for the module to become unused.
--nonblock fails right away with "resource busy" instead, and --force
unloads the module even while it is in use.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := kmod.RemoveNone
			switch {
			case force:
				flags = kmod.RemoveForce
			case nonBlock:
				flags = kmod.RemoveNonBlock
			}

			var errs []error
			for _, name := range args {
				if err := app.modprober.Delete(cmd.Context(), name, flags); err != nil {
					errs = append(errs, issue.ModuleError(issue.RemoveModule, name, err))
					continue
				}
				slog.Info("module removed", "module", name, "flags", flags)
			}
			if err := errors.Join(errs...); err != nil {
				return app.fail(cmd, err, issue.ClassifyRemove)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "unload the module even if it is in use")
	cmd.Flags().BoolVar(&nonBlock, "nonblock", false, "fail instead of waiting while the module is in use")
	cmd.MarkFlagsMutuallyExclusive("force", "nonblock")

	return cmd
}
