// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"log/slog"

	"github.com/invowk/lmod/internal/issue"
	"github.com/invowk/lmod/pkg/kmod"

	"github.com/spf13/cobra"
)

// newInsmodCommand creates the `lmod insmod` command.
func newInsmodCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "insmod PATH [PARAM...]",
		Short: "Load a single module file",
		Long: `Load a single module file without resolving dependencies.
Compressed modules (.ko.gz, .ko.xz, .ko.zst) are decompressed before loading.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := kmod.ParseParams(args[1:])
			if err := app.modprober.Insert(cmd.Context(), args[0], params); err != nil {
				return app.fail(cmd, issue.ModuleError(issue.InsertModule, args[0], err), issue.Classify)
			}
			slog.Info("module inserted", "path", args[0])
			return nil
		},
	}
}
