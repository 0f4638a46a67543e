// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/lmod/internal/issue"
	"github.com/invowk/lmod/pkg/kmod"

	"github.com/spf13/cobra"
)

// newKernelsCommand creates the `lmod kernels` command.
func newKernelsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "kernels",
		Short: "List kernel releases with a module tree",
		Long: `List the kernel releases that have a module tree under the module
directory, newest first. The running kernel is marked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			releases, err := kmod.InstalledKernels(app.modprober.ModuleDir())
			if err != nil {
				return app.fail(cmd, err, issue.Classify)
			}

			running, _ := app.Kernel.Release()
			for _, rel := range releases {
				if rel.String() == running {
					fmt.Fprintf(app.stdout, "%s %s\n", rel, SuccessStyle.Render("(running)"))
					continue
				}
				fmt.Fprintln(app.stdout, rel)
			}
			return nil
		},
	}
}
