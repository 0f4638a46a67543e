// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/invowk/lmod/internal/issue"
	"github.com/invowk/lmod/pkg/kmod"

	"github.com/spf13/cobra"
)

// newDepsCommand creates the `lmod deps` command.
func newDepsCommand(app *App) *cobra.Command {
	var kernel, output string

	cmd := &cobra.Command{
		Use:   "deps NAME",
		Short: "Show the load plan of a module",
		Long: `Resolve NAME through the depmod manifests and print the modules that
would be loaded, in load order. Nothing is loaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output, outputText, outputJSON)
			if err != nil {
				return err
			}

			plan, err := app.modprober.Resolve(cmd.Context(), args[0], app.selection(kernel))
			if err != nil {
				return app.fail(cmd, err, issue.Classify)
			}

			if format == outputJSON {
				enc := json.NewEncoder(app.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			writePlan(app.stdout, plan)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kernel, "kernel", "k", "", "resolve against another kernel release")
	cmd.Flags().StringVarP(&output, "output", "o", string(outputText), "output format: text or json")

	return cmd
}

func writePlan(w io.Writer, plan *kmod.Plan) {
	header := TitleStyle.Render(plan.Target.String()) + " " + SubtitleStyle.Render("("+plan.Release.String()+")")
	if plan.Alias != "" {
		header += " " + SubtitleStyle.Render("alias "+plan.Alias)
	}
	fmt.Fprintln(w, header)

	if plan.Builtin {
		fmt.Fprintf(w, "  %s\n", SuccessStyle.Render("built into the kernel"))
		return
	}
	for i, step := range plan.Steps {
		kind := "target"
		if step.Dependency {
			kind = "dependency"
		}
		fmt.Fprintf(w, "  %d. %s %s %s\n", i+1, CmdStyle.Render(step.Name.String()), VerboseStyle.Render(step.Path), SubtitleStyle.Render("["+kind+"]"))
	}
}
