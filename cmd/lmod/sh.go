// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/invowk/lmod/internal/issue"
	"github.com/invowk/lmod/internal/shell"

	"github.com/spf13/cobra"
)

// newShCommand creates the `lmod sh` command.
func newShCommand(app *App) *cobra.Command {
	var command string

	cmd := &cobra.Command{
		Use:   "sh [-c SCRIPT | FILE] [ARG...]",
		Short: "Run a shell script with the built-in applets",
		Long: `Run a POSIX shell script in the embedded interpreter. modprobe, rmmod,
insmod, lsmod, cat and ls run in-process; any other command runs on the host.
Without -c or FILE the script is read from standard input.

` + SubtitleStyle.Render("Examples:") + `
  lmod sh -c 'modprobe -n kvm_intel'
  lmod sh ./load-virt.sh kvm_intel`,
		RunE: func(cmd *cobra.Command, args []string) error {
			script, name, args, err := shellScript(cmd, command, args)
			if err != nil {
				return app.fail(cmd, err, nil)
			}
			defer script.Close()

			runErr := shell.NewRunner(app.applets).Run(cmd.Context(), script, name, shell.Options{
				Args:   args,
				Stdin:  cmd.InOrStdin(),
				Stdout: app.stdout,
				Stderr: app.stderr,
			})
			var exitStatus *shell.ExitStatusError
			if errors.As(runErr, &exitStatus) {
				cmd.SilenceErrors = true
				cmd.SilenceUsage = true
				return &ExitError{Code: exitStatus.Code}
			}
			if runErr != nil {
				return app.fail(cmd, runErr, func(error) issue.Id { return issue.ScriptExecutionFailedId })
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&command, "command", "c", "", "run SCRIPT instead of reading a file")
	// Everything after the script name belongs to the script.
	cmd.Flags().SetInterspersed(false)

	return cmd
}

// shellScript picks the script source: -c, a file named by the first
// argument, or standard input. It returns the positional parameters left.
func shellScript(cmd *cobra.Command, command string, args []string) (io.ReadCloser, string, []string, error) {
	if cmd.Flags().Changed("command") {
		return io.NopCloser(strings.NewReader(command)), "-c", args, nil
	}
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, "", nil, err
		}
		return f, args[0], args[1:], nil
	}
	return io.NopCloser(cmd.InOrStdin()), "stdin", nil, nil
}
