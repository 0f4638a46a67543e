// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/invowk/lmod/internal/applet"

	"github.com/spf13/cobra"
)

// newAppletsCommand creates the `lmod applets` command.
func newAppletsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "applets",
		Short: "List the built-in applets",
		Long: `List the commands that 'lmod sh' runs in-process. modprobe, rmmod,
insmod and lsmod can also be run directly by linking the lmod binary
under their name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range app.applets.Names() {
				c, _ := app.applets.Lookup(name)
				flags := make([]string, 0, len(c.SupportedFlags()))
				for _, f := range c.SupportedFlags() {
					flag := "-" + f.Name
					if f.TakesValue {
						flag += " VALUE"
					}
					flags = append(flags, flag)
				}
				fmt.Fprintf(app.stdout, "%-10s %s\n", CmdStyle.Render(name), SubtitleStyle.Render(strings.Join(flags, " ")))
			}
			return nil
		},
	}
}

// personalities are the applets the binary impersonates when linked under
// their name. cat and ls are only available inside `lmod sh`.
var personalities = []string{"modprobe", "rmmod", "insmod", "lsmod"}

// IsApplet reports whether the binary invoked as name should behave as
// that applet instead of the lmod command tree.
func IsApplet(name string) bool {
	return slices.Contains(personalities, name)
}

// RunApplet runs a single applet with the process stdio, as if invoked as
// argv[0] == name. It returns the process exit code.
func RunApplet(name string, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := NewApp(Dependencies{})
	if err := app.setup(ctx); err != nil {
		fmt.Fprintln(app.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, app.verbose))
		return 1
	}

	if err := app.applets.Run(applet.WithProcessContext(ctx), name, args); err != nil {
		fmt.Fprintln(app.stderr, err)
		return 1
	}
	return 0
}
