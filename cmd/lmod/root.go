// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for lmod.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/invowk/lmod/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the lmod command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lmod",
		Short: "Load and unload Linux kernel modules",
		Long: TitleStyle.Render("lmod") + SubtitleStyle.Render(" - Load and unload Linux kernel modules") + `

lmod resolves modules through the depmod manifests under /lib/modules,
loads their dependencies first and talks to the kernel directly through
finit_module, init_module and delete_module.

` + SubtitleStyle.Render("Examples:") + `
  lmod modprobe kvm-intel nested=1   Load a module and its dependencies
  lmod modprobe --dry-run kvm_intel  Show what would be loaded
  lmod rmmod kvm_intel               Unload a module
  lmod lsmod --output json           List loaded modules as JSON
  lmod deps ext4 --kernel 6.8.0      Show the load plan for another kernel
  lmod sh -c 'modprobe -n ext4'      Run a script with the built-in applets`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd.Context())
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/lmod/config.cue)")
	pf.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&app.flags.moduleDir, "module-dir", "", "root of the per-release module trees (default /lib/modules)")
	pf.StringVar(&app.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newModprobeCommand(app),
		newRmmodCommand(app),
		newInsmodCommand(app),
		newLsmodCommand(app),
		newDepsCommand(app),
		newKernelsCommand(app),
		newLoadConfCommand(app),
		newShCommand(app),
		newAppletsCommand(app),
		newConfigCommand(app),
		newCompletionCommand(),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the lmod command tree. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	// fang overrides rootCmd.Version, so the version is passed through fang.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain. Joined errors are formatted
// one per line.
func formatErrorForDisplay(err error, verboseMode bool) string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		lines := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			lines = append(lines, formatErrorForDisplay(e, verboseMode))
		}
		return strings.Join(lines, "\n")
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
