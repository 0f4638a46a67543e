// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/invowk/lmod/internal/config"
	"github.com/invowk/lmod/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `lmod config` command tree. Its subcommands
// load the configuration themselves so a broken file can still be inspected
// and replaced.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage lmod configuration",
		Long: `Manage lmod configuration.

Configuration is read from $XDG_CONFIG_HOME/lmod/config.cue (default
~/.config/lmod/config.cue), then ./config.cue. Any key can be overridden
with an LMOD_ environment variable, e.g. LMOD_MODULE_DIR or LMOD_LOG_LEVEL.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath(app.loadOptions())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", filepath.Dir(path))
			fmt.Fprintf(app.stdout, "Config file: %s\n", path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.Config.Load(cmd.Context(), app.loadOptions())
			if err != nil {
				return app.fail(cmd, err, configIssue)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: config.FilesystemPath(a.flags.configPath)}
}

func configIssue(error) issue.Id { return issue.ConfigLoadFailedId }

func showConfig(cmd *cobra.Command, app *App) error {
	cfg, path, err := app.Config.Load(cmd.Context(), app.loadOptions())
	if err != nil {
		return app.fail(cmd, err, configIssue)
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	release := cfg.KernelRelease.String()
	if release == "" {
		release = SubtitleStyle.Render("(running kernel)")
	} else {
		release = valueStyle.Render(release)
	}
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("module_dir"), valueStyle.Render(cfg.ModuleDir.String()))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("kernel_release"), release)
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("proc_modules"), valueStyle.Render(cfg.ProcModules.String()))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("load_dirs"))
	if len(cfg.LoadDirs) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, dir := range cfg.LoadDirs {
		fmt.Fprintf(w, "  - %s\n", valueStyle.Render(dir.String()))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("modprobe"))
	fmt.Fprintf(w, "  ignore_loaded: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Modprobe.IgnoreLoaded)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("log"))
	fmt.Fprintf(w, "  level: %s\n", valueStyle.Render(cfg.Log.Level.String()))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  color_scheme: %s\n", valueStyle.Render(cfg.UI.ColorScheme.String()))
	fmt.Fprintf(w, "  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))

	return nil
}

func initConfig(cmd *cobra.Command, app *App) error {
	path, err := config.DefaultConfigPath(app.loadOptions())
	if err != nil {
		return err
	}

	created, err := config.CreateDefaultConfig(path)
	if err != nil {
		return app.fail(cmd, fmt.Errorf("failed to create config: %w", err), nil)
	}
	if !created {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("•"), path)
		return nil
	}

	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
