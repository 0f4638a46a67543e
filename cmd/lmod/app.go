// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/invowk/lmod/internal/applet"
	"github.com/invowk/lmod/internal/config"
	"github.com/invowk/lmod/internal/logging"
	"github.com/invowk/lmod/pkg/kmod"
)

type (
	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App reference; the runtime fields are filled in by
	// setup before any subcommand runs.
	App struct {
		Config config.Provider
		Kernel kmod.Kernel
		stdout io.Writer
		stderr io.Writer

		flags globalFlags

		cfg       *config.Config
		cfgPath   string
		verbose   bool
		logger    *slog.Logger
		modprober *kmod.Modprober
		applets   *applet.Registry
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Kernel kmod.Kernel
		Stdout io.Writer
		Stderr io.Writer
	}

	globalFlags struct {
		configPath string
		verbose    bool
		moduleDir  string
		logLevel   string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Kernel == nil {
		deps.Kernel = kmod.SystemKernel()
	}

	return &App{
		Config: deps.Config,
		Kernel: deps.Kernel,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// setup loads the configuration, applies flag overrides, installs the
// logger and builds the modprober and applet registry. A configuration that
// fails to load is reported as a warning and replaced by the defaults.
func (a *App) setup(ctx context.Context) error {
	opts := config.LoadOptions{ConfigFilePath: config.FilesystemPath(a.flags.configPath)}
	cfg, path, err := a.Config.Load(ctx, opts)
	if err != nil {
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, a.flags.verbose))
		cfg, path = config.DefaultConfig(), ""
	}

	if a.flags.moduleDir != "" {
		cfg.ModuleDir = config.FilesystemPath(a.flags.moduleDir)
	}
	if a.flags.logLevel != "" {
		level := config.LogLevel(a.flags.logLevel)
		if valid, errs := level.IsValid(); !valid {
			return errs[0]
		}
		cfg.Log.Level = level
	}
	if valid, errs := cfg.IsValid(); !valid {
		return errs[0]
	}

	a.cfg, a.cfgPath = cfg, path
	a.verbose = a.flags.verbose || cfg.UI.Verbose

	logger, err := logging.Setup(a.stderr, cfg.Log.Level.String(), a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger

	a.modprober = kmod.NewModprober(kmod.Options{
		Kernel:      a.Kernel,
		ModuleDir:   cfg.ModuleDir.String(),
		ProcModules: cfg.ProcModules.String(),
		Logger:      logger,
	})
	a.applets = applet.NewDefaultRegistry(a.modprober, applet.Options{
		IgnoreLoaded: cfg.Modprobe.IgnoreLoaded,
	})

	slog.Debug("configuration loaded",
		"file", path,
		"module_dir", cfg.ModuleDir,
		"proc_modules", cfg.ProcModules)
	return nil
}

// selection picks the kernel release for a command: the --kernel flag
// first, then kernel_release from the configuration, then the running kernel.
func (a *App) selection(release string) kmod.Selection {
	if release != "" {
		return kmod.OtherKernel(release)
	}
	if a.cfg != nil && a.cfg.KernelRelease != "" {
		return kmod.OtherKernel(a.cfg.KernelRelease.String())
	}
	return kmod.CurrentKernel()
}

// glamourStyle maps the configured color scheme to a glamour style name.
func (a *App) glamourStyle() string {
	if a.cfg == nil {
		return "auto"
	}
	switch a.cfg.UI.ColorScheme {
	case config.ColorSchemeDark:
		return "dark"
	case config.ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}
