// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invowk/lmod/internal/issue"
	"github.com/invowk/lmod/pkg/kmod"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "lmod"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. LMOD_MODULE_DIR.
	EnvPrefix = "LMOD"
)

//go:embed config_schema.cue
var configSchema string

// DefaultLoadDirs are the systemd modules-load.d directories, highest
// priority first.
var DefaultLoadDirs = []FilesystemPath{
	"/etc/modules-load.d",
	"/run/modules-load.d",
	"/usr/local/lib/modules-load.d",
	"/usr/lib/modules-load.d",
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		ModuleDir:     kmod.DefaultModuleDir,
		KernelRelease: "",
		ProcModules:   kmod.DefaultProcModules,
		LoadDirs:      append([]FilesystemPath(nil), DefaultLoadDirs...),
		Modprobe:      ModprobeConfig{IgnoreLoaded: true},
		Log:           LogConfig{Level: LogLevelInfo},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}

// ConfigDir returns the lmod configuration directory under
// $XDG_CONFIG_HOME, defaulting to ~/.config.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions reads defaults, the config file and environment overrides
// into a Config. The second return value is the file that was used, or ""
// when none was found.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	if err := opts.Validate(); err != nil {
		return nil, "", err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'lmod config init' to write a fresh default file").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check LMOD_* environment variables for blank values").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// resolveConfigFile picks the file to load: an explicit path must exist,
// otherwise the config directory is tried, then the working directory.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		path := string(opts.ConfigFilePath)
		if !fileExists(path) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'lmod config path' to see where lmod looks by default").
				Wrap(fmt.Errorf("config file not found: %s", path)).
				BuildError()
		}
		return path, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}

	fileName := ConfigFileName + "." + ConfigFileExt
	if cuePath := filepath.Join(cfgDir, fileName); fileExists(cuePath) {
		return cuePath, nil
	}
	if fileExists(fileName) {
		return fileName, nil
	}
	return "", nil
}

// DefaultConfigPath returns the path `config init` writes to.
func DefaultConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		return string(opts.ConfigFilePath), nil
	}
	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	loadDirs := make([]string, len(defaults.LoadDirs))
	for i, d := range defaults.LoadDirs {
		loadDirs[i] = string(d)
	}

	v.SetDefault("module_dir", string(defaults.ModuleDir))
	v.SetDefault("kernel_release", string(defaults.KernelRelease))
	v.SetDefault("proc_modules", string(defaults.ProcModules))
	v.SetDefault("load_dirs", loadDirs)
	v.SetDefault("modprobe.ignore_loaded", defaults.Modprobe.IgnoreLoaded)
	v.SetDefault("log.level", string(defaults.Log.Level))
	v.SetDefault("ui.color_scheme", string(defaults.UI.ColorScheme))
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath FilesystemPath) (string, error) {
	if configDirPath != "" {
		return string(configDirPath), nil
	}
	return ConfigDir()
}

// CreateDefaultConfig writes the default configuration to path unless a
// file already exists there.
func CreateDefaultConfig(path string) (created bool, err error) {
	if fileExists(path) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}

	return true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// lmod configuration file\n\n")

	fmt.Fprintf(&sb, "module_dir: %q\n", cfg.ModuleDir)
	if cfg.KernelRelease != "" {
		fmt.Fprintf(&sb, "kernel_release: %q\n", cfg.KernelRelease)
	}
	fmt.Fprintf(&sb, "proc_modules: %q\n", cfg.ProcModules)

	sb.WriteString("\nload_dirs: [\n")
	for _, dir := range cfg.LoadDirs {
		fmt.Fprintf(&sb, "\t%q,\n", dir)
	}
	sb.WriteString("]\n")

	sb.WriteString("\nmodprobe: {\n")
	fmt.Fprintf(&sb, "\tignore_loaded: %v\n", cfg.Modprobe.IgnoreLoaded)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
