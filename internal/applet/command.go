// SPDX-License-Identifier: MPL-2.0

package applet

import "context"

type (
	// Command is a single applet.
	Command interface {
		// Name returns the applet name (e.g., "modprobe", "lsmod").
		Name() string

		// Run executes the applet. args[0] is the applet name, args[1:] are
		// the arguments. Errors are prefixed with "[lmod] <name>:".
		Run(ctx context.Context, args []string) error

		// SupportedFlags returns the flags this applet accepts. It is used for
		// documentation and introspection.
		SupportedFlags() []FlagInfo
	}

	// FlagInfo describes a supported flag of an applet.
	FlagInfo struct {
		// Name is the flag name without dashes (e.g., "r" for -r).
		Name string
		// Description explains what the flag does.
		Description string
		// TakesValue indicates if the flag requires a value (e.g., -S 6.8.0).
		TakesValue bool
	}

	// nativePreprocessor is implemented by commands that split POSIX flags
	// themselves.
	nativePreprocessor interface {
		nativePreprocessor()
	}
)
