// SPDX-License-Identifier: MPL-2.0

package applet

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/u-root/u-root/pkg/core"
)

// baseCommand holds the name and flag table shared by every applet.
type baseCommand struct {
	name  string
	flags []FlagInfo
}

// Name returns the command name.
func (c *baseCommand) Name() string {
	return c.name
}

// SupportedFlags returns the flags supported by this command.
func (c *baseCommand) SupportedFlags() []FlagInfo {
	return c.flags
}

// newFlagSet returns a flag set that reports parse errors instead of
// printing them.
func (c *baseCommand) newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// coreWrapper adapts a u-root pkg/core command.
type coreWrapper struct {
	baseCommand
}

// nativePreprocessor marks u-root wrappers, whose RunContext already runs
// unixflag.ArgsToGoArgs.
func (w *coreWrapper) nativePreprocessor() {}

// configureCommand wires a u-root core.Command to the handler context.
func configureCommand(ctx context.Context, cmd core.Command) {
	hc := GetHandlerContext(ctx)
	cmd.SetIO(hc.Stdin, hc.Stdout, hc.Stderr)
	cmd.SetWorkingDir(hc.Dir)
	cmd.SetLookupEnv(hc.LookupEnv)
}

// wrapError prefixes err with "[lmod] <cmdName>:". Returns nil if err is nil.
func wrapError(cmdName string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[lmod] %s: %w", cmdName, err)
}
