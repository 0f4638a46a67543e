// SPDX-License-Identifier: MPL-2.0

// Package shell runs POSIX shell scripts in the embedded mvdan/sh
// interpreter, with lmod applets available as commands.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/invowk/lmod/internal/applet"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// Runner executes scripts. Commands registered in Applets are handled
	// in-process; everything else runs as a host binary.
	Runner struct {
		Applets *applet.Registry
	}

	// Options configures a single script run.
	Options struct {
		// Dir is the working directory. Defaults to the process directory.
		Dir string
		// Env is the environment in KEY=VALUE form. Defaults to os.Environ().
		Env []string
		// Args are the positional parameters ($1, $2, ...).
		Args   []string
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// ExitStatusError reports a script that exited with a non-zero status.
	ExitStatusError struct {
		Code int
	}
)

// NewRunner creates a runner dispatching to the given applets.
func NewRunner(applets *applet.Registry) *Runner {
	return &Runner{Applets: applets}
}

// Error implements the error interface.
func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Parse checks script for syntax errors without running it.
func Parse(script io.Reader, name string) (*syntax.File, error) {
	prog, err := syntax.NewParser().Parse(script, name)
	if err != nil {
		return nil, fmt.Errorf("script syntax error: %w", err)
	}
	return prog, nil
}

// Run parses and executes script. A non-zero exit is returned as
// *ExitStatusError; other errors mean the script could not run.
func (r *Runner) Run(ctx context.Context, script io.Reader, name string, opts Options) error {
	prog, err := Parse(script, name)
	if err != nil {
		return err
	}

	env := opts.Env
	if env == nil {
		env = os.Environ()
	}

	runnerOpts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(opts.Stdin, opts.Stdout, opts.Stderr),
		interp.ExecHandlers(r.execHandler),
	}
	if opts.Dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.Dir))
	}
	if len(opts.Args) > 0 {
		runnerOpts = append(runnerOpts, interp.Params(append([]string{"--"}, opts.Args...)...))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	err = runner.Run(ctx, prog)
	if err == nil {
		return nil
	}
	var exitStatus interp.ExitStatus
	if errors.As(err, &exitStatus) {
		return &ExitStatusError{Code: int(exitStatus)}
	}
	return fmt.Errorf("script execution failed: %w", err)
}

// execHandler dispatches registered applets before falling back to next.
// An applet failure is written to stderr and becomes exit status 1, so
// scripts can test it with || and if.
func (r *Runner) execHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if handled, err := r.tryApplet(ctx, args); handled {
			if err != nil {
				hc := interp.HandlerCtx(ctx)
				fmt.Fprintln(hc.Stderr, err)
				return interp.ExitStatus(1)
			}
			return nil
		}
		return next(ctx, args)
	}
}

// tryApplet reports whether args named a registered applet, and the
// applet's error if it ran.
func (r *Runner) tryApplet(ctx context.Context, args []string) (bool, error) {
	if r.Applets == nil || len(args) == 0 {
		return false, nil
	}
	if _, found := r.Applets.Lookup(args[0]); !found {
		return false, nil
	}
	return true, r.Applets.Run(ctx, args[0], args)
}
