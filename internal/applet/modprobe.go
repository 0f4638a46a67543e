// SPDX-License-Identifier: MPL-2.0

package applet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/invowk/lmod/pkg/kmod"
)

type modprobeCommand struct {
	baseCommand
	m    *kmod.Modprober
	opts Options
}

func newModprobeCommand(m *kmod.Modprober, opts Options) *modprobeCommand {
	return &modprobeCommand{
		baseCommand: baseCommand{
			name: "modprobe",
			flags: []FlagInfo{
				{Name: "n", Description: "print the insmod/rmmod steps instead of running them"},
				{Name: "q", Description: "do not fail on unknown modules"},
				{Name: "r", Description: "remove the modules and their unused dependencies"},
				{Name: "S", Description: "resolve against another kernel release", TakesValue: true},
			},
		},
		m:    m,
		opts: opts,
	}
}

// Run loads (or with -r removes) a module by name or alias.
func (c *modprobeCommand) Run(ctx context.Context, args []string) error {
	hc := GetHandlerContext(ctx)

	fs := c.newFlagSet()
	dryRun := fs.Bool("n", false, "dry run")
	quiet := fs.Bool("q", false, "quiet")
	remove := fs.Bool("r", false, "remove")
	release := fs.String("S", "", "kernel release")
	if err := fs.Parse(args[1:]); err != nil {
		return wrapError(c.name, err)
	}
	if fs.NArg() == 0 {
		return wrapError(c.name, errors.New("missing module name"))
	}

	sel := kmod.CurrentKernel()
	if *release != "" {
		sel = kmod.OtherKernel(*release)
	}

	if *remove {
		var errs []error
		for _, name := range fs.Args() {
			err := c.remove(ctx, hc.Stdout, name, sel, *dryRun)
			if *quiet && errors.Is(err, kmod.ErrModuleNotFound) {
				continue
			}
			errs = append(errs, err)
		}
		return wrapError(c.name, errors.Join(errs...))
	}

	name := fs.Arg(0)
	params := kmod.ParseParams(fs.Args()[1:])

	var err error
	if *dryRun {
		err = c.show(ctx, hc.Stdout, name, params, sel)
	} else {
		err = c.m.Modprobe(ctx, name, params, sel)
	}
	switch {
	case err == nil:
		return nil
	case *quiet && errors.Is(err, kmod.ErrModuleNotFound):
		return nil
	case c.opts.IgnoreLoaded && kmod.IsAlreadyLoaded(err):
		slog.Debug("module already loaded", "module", name)
		return nil
	default:
		return wrapError(c.name, err)
	}
}

// show prints the insertions a load would perform.
func (c *modprobeCommand) show(ctx context.Context, w io.Writer, name string, params kmod.Params, sel kmod.Selection) error {
	plan, err := c.m.Resolve(ctx, name, sel)
	if err != nil {
		return err
	}
	if plan.Builtin {
		fmt.Fprintf(w, "builtin %s\n", plan.Target)
		return nil
	}
	for i, step := range plan.Steps {
		if i == len(plan.Steps)-1 && params != "" {
			fmt.Fprintf(w, "insmod %s %s\n", step.Path, params)
			continue
		}
		fmt.Fprintf(w, "insmod %s\n", step.Path)
	}
	return nil
}

func (c *modprobeCommand) remove(ctx context.Context, w io.Writer, name string, sel kmod.Selection, dryRun bool) error {
	if !dryRun {
		return c.m.Remove(ctx, name, sel)
	}
	plan, err := c.m.Resolve(ctx, name, sel)
	if err != nil {
		return err
	}
	if plan.Builtin {
		return fmt.Errorf("%s: %w", plan.Target, kmod.ErrBuiltinModule)
	}
	for i := len(plan.Steps) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "rmmod %s\n", plan.Steps[i].Name)
	}
	return nil
}
