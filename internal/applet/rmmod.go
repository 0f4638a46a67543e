// SPDX-License-Identifier: MPL-2.0

package applet

import (
	"context"
	"errors"
	"fmt"

	"github.com/invowk/lmod/pkg/kmod"
)

type rmmodCommand struct {
	baseCommand
	m *kmod.Modprober
}

func newRmmodCommand(m *kmod.Modprober) *rmmodCommand {
	return &rmmodCommand{
		baseCommand: baseCommand{
			name: "rmmod",
			flags: []FlagInfo{
				{Name: "f", Description: "force removal of modules in use (dangerous)"},
				{Name: "w", Description: "wait until the module is unused instead of failing"},
			},
		},
		m: m,
	}
}

// Run removes each named module. A failure does not stop the remaining
// removals.
func (c *rmmodCommand) Run(ctx context.Context, args []string) error {
	fs := c.newFlagSet()
	force := fs.Bool("f", false, "force")
	wait := fs.Bool("w", false, "wait")
	if err := fs.Parse(args[1:]); err != nil {
		return wrapError(c.name, err)
	}
	if fs.NArg() == 0 {
		return wrapError(c.name, errors.New("missing module name"))
	}

	flags := kmod.RemoveNonBlock
	switch {
	case *force:
		flags = kmod.RemoveForce
	case *wait:
		flags = kmod.RemoveNone
	}

	var errs []error
	for _, name := range fs.Args() {
		if err := c.m.Delete(ctx, name, flags); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return wrapError(c.name, errors.Join(errs...))
}
