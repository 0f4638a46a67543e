// SPDX-License-Identifier: MPL-2.0

package applet

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/invowk/lmod/pkg/kmod"
)

type insmodCommand struct {
	baseCommand
	m *kmod.Modprober
}

func newInsmodCommand(m *kmod.Modprober) *insmodCommand {
	return &insmodCommand{
		baseCommand: baseCommand{name: "insmod"},
		m:           m,
	}
}

// Run inserts a single module file without resolving dependencies.
func (c *insmodCommand) Run(ctx context.Context, args []string) error {
	hc := GetHandlerContext(ctx)

	fs := c.newFlagSet()
	if err := fs.Parse(args[1:]); err != nil {
		return wrapError(c.name, err)
	}
	if fs.NArg() == 0 {
		return wrapError(c.name, errors.New("missing module file"))
	}

	path := fs.Arg(0)
	if !filepath.IsAbs(path) && hc.Dir != "" {
		path = filepath.Join(hc.Dir, path)
	}
	return wrapError(c.name, c.m.Insert(ctx, path, kmod.ParseParams(fs.Args()[1:])))
}
