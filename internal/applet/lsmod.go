// SPDX-License-Identifier: MPL-2.0

package applet

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/invowk/lmod/pkg/kmod"
)

type lsmodCommand struct {
	baseCommand
	m *kmod.Modprober
}

func newLsmodCommand(m *kmod.Modprober) *lsmodCommand {
	return &lsmodCommand{
		baseCommand: baseCommand{name: "lsmod"},
		m:           m,
	}
}

// Run prints the loaded modules in lsmod(8) format.
func (c *lsmodCommand) Run(ctx context.Context, args []string) error {
	hc := GetHandlerContext(ctx)

	mods, err := kmod.ReadLoadedModules(c.m.ProcModules())
	if err != nil {
		return wrapError(c.name, err)
	}
	return wrapError(c.name, WriteLsmod(hc.Stdout, mods))
}

// WriteLsmod writes mods as the classic three column lsmod table.
func WriteLsmod(w io.Writer, mods []kmod.LoadedModule) error {
	if _, err := fmt.Fprintf(w, "%-19s %8s  %s\n", "Module", "Size", "Used by"); err != nil {
		return err
	}
	for _, mod := range mods {
		usedBy := strconv.Itoa(mod.RefCount)
		if len(mod.Holders) > 0 {
			holders := make([]string, len(mod.Holders))
			for i, h := range mod.Holders {
				holders[i] = string(h)
			}
			usedBy += " " + strings.Join(holders, ",")
		}
		if _, err := fmt.Fprintf(w, "%-19s %8d  %s\n", mod.Name, mod.Size, usedBy); err != nil {
			return err
		}
	}
	return nil
}
