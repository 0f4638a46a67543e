// SPDX-License-Identifier: MPL-2.0

package applet

import (
	"context"

	"github.com/u-root/u-root/pkg/core/cat"
	"github.com/u-root/u-root/pkg/core/ls"
)

type (
	catCommand struct {
		coreWrapper
	}

	lsCommand struct {
		coreWrapper
	}
)

func newCatCommand() *catCommand {
	return &catCommand{coreWrapper{baseCommand{
		name: "cat",
		flags: []FlagInfo{
			{Name: "u", Description: "ignored (for compatibility)"},
		},
	}}}
}

// Run executes u-root's cat.
func (c *catCommand) Run(ctx context.Context, args []string) error {
	cmd := cat.New()
	configureCommand(ctx, cmd)
	return wrapError(c.name, cmd.RunContext(ctx, args[1:]...))
}

func newLsCommand() *lsCommand {
	return &lsCommand{coreWrapper{baseCommand{
		name: "ls",
		flags: []FlagInfo{
			{Name: "l", Description: "use a long listing format"},
			{Name: "a", Description: "include entries starting with ."},
			{Name: "R", Description: "list subdirectories recursively"},
		},
	}}}
}

// Run executes u-root's ls.
func (c *lsCommand) Run(ctx context.Context, args []string) error {
	cmd := ls.New()
	configureCommand(ctx, cmd)
	return wrapError(c.name, cmd.RunContext(ctx, args[1:]...))
}
