// SPDX-License-Identifier: MPL-2.0

package applet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/invowk/lmod/pkg/kmod"

	"github.com/u-root/u-root/pkg/uroot/unixflag"
)

type (
	// Registry maps applet names to their implementations.
	// It is safe for concurrent use.
	Registry struct {
		mu       sync.RWMutex
		commands map[string]Command
	}

	// Options tunes the module applets.
	Options struct {
		// IgnoreLoaded makes modprobe succeed when the target is already loaded.
		IgnoreLoaded bool
	}
)

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// NewDefaultRegistry returns a registry with the module applets bound to m
// and the u-root file utilities.
func NewDefaultRegistry(m *kmod.Modprober, opts Options) *Registry {
	r := NewRegistry()
	r.Register(newModprobeCommand(m, opts))
	r.Register(newRmmodCommand(m))
	r.Register(newInsmodCommand(m))
	r.Register(newLsmodCommand(m))
	r.Register(newCatCommand())
	r.Register(newLsCommand())
	return r
}

// Register adds a command to the registry.
// Panics if a command with the same name is already registered.
func (r *Registry) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := cmd.Name()
	if name == "" {
		panic("applet: cannot register command with empty name")
	}
	if _, exists := r.commands[name]; exists {
		panic(fmt.Sprintf("applet: command %q already registered", name))
	}
	r.commands[name] = cmd
}

// Lookup retrieves a command by name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns the names of all registered commands in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes a command by name. args must include the command name as
// args[0]. Combined short flags are split before dispatch unless the
// command does that itself.
func (r *Registry) Run(ctx context.Context, name string, args []string) error {
	cmd, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("[lmod] %s: command not found", name)
	}
	if len(args) == 0 {
		args = []string{name}
	}
	if _, native := cmd.(nativePreprocessor); !native && len(args) > 1 {
		args = append([]string{args[0]}, unixflag.ArgsToGoArgs(args[1:])...)
	}
	return cmd.Run(ctx, args)
}
