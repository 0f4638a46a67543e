// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
)

type (
	// Options configures a Modprober. Zero fields take system defaults.
	Options struct {
		// Kernel issues the module syscalls. Defaults to SystemKernel().
		Kernel Kernel
		// ModuleDir is the root of the per-release module trees.
		// Defaults to DefaultModuleDir.
		ModuleDir string
		// ProcModules is the list of loaded modules. Defaults to DefaultProcModules.
		ProcModules string
		// Logger receives progress at debug level. Defaults to slog.Default().
		Logger *slog.Logger
		// DryRun resolves and logs every step without issuing syscalls.
		DryRun bool
	}

	// Modprober loads and removes modules together with their dependencies.
	Modprober struct {
		kernel      Kernel
		moduleDir   string
		procModules string
		logger      *slog.Logger
		dryRun      bool
	}

	// Step is a single module insertion of a Plan.
	Step struct {
		Name ModuleName `json:"name"`
		Path string     `json:"path"`
		// Params is only set on the target step.
		Params Params `json:"params,omitempty"`
		// Dependency is false for the requested module itself.
		Dependency bool `json:"dependency"`
	}

	// Plan is the ordered list of insertions needed to load a module:
	// dependencies first, deepest first, then the target.
	Plan struct {
		Release KernelRelease `json:"release"`
		Target  ModuleName    `json:"target"`
		// Alias is the alias pattern the request matched, if any.
		Alias string `json:"alias,omitempty"`
		// Builtin reports that the target is compiled into the kernel and
		// needs no loading.
		Builtin bool   `json:"builtin"`
		Steps   []Step `json:"steps"`
	}
)

// NewModprober creates a Modprober, filling omitted options with defaults.
func NewModprober(opts Options) *Modprober {
	if opts.Kernel == nil {
		opts.Kernel = SystemKernel()
	}
	if opts.ModuleDir == "" {
		opts.ModuleDir = DefaultModuleDir
	}
	if opts.ProcModules == "" {
		opts.ProcModules = DefaultProcModules
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Modprober{
		kernel:      opts.Kernel,
		moduleDir:   opts.ModuleDir,
		procModules: opts.ProcModules,
		logger:      opts.Logger,
		dryRun:      opts.DryRun,
	}
}

// WithDryRun returns a copy of m with dry-run mode set to dryRun.
func (m *Modprober) WithDryRun(dryRun bool) *Modprober {
	c := *m
	c.dryRun = dryRun
	return &c
}

// Kernel returns the Kernel used for syscalls.
func (m *Modprober) Kernel() Kernel { return m.kernel }

// ModuleDir returns the module tree root.
func (m *Modprober) ModuleDir() string { return m.moduleDir }

// ProcModules returns the path of the loaded-module list.
func (m *Modprober) ProcModules() string { return m.procModules }

// DryRun reports whether syscalls are suppressed.
func (m *Modprober) DryRun() bool { return m.dryRun }

// Index loads the depmod index of the selected kernel release.
func (m *Modprober) Index(sel Selection) (*Index, error) {
	release, err := sel.Resolve(m.kernel)
	if err != nil {
		return nil, err
	}
	return LoadIndex(filepath.Join(m.moduleDir, release.String()))
}

// Resolve builds the load plan for name without touching the kernel.
func (m *Modprober) Resolve(ctx context.Context, name string, sel Selection) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx, err := m.Index(sel)
	if err != nil {
		return nil, err
	}

	res, err := idx.Lookup(name)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Release: idx.Release(),
		Target:  res.Name,
		Alias:   res.Alias,
		Builtin: res.Builtin,
	}
	if res.Builtin {
		return plan, nil
	}

	// modules.dep lists a module's dependencies such that each entry may
	// depend on the ones after it, so they are inserted back to front.
	deps := idx.Deps(res.Path)
	for i := len(deps) - 1; i >= 0; i-- {
		plan.Steps = append(plan.Steps, Step{
			Name:       moduleNameFromPath(deps[i]),
			Path:       deps[i],
			Dependency: true,
		})
	}
	plan.Steps = append(plan.Steps, Step{Name: res.Name, Path: res.Path})
	return plan, nil
}

// Modprobe loads name and its dependencies for the selected kernel.
//
// Dependencies that are already loaded are skipped, and an EEXIST from a
// dependency is ignored. The target's error, EEXIST included, is returned
// unchanged. Built-in modules succeed without loading anything.
func (m *Modprober) Modprobe(ctx context.Context, name string, params Params, sel Selection) error {
	plan, err := m.Resolve(ctx, name, sel)
	if err != nil {
		return err
	}
	if plan.Builtin {
		m.logger.Debug("module is built in", "module", plan.Target, "release", plan.Release)
		return nil
	}
	plan.Steps[len(plan.Steps)-1].Params = params

	loaded := m.loadedSet()
	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if step.Dependency {
			if _, ok := loaded[step.Name]; ok {
				m.logger.Debug("dependency already loaded", "module", step.Name)
				continue
			}
		}
		if err := m.insert(step.Path, step.Params); err != nil {
			if !step.Dependency {
				return err
			}
			if IsAlreadyLoaded(err) {
				continue
			}
			return fmt.Errorf("insert dependency %s: %w", step.Name, err)
		}
	}
	return nil
}

// Insert loads a single module file (insmod).
func (m *Modprober) Insert(ctx context.Context, path string, params Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.insert(path, params)
}

// InsertImage loads an in-memory module image.
func (m *Modprober) InsertImage(ctx context.Context, image []byte, params Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.dryRun {
		m.logger.Info("would insert module image", "bytes", len(image), "params", params)
		return nil
	}
	return InsertImage(m.kernel, image, params)
}

func (m *Modprober) insert(path string, params Params) error {
	if m.dryRun {
		m.logger.Info("would insert module", "path", path, "params", params)
		return nil
	}
	m.logger.Debug("inserting module", "path", path, "params", params)
	return InsertFile(m.kernel, path, params)
}

// loadedSet reads the loaded module names. An unreadable list yields an
// empty set: insertion then relies on EEXIST alone.
func (m *Modprober) loadedSet() map[ModuleName]struct{} {
	set := make(map[ModuleName]struct{})
	mods, err := ReadLoadedModules(m.procModules)
	if err != nil {
		m.logger.Debug("cannot read loaded modules", "path", m.procModules, "error", err)
		return set
	}
	for _, mod := range mods {
		set[mod.Name.Normalize()] = struct{}{}
	}
	return set
}

// IsAlreadyLoaded reports whether err is the kernel's EEXIST for a module
// that is already present.
func IsAlreadyLoaded(err error) bool {
	return errors.Is(err, fs.ErrExist)
}
