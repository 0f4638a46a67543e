// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	// DefaultModuleDir is the root of the per-release module trees.
	DefaultModuleDir = "/lib/modules"

	modulesOrderFile   = "modules.order"
	modulesDepFile     = "modules.dep"
	modulesAliasFile   = "modules.alias"
	modulesBuiltinFile = "modules.builtin"
)

// ErrModuleNotFound is the sentinel wrapped by ModuleNotFoundError.
var ErrModuleNotFound = errors.New("module not found")

type (
	// ModuleNotFoundError is returned when a name matches no module, alias or
	// built-in of a kernel release. It wraps ErrModuleNotFound.
	ModuleNotFoundError struct {
		Name    ModuleName
		Release KernelRelease
	}

	// Index holds the depmod manifests of a single kernel release.
	Index struct {
		dir     string
		release KernelRelease
		// paths maps normalized module names to paths relative to dir.
		paths map[ModuleName]string
		// deps maps a module path to its dependency paths in modules.dep order.
		deps    map[string][]string
		aliases []aliasEntry
		builtin map[ModuleName]struct{}
	}

	aliasEntry struct {
		pattern string
		module  ModuleName
	}

	// Resolution is the result of looking a name up in an Index.
	Resolution struct {
		// Name is the module name the lookup resolved to.
		Name ModuleName
		// Path is the absolute path of the module file. Empty for built-ins.
		Path string
		// Builtin reports that the module is compiled into the kernel.
		Builtin bool
		// Alias is the alias pattern that matched, if any.
		Alias string
	}
)

// Error implements the error interface for ModuleNotFoundError.
func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module %s is not provided by %s kernel", e.Name, e.Release)
}

// Unwrap returns ErrModuleNotFound for errors.Is() compatibility.
func (e *ModuleNotFoundError) Unwrap() error { return ErrModuleNotFound }

// LoadIndex parses the depmod manifests found in dir, which is expected to
// be a release directory such as /lib/modules/6.8.0-45-generic.
// modules.order is required; the other manifests are optional.
func LoadIndex(dir string) (*Index, error) {
	idx := &Index{
		dir:     dir,
		release: KernelRelease(filepath.Base(dir)),
		paths:   make(map[ModuleName]string),
		deps:    make(map[string][]string),
		builtin: make(map[ModuleName]struct{}),
	}

	if err := parseManifest(dir, modulesOrderFile, true, idx.parseOrder); err != nil {
		return nil, err
	}
	// modules.dep carries the on-disk file names (including compression
	// suffixes), so it overrides paths taken from modules.order.
	if err := parseManifest(dir, modulesDepFile, false, idx.parseDeps); err != nil {
		return nil, err
	}
	if err := parseManifest(dir, modulesAliasFile, false, idx.parseAliases); err != nil {
		return nil, err
	}
	if err := parseManifest(dir, modulesBuiltinFile, false, idx.parseBuiltin); err != nil {
		return nil, err
	}

	return idx, nil
}

// Dir returns the release directory the index was loaded from.
func (idx *Index) Dir() string { return idx.dir }

// Release returns the kernel release the index describes.
func (idx *Index) Release() KernelRelease { return idx.release }

// Len returns the number of loadable modules in the index.
func (idx *Index) Len() int { return len(idx.paths) }

// Lookup resolves a module name, an alias, or a built-in module.
func (idx *Index) Lookup(name string) (Resolution, error) {
	mod := ModuleName(name).Normalize()
	if valid, errs := mod.IsValid(); !valid {
		return Resolution{}, errs[0]
	}

	if rel, ok := idx.paths[mod]; ok {
		return Resolution{Name: mod, Path: filepath.Join(idx.dir, rel)}, nil
	}

	query := normalizeAlias(name)
	for _, a := range idx.aliases {
		if ok, _ := path.Match(a.pattern, query); !ok {
			continue
		}
		res := Resolution{Name: a.module, Alias: a.pattern}
		if rel, ok := idx.paths[a.module]; ok {
			res.Path = filepath.Join(idx.dir, rel)
			return res, nil
		}
		if _, ok := idx.builtin[a.module]; ok {
			res.Builtin = true
			return res, nil
		}
	}

	if _, ok := idx.builtin[mod]; ok {
		return Resolution{Name: mod, Builtin: true}, nil
	}

	return Resolution{}, &ModuleNotFoundError{Name: ModuleName(name), Release: idx.release}
}

// Deps returns the dependencies of the module at path (absolute or relative
// to the release directory) as absolute paths, in modules.dep order.
func (idx *Index) Deps(modPath string) []string {
	rel := modPath
	if filepath.IsAbs(modPath) {
		if r, err := filepath.Rel(idx.dir, modPath); err == nil {
			rel = r
		}
	}
	deps := idx.deps[filepath.ToSlash(rel)]
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, filepath.Join(idx.dir, d))
	}
	return out
}

func (idx *Index) parseOrder(line string) error {
	idx.paths[moduleNameFromPath(line)] = line
	return nil
}

func (idx *Index) parseDeps(line string) error {
	modPath, rest, found := strings.Cut(line, ":")
	if !found {
		return fmt.Errorf("malformed dependency line %q", line)
	}
	modPath = strings.TrimSpace(modPath)
	idx.paths[moduleNameFromPath(modPath)] = modPath
	idx.deps[modPath] = strings.Fields(rest)
	return nil
}

func (idx *Index) parseAliases(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "alias" {
		return fmt.Errorf("malformed alias line %q", line)
	}
	idx.aliases = append(idx.aliases, aliasEntry{
		pattern: normalizeAlias(fields[1]),
		module:  ModuleName(fields[2]).Normalize(),
	})
	return nil
}

func (idx *Index) parseBuiltin(line string) error {
	idx.builtin[moduleNameFromPath(line)] = struct{}{}
	return nil
}

// parseManifest feeds every non-blank, non-comment line of dir/name to fn.
func parseManifest(dir, name string, required bool, fn func(line string) error) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	if err := scanManifest(f, fn); err != nil {
		return fmt.Errorf("%s: %w", filepath.Join(dir, name), err)
	}
	return nil
}

func scanManifest(r io.Reader, fn func(line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

// moduleNameFromPath derives the kernel module name from a module file path,
// e.g. "kernel/arch/x86/kvm/kvm-intel.ko.zst" -> "kvm_intel".
func moduleNameFromPath(p string) ModuleName {
	base := path.Base(filepath.ToSlash(p))
	for _, s := range compressedSuffixes {
		base = strings.TrimSuffix(base, s.suffix)
	}
	base = strings.TrimSuffix(base, ".ko")
	return ModuleName(base).Normalize()
}

// normalizeAlias folds dashes into underscores outside bracket expressions,
// so "fs-ext4" and "fs_ext4" match the same alias while "[0-9]" keeps its range.
func normalizeAlias(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inBracket := false
	for _, r := range s {
		switch {
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case r == '-' && !inBracket:
			r = '_'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
