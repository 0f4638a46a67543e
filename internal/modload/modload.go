// SPDX-License-Identifier: MPL-2.0

// Package modload loads the modules listed in modules-load.d directories,
// following systemd-modules-load: every *.conf file lists one module per
// line, and a file in an earlier directory masks a file of the same name in
// later directories.
package modload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/invowk/lmod/pkg/kmod"
)

const (
	// StatusLoaded means the module (and its dependencies) were inserted.
	StatusLoaded Status = iota
	// StatusAlreadyLoaded means the kernel already had the module.
	StatusAlreadyLoaded
	// StatusFailed means loading returned an error.
	StatusFailed
	// StatusWouldLoad means the entry resolved during a dry run.
	StatusWouldLoad
)

// confSuffix selects the files read from each directory.
const confSuffix = ".conf"

type (
	// Status is the outcome of loading one entry.
	Status int

	// Entry is one module line of a .conf file.
	Entry struct {
		// File is the path of the .conf file.
		File string
		// Line is the 1-based line number.
		Line   int
		Module string
		Params kmod.Params
	}

	// Result is the outcome for one Entry.
	Result struct {
		Entry
		Status Status
		Err    error
	}

	// Loader is the subset of *kmod.Modprober used to load entries.
	Loader interface {
		Modprobe(ctx context.Context, name string, params kmod.Params, sel kmod.Selection) error
		DryRun() bool
	}
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusAlreadyLoaded:
		return "already loaded"
	case StatusFailed:
		return "failed"
	case StatusWouldLoad:
		return "would load"
	default:
		return "unknown"
	}
}

// ConfigFiles returns the .conf files to process in lexical order of file
// name. For each name only the file from the earliest directory is kept.
// Missing directories are skipped.
func ConfigFiles(dirs []string) ([]string, error) {
	chosen := make(map[string]string)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, confSuffix) {
				continue
			}
			if prev, masked := chosen[name]; masked {
				slog.Debug("config file masked", "file", filepath.Join(dir, name), "by", prev)
				continue
			}
			chosen[name] = filepath.Join(dir, name)
		}
	}

	names := make([]string, 0, len(chosen))
	for name := range chosen {
		names = append(names, name)
	}
	sort.Strings(names)

	files := make([]string, len(names))
	for i, name := range names {
		files[i] = chosen[name]
	}
	return files, nil
}

// Parse reads the entries of one .conf file. Blank lines and lines starting
// with '#' or ';' are ignored. Words after the module name are passed as
// parameters.
func Parse(r io.Reader, file string) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' || text[0] == ';' {
			continue
		}
		fields := strings.Fields(text)
		entries = append(entries, Entry{
			File:   file,
			Line:   line,
			Module: fields[0],
			Params: kmod.ParseParams(fields[1:]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return entries, nil
}

// Entries collects the entries of every file ConfigFiles selects.
func Entries(dirs []string) ([]Entry, error) {
	files, err := ConfigFiles(dirs)
	if err != nil {
		return nil, err
	}

	var all []Entry
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		entries, err := Parse(f, file)
		_ = f.Close() // Read-only file; close error is not actionable
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// Load loads every entry from dirs for the running kernel. It keeps going
// after failures; the returned error joins every failed entry and is nil
// when all entries loaded or were already loaded. In a dry run, entries
// that resolve are reported as StatusWouldLoad.
func Load(ctx context.Context, l Loader, dirs []string) ([]Result, error) {
	entries, err := Entries(dirs)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(entries))
	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := Result{Entry: e, Status: StatusLoaded}
		switch err := l.Modprobe(ctx, e.Module, e.Params, kmod.CurrentKernel()); {
		case err == nil && l.DryRun():
			res.Status = StatusWouldLoad
		case err == nil:
			slog.Debug("module loaded", "module", e.Module, "file", e.File)
		case kmod.IsAlreadyLoaded(err):
			res.Status = StatusAlreadyLoaded
		default:
			res.Status = StatusFailed
			res.Err = err
			errs = append(errs, fmt.Errorf("%s:%d: %s: %w", e.File, e.Line, e.Module, err))
			slog.Warn("failed to load module", "module", e.Module, "file", e.File, "error", err)
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
