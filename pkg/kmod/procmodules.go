// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultProcModules is the kernel's list of loaded modules.
const DefaultProcModules = "/proc/modules"

// LoadedModule is one entry of /proc/modules.
type LoadedModule struct {
	Name     ModuleName `json:"name" toml:"name"`
	Size     uint64     `json:"size" toml:"size"`
	RefCount int        `json:"refcount" toml:"refcount"`
	// Holders lists the modules using this one. A refcount may exceed
	// len(Holders) when references are held by something other than modules.
	Holders []ModuleName `json:"holders,omitempty" toml:"holders,omitempty"`
	State   string       `json:"state" toml:"state"`
	Address string       `json:"address" toml:"address"`
	// Taints carries the trailing taint flags, e.g. "(OE)".
	Taints string `json:"taints,omitempty" toml:"taints,omitempty"`
}

// InUse reports whether anything holds a reference to the module.
func (m LoadedModule) InUse() bool { return m.RefCount != 0 }

// ParseProcModules parses the /proc/modules format:
//
//	kvm_intel 372736 0 - Live 0xffffffffc0a6e000
//	kvm 1142784 1 kvm_intel, Live 0xffffffffc08d1000
func ParseProcModules(r io.Reader) ([]LoadedModule, error) {
	var mods []LoadedModule
	err := scanManifest(r, func(line string) error {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			return fmt.Errorf("malformed module line %q", line)
		}
		size, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return fmt.Errorf("module %s: size: %w", fields[0], err)
		}
		mod := LoadedModule{
			Name:  ModuleName(fields[0]),
			Size:  size,
			State: fields[4],
		}
		// Modules built without unload support report "-" as refcount.
		if fields[2] != "-" {
			if mod.RefCount, err = strconv.Atoi(fields[2]); err != nil {
				return fmt.Errorf("module %s: refcount: %w", fields[0], err)
			}
		}
		for holder := range strings.SplitSeq(fields[3], ",") {
			if holder == "" || holder == "-" || holder == "[permanent]" {
				continue
			}
			mod.Holders = append(mod.Holders, ModuleName(holder))
		}
		if len(fields) > 5 {
			mod.Address = fields[5]
		}
		if len(fields) > 6 {
			mod.Taints = strings.Join(fields[6:], " ")
		}
		mods = append(mods, mod)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mods, nil
}

// ReadLoadedModules reads and parses a /proc/modules style file.
func ReadLoadedModules(path string) ([]LoadedModule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mods, err := ParseProcModules(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mods, nil
}

// FindLoaded returns the entry for name, matching normalized names.
func FindLoaded(mods []LoadedModule, name string) (LoadedModule, bool) {
	want := ModuleName(name).Normalize()
	for _, m := range mods {
		if m.Name.Normalize() == want {
			return m, true
		}
	}
	return LoadedModule{}, false
}

// IsLoaded reports whether name appears in the /proc/modules style file at path.
func IsLoaded(path, name string) (bool, error) {
	mods, err := ReadLoadedModules(path)
	if err != nil {
		return false, err
	}
	_, ok := FindLoaded(mods, name)
	return ok, nil
}
