// SPDX-License-Identifier: MPL-2.0

// Package kmodtest provides a recording kmod.Kernel and helpers that lay out
// depmod module trees for tests outside pkg/kmod.
package kmodtest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"syscall"
	"testing"
)

// Release is the kernel release reported by kernels from NewKernel.
const Release = "6.8.0-45-generic"

type (
	// Kernel is a fake kmod.Kernel. Module images are the module name as
	// text; finit_module always reports ENOSYS so loads go through
	// init_module with the file contents.
	Kernel struct {
		mu sync.Mutex
		// ProcModules, when set, is rewritten in /proc/modules format after
		// every successful load or removal.
		ProcModules string

		release string
		loaded  []string
		users   map[string]int
		calls   []Call
		errs    map[string]error
	}

	// Call is a recorded syscall.
	Call struct {
		Op     string // "init", "finit" or "delete"
		Name   string
		Params string
		Flags  int
	}

	// Tree describes a /lib/modules/<release> directory. Paths are relative
	// to the release directory; module files hold their own module name.
	Tree struct {
		Order   []string
		Deps    map[string][]string
		Aliases map[string]string
		Builtin []string
	}
)

// NewKernel returns a fake kernel reporting Release.
func NewKernel() *Kernel {
	return &Kernel{
		release: Release,
		users:   make(map[string]int),
		errs:    make(map[string]error),
	}
}

// FailLoad makes init_module fail with err for the named module.
func (k *Kernel) FailLoad(name string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.errs[name] = err
}

// SetUsers sets the reference count reported for a loaded module.
func (k *Kernel) SetUsers(name string, n int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.users[name] = n
	k.syncProc()
}

// MarkLoaded records name as loaded without a syscall.
func (k *Kernel) MarkLoaded(names ...string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, name := range names {
		if !slices.Contains(k.loaded, name) {
			k.loaded = append(k.loaded, name)
		}
	}
	k.syncProc()
}

// InitModule implements kmod.Kernel.
func (k *Kernel) InitModule(image []byte, params string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	name := strings.TrimSpace(string(image))
	k.calls = append(k.calls, Call{Op: "init", Name: name, Params: params})
	if err := k.errs[name]; err != nil {
		return err
	}
	if slices.Contains(k.loaded, name) {
		return syscall.EEXIST
	}
	k.loaded = append(k.loaded, name)
	k.syncProc()
	return nil
}

// FinitModule implements kmod.Kernel.
func (k *Kernel) FinitModule(_ int, params string, flags int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.calls = append(k.calls, Call{Op: "finit", Params: params, Flags: flags})
	return syscall.ENOSYS
}

// DeleteModule implements kmod.Kernel.
func (k *Kernel) DeleteModule(name string, flags int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.calls = append(k.calls, Call{Op: "delete", Name: name, Flags: flags})
	i := slices.Index(k.loaded, name)
	if i < 0 {
		return syscall.ENOENT
	}
	if k.users[name] > 0 {
		return syscall.EBUSY
	}
	k.loaded = slices.Delete(k.loaded, i, i+1)
	k.syncProc()
	return nil
}

// Release implements kmod.Kernel.
func (k *Kernel) Release() (string, error) {
	return k.release, nil
}

// Calls returns the recorded syscalls.
func (k *Kernel) Calls() []Call {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.calls)
}

// Names returns the module names of the recorded calls with the given op.
func (k *Kernel) Names(op string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()

	var out []string
	for _, c := range k.calls {
		if c.Op == op {
			out = append(out, c.Name)
		}
	}
	return out
}

// Loaded returns the loaded module names in load order.
func (k *Kernel) Loaded() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.loaded)
}

func (k *Kernel) syncProc() {
	if k.ProcModules == "" {
		return
	}
	var sb strings.Builder
	for i := len(k.loaded) - 1; i >= 0; i-- {
		name := k.loaded[i]
		fmt.Fprintf(&sb, "%s 16384 %d - Live 0x0000000000000000\n", name, k.users[name])
	}
	// Best effort: tests read the file back and fail on mismatch.
	_ = os.WriteFile(k.ProcModules, []byte(sb.String()), 0o644)
}

// KVM is a small tree with a two level dependency chain, aliases and
// built-in modules.
func KVM() Tree {
	return Tree{
		Order: []string{
			"kernel/virt/lib/irqbypass.ko",
			"kernel/arch/x86/kvm/kvm.ko",
			"kernel/arch/x86/kvm/kvm-intel.ko",
			"kernel/fs/ext4/ext4.ko",
			"kernel/drivers/net/dummy.ko",
		},
		Deps: map[string][]string{
			"kernel/arch/x86/kvm/kvm-intel.ko": {"kernel/arch/x86/kvm/kvm.ko", "kernel/virt/lib/irqbypass.ko"},
			"kernel/arch/x86/kvm/kvm.ko":       {"kernel/virt/lib/irqbypass.ko"},
			"kernel/virt/lib/irqbypass.ko":     nil,
			"kernel/fs/ext4/ext4.ko":           nil,
			"kernel/drivers/net/dummy.ko":      nil,
		},
		Aliases: map[string]string{
			"fs-ext4":           "ext4",
			"char-major-10-232": "kvm",
		},
		Builtin: []string{"kernel/fs/vfat/vfat.ko"},
	}
}

// WriteTree materializes tree under root/release and returns the release dir.
func WriteTree(t testing.TB, root, release string, tree Tree) string {
	t.Helper()

	dir := filepath.Join(root, release)
	files := make(map[string]bool)

	var order, dep, alias, builtin strings.Builder
	for _, p := range tree.Order {
		order.WriteString(p + "\n")
		files[p] = true
	}
	depPaths := make([]string, 0, len(tree.Deps))
	for p := range tree.Deps {
		depPaths = append(depPaths, p)
	}
	sort.Strings(depPaths)
	for _, p := range depPaths {
		dep.WriteString(p + ":")
		for _, d := range tree.Deps[p] {
			dep.WriteString(" " + d)
			files[d] = true
		}
		dep.WriteString("\n")
		files[p] = true
	}
	for pattern, mod := range tree.Aliases {
		alias.WriteString("alias " + pattern + " " + mod + "\n")
	}
	for _, p := range tree.Builtin {
		builtin.WriteString(p + "\n")
	}

	WriteFile(t, filepath.Join(dir, "modules.order"), order.String())
	WriteFile(t, filepath.Join(dir, "modules.dep"), dep.String())
	WriteFile(t, filepath.Join(dir, "modules.alias"), alias.String())
	WriteFile(t, filepath.Join(dir, "modules.builtin"), builtin.String())
	for p := range files {
		WriteFile(t, filepath.Join(dir, p), ModuleName(p)+"\n")
	}
	return dir
}

// ModuleName derives the kernel module name from a module path.
func ModuleName(p string) string {
	base := filepath.Base(p)
	if i := strings.Index(base, ".ko"); i >= 0 {
		base = base[:i]
	}
	return strings.ReplaceAll(base, "-", "_")
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}
