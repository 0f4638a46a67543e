// SPDX-License-Identifier: MPL-2.0

package modload

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"testing"

	"github.com/invowk/lmod/internal/testutil/kmodtest"
	"github.com/invowk/lmod/pkg/kmod"
)

func TestParse(t *testing.T) {
	t.Parallel()

	conf := `# load at boot
kvm_intel nested=1

; legacy comment
  dummy
ext4
`
	entries, err := Parse(strings.NewReader(conf), "/etc/modules-load.d/test.conf")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3: %+v", len(entries), entries)
	}

	if e := entries[0]; e.Module != "kvm_intel" || e.Params != "nested=1" || e.Line != 2 {
		t.Errorf("entries[0] = %+v", e)
	}
	if e := entries[1]; e.Module != "dummy" || e.Params != "" || e.Line != 5 {
		t.Errorf("entries[1] = %+v", e)
	}
	if e := entries[2]; e.Module != "ext4" || e.File != "/etc/modules-load.d/test.conf" {
		t.Errorf("entries[2] = %+v", e)
	}
}

func TestConfigFiles_MaskingAndOrder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	etc := filepath.Join(root, "etc")
	usr := filepath.Join(root, "usr")
	kmodtest.WriteFile(t, filepath.Join(etc, "20-net.conf"), "dummy\n")
	kmodtest.WriteFile(t, filepath.Join(usr, "20-net.conf"), "tun\n")
	kmodtest.WriteFile(t, filepath.Join(usr, "10-virt.conf"), "kvm\n")
	kmodtest.WriteFile(t, filepath.Join(usr, "README"), "ignored\n")
	kmodtest.WriteFile(t, filepath.Join(usr, "sub.conf", "x"), "ignored\n")

	files, err := ConfigFiles([]string{etc, filepath.Join(root, "missing"), usr})
	if err != nil {
		t.Fatalf("ConfigFiles() error = %v", err)
	}
	want := []string{filepath.Join(usr, "10-virt.conf"), filepath.Join(etc, "20-net.conf")}
	if !slices.Equal(files, want) {
		t.Errorf("ConfigFiles() = %v, want %v", files, want)
	}
}

func newModprober(t *testing.T) (*kmod.Modprober, *kmodtest.Kernel) {
	t.Helper()

	root := t.TempDir()
	kmodtest.WriteTree(t, root, kmodtest.Release, kmodtest.KVM())
	k := kmodtest.NewKernel()
	k.ProcModules = filepath.Join(root, "proc-modules")
	k.MarkLoaded()

	return kmod.NewModprober(kmod.Options{
		Kernel:      k,
		ModuleDir:   root,
		ProcModules: k.ProcModules,
		Logger:      slog.New(slog.DiscardHandler),
	}), k
}

func TestLoad(t *testing.T) {
	t.Parallel()

	m, k := newModprober(t)
	k.MarkLoaded("ext4")
	k.FailLoad("dummy", syscall.ENOEXEC)

	dir := t.TempDir()
	kmodtest.WriteFile(t, filepath.Join(dir, "a.conf"), "kvm-intel nested=1\next4\n")
	kmodtest.WriteFile(t, filepath.Join(dir, "b.conf"), "dummy\nnot-a-module\nfs-ext4\n")

	results, err := Load(context.Background(), m, []string{dir})
	if err == nil {
		t.Fatal("Load() should report the failed entries")
	}
	if !errors.Is(err, syscall.ENOEXEC) || !errors.Is(err, kmod.ErrModuleNotFound) {
		t.Errorf("Load() error = %v, want ENOEXEC and ErrModuleNotFound joined", err)
	}
	if !strings.Contains(err.Error(), "b.conf:1: dummy") {
		t.Errorf("error should point at the file and line: %v", err)
	}

	want := []struct {
		module string
		status Status
	}{
		{"kvm-intel", StatusLoaded},
		{"ext4", StatusAlreadyLoaded},
		{"dummy", StatusFailed},
		{"not-a-module", StatusFailed},
		{"fs-ext4", StatusAlreadyLoaded},
	}
	if len(results) != len(want) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i].Module != w.module || results[i].Status != w.status {
			t.Errorf("results[%d] = %s %s, want %s %s", i, results[i].Module, results[i].Status, w.module, w.status)
		}
	}

	if got := k.Loaded(); !slices.Equal(got, []string{"ext4", "irqbypass", "kvm", "kvm_intel"}) {
		t.Errorf("loaded = %v", got)
	}
}

func TestLoad_AllGood(t *testing.T) {
	t.Parallel()

	m, _ := newModprober(t)
	dir := t.TempDir()
	kmodtest.WriteFile(t, filepath.Join(dir, "virt.conf"), "kvm\n")

	results, err := Load(context.Background(), m, []string{dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusLoaded {
		t.Errorf("results = %+v", results)
	}
}

func TestLoad_DryRun(t *testing.T) {
	t.Parallel()

	m, k := newModprober(t)
	dir := t.TempDir()
	kmodtest.WriteFile(t, filepath.Join(dir, "virt.conf"), "kvm\nnot-a-module\n")

	results, err := Load(context.Background(), m.WithDryRun(true), []string{dir})
	if !errors.Is(err, kmod.ErrModuleNotFound) {
		t.Errorf("Load() error = %v, want ErrModuleNotFound", err)
	}
	if len(results) != 2 || results[0].Status != StatusWouldLoad || results[1].Status != StatusFailed {
		t.Errorf("results = %+v, want [would load, failed]", results)
	}
	if len(k.Calls()) != 0 {
		t.Errorf("dry run issued syscalls: %v", k.Calls())
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	m, k := newModprober(t)
	dir := t.TempDir()
	kmodtest.WriteFile(t, filepath.Join(dir, "virt.conf"), "kvm\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, m, []string{dir}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
	if len(k.Calls()) != 0 {
		t.Error("canceled load issued syscalls")
	}
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	for s, want := range map[Status]string{
		StatusLoaded:        "loaded",
		StatusAlreadyLoaded: "already loaded",
		StatusFailed:        "failed",
		StatusWouldLoad:     "would load",
		Status(42):          "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}
