// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"syscall"
	"testing"
)

const testRelease = "6.8.0-45-generic"

func newTestModprober(t *testing.T, k *fakeKernel) (*Modprober, string) {
	t.Helper()

	root := t.TempDir()
	writeTree(t, root, testRelease, kvmTree())
	return NewModprober(Options{
		Kernel:      k,
		ModuleDir:   root,
		ProcModules: filepath.Join(root, "proc-modules"),
		Logger:      discardLogger(),
	}), root
}

func TestNewModprober_Defaults(t *testing.T) {
	t.Parallel()

	m := NewModprober(Options{})
	if m.ModuleDir() != DefaultModuleDir {
		t.Errorf("ModuleDir() = %q, want %q", m.ModuleDir(), DefaultModuleDir)
	}
	if m.ProcModules() != DefaultProcModules {
		t.Errorf("ProcModules() = %q, want %q", m.ProcModules(), DefaultProcModules)
	}
	if m.Kernel() == nil {
		t.Error("Kernel() should default to the system kernel")
	}
	if m.DryRun() {
		t.Error("DryRun() should default to false")
	}
	if !m.WithDryRun(true).DryRun() || m.DryRun() {
		t.Error("WithDryRun should return a modified copy")
	}
}

func TestModprober_Resolve(t *testing.T) {
	t.Parallel()

	m, root := newTestModprober(t, newFakeKernel(testRelease))

	plan, err := m.Resolve(context.Background(), "kvm-intel", CurrentKernel())
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if plan.Release != testRelease || plan.Target != "kvm_intel" || plan.Builtin {
		t.Fatalf("unexpected plan header: %+v", plan)
	}

	var names []ModuleName
	for _, s := range plan.Steps {
		names = append(names, s.Name)
	}
	want := []ModuleName{"irqbypass", "kvm", "kvm_intel"}
	if !slices.Equal(names, want) {
		t.Fatalf("plan order = %v, want %v", names, want)
	}

	last := plan.Steps[len(plan.Steps)-1]
	if last.Dependency || last.Path != filepath.Join(root, testRelease, "kernel/arch/x86/kvm/kvm-intel.ko.zst") {
		t.Errorf("unexpected target step: %+v", last)
	}
	for _, s := range plan.Steps[:len(plan.Steps)-1] {
		if !s.Dependency {
			t.Errorf("step %s should be a dependency", s.Name)
		}
	}
}

func TestModprober_Resolve_OtherKernel(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	m, root := newTestModprober(t, k)
	writeTree(t, root, "5.4-x86_64", moduleTree{order: []string{"kernel/drivers/net/tun.ko"}})

	plan, err := m.Resolve(context.Background(), "tun", OtherKernel("5.4-x86_64"))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if plan.Release != "5.4-x86_64" || len(plan.Steps) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	if _, err := m.Resolve(context.Background(), "tun", CurrentKernel()); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("tun should not be provided by the running kernel, got %v", err)
	}
}

func TestModprober_Modprobe(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	m, _ := newTestModprober(t, k)

	if err := m.Modprobe(context.Background(), "kvm_intel", "nested=1", CurrentKernel()); err != nil {
		t.Fatalf("Modprobe() error: %v", err)
	}

	if got, want := k.names("init"), []string{"irqbypass", "kvm", "kvm_intel"}; !slices.Equal(got, want) {
		t.Fatalf("init_module order = %v, want %v", got, want)
	}
	for _, c := range k.calls {
		wantParams := ""
		if c.name == "kvm_intel" {
			wantParams = "nested=1"
		}
		if c.params != wantParams {
			t.Errorf("%s loaded with params %q, want %q", c.name, c.params, wantParams)
		}
	}
}

func TestModprober_Modprobe_DependencyAlreadyLoaded(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	k.loaded["kvm"] = true
	m, _ := newTestModprober(t, k)

	if err := m.Modprobe(context.Background(), "kvm_intel", "", CurrentKernel()); err != nil {
		t.Fatalf("Modprobe() error: %v", err)
	}
	if !k.loaded["kvm_intel"] || !k.loaded["irqbypass"] {
		t.Errorf("expected kvm_intel and irqbypass to be loaded, got %v", k.loaded)
	}
}

func TestModprober_Modprobe_SkipsListedDependencies(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	m, _ := newTestModprober(t, k)
	writeFile(t, m.ProcModules(), []byte(
		"kvm 1142784 0 - Live 0x0000000000000000\n"+
			"irqbypass 12288 1 kvm, Live 0x0000000000000000\n"))

	if err := m.Modprobe(context.Background(), "kvm-intel", "", CurrentKernel()); err != nil {
		t.Fatalf("Modprobe() error: %v", err)
	}
	if got := k.names("init"); !slices.Equal(got, []string{"kvm_intel"}) {
		t.Errorf("init_module calls = %v, want only kvm_intel", got)
	}
}

func TestModprober_Modprobe_TargetAlreadyLoaded(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	k.loaded["kvm"] = true
	m, _ := newTestModprober(t, k)

	err := m.Modprobe(context.Background(), "kvm", "", CurrentKernel())
	if !errors.Is(err, syscall.EEXIST) {
		t.Fatalf("Modprobe() error = %v, want EEXIST", err)
	}
	if !IsAlreadyLoaded(err) {
		t.Error("IsAlreadyLoaded should report EEXIST")
	}
}

func TestModprober_Modprobe_DependencyFailure(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	k.initErrs["irqbypass"] = syscall.EPERM
	m, _ := newTestModprober(t, k)

	err := m.Modprobe(context.Background(), "kvm_intel", "", CurrentKernel())
	if !errors.Is(err, syscall.EPERM) {
		t.Fatalf("Modprobe() error = %v, want EPERM", err)
	}
	if k.loaded["kvm_intel"] {
		t.Error("target must not be loaded after a dependency failure")
	}
}

func TestModprober_Modprobe_TargetErrorUnchanged(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	k.initErrs["ext4"] = syscall.ENOEXEC
	m, _ := newTestModprober(t, k)

	err := m.Modprobe(context.Background(), "fs-ext4", "", CurrentKernel())
	if err != syscall.ENOEXEC { //nolint:errorlint // the errno must be returned as is
		t.Fatalf("Modprobe() error = %#v, want bare ENOEXEC", err)
	}
}

func TestModprober_Modprobe_Builtin(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	m, _ := newTestModprober(t, k)

	if err := m.Modprobe(context.Background(), "vfat", "", CurrentKernel()); err != nil {
		t.Fatalf("Modprobe(builtin) error: %v", err)
	}
	if len(k.calls) != 0 {
		t.Errorf("built-in module should not issue syscalls, got %v", k.calls)
	}
}

func TestModprober_Modprobe_NotFound(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	m, _ := newTestModprober(t, k)

	err := m.Modprobe(context.Background(), "does-not-exist", "", CurrentKernel())
	if !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("Modprobe() error = %v, want ErrModuleNotFound", err)
	}
}

func TestModprober_Modprobe_DryRun(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	m, _ := newTestModprober(t, k)

	if err := m.WithDryRun(true).Modprobe(context.Background(), "kvm_intel", "", CurrentKernel()); err != nil {
		t.Fatalf("Modprobe() error: %v", err)
	}
	if len(k.calls) != 0 {
		t.Errorf("dry run issued syscalls: %v", k.calls)
	}
}

func TestModprober_Modprobe_Canceled(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	m, _ := newTestModprober(t, k)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Modprobe(ctx, "kvm", "", CurrentKernel()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Modprobe() error = %v, want context.Canceled", err)
	}
	if len(k.calls) != 0 {
		t.Errorf("canceled modprobe issued syscalls: %v", k.calls)
	}
}

func TestModprober_InsertImage(t *testing.T) {
	t.Parallel()

	k := newFakeKernel(testRelease)
	m, _ := newTestModprober(t, k)

	if err := m.InsertImage(context.Background(), []byte("dummy"), "x=1"); err != nil {
		t.Fatalf("InsertImage() error: %v", err)
	}
	if len(k.calls) != 1 || k.calls[0].name != "dummy" || k.calls[0].params != "x=1" {
		t.Errorf("unexpected calls: %v", k.calls)
	}
	if err := m.InsertImage(context.Background(), nil, ""); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("InsertImage(nil) error = %v, want ErrEmptyImage", err)
	}
}
