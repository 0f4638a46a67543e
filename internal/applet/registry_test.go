// SPDX-License-Identifier: MPL-2.0

package applet

import (
	"context"
	"slices"
	"strings"
	"testing"
)

type mockCommand struct {
	baseCommand
	args []string
}

func (m *mockCommand) Run(_ context.Context, args []string) error {
	m.args = args
	return nil
}

type nativeMock struct {
	coreWrapper
	args []string
}

func (m *nativeMock) Run(_ context.Context, args []string) error {
	m.args = args
	return nil
}

func newMock(name string) *mockCommand {
	return &mockCommand{baseCommand: baseCommand{name: name}}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	cmd := newMock("modprobe")
	r.Register(cmd)

	found, ok := r.Lookup("modprobe")
	if !ok || found != cmd {
		t.Fatalf("Lookup(modprobe) = %v, %v", found, ok)
	}
	if _, ok := r.Lookup("depmod"); ok {
		t.Error("Lookup should miss unregistered commands")
	}
}

func TestRegistry_Register_Panics(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "dup"} {
		t.Run("name="+name, func(t *testing.T) {
			t.Parallel()

			r := NewRegistry()
			r.Register(newMock("dup"))
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			r.Register(newMock(name))
		})
	}
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()

	r := NewDefaultRegistry(nil, Options{})
	want := []string{"cat", "insmod", "ls", "lsmod", "modprobe", "rmmod"}
	if got := r.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegistry_Run_SplitsCombinedFlags(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	custom := newMock("modprobe")
	native := &nativeMock{coreWrapper: coreWrapper{baseCommand{name: "ls"}}}
	r.Register(custom)
	r.Register(native)

	if err := r.Run(context.Background(), "modprobe", []string{"modprobe", "-nq", "kvm"}); err != nil {
		t.Fatal(err)
	}
	if want := []string{"modprobe", "-n", "-q", "kvm"}; !slices.Equal(custom.args, want) {
		t.Errorf("custom args = %v, want %v", custom.args, want)
	}

	if err := r.Run(context.Background(), "ls", []string{"ls", "-la"}); err != nil {
		t.Fatal(err)
	}
	if want := []string{"ls", "-la"}; !slices.Equal(native.args, want) {
		t.Errorf("native args = %v, want %v", native.args, want)
	}
}

func TestRegistry_Run_NotFound(t *testing.T) {
	t.Parallel()

	err := NewRegistry().Run(context.Background(), "depmod", []string{"depmod"})
	if err == nil || !strings.HasPrefix(err.Error(), "[lmod] depmod:") {
		t.Errorf("Run(unknown) error = %v", err)
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	if wrapError("rmmod", nil) != nil {
		t.Error("wrapError(nil) should be nil")
	}
}
