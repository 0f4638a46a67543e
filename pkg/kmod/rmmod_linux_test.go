// SPDX-License-Identifier: MPL-2.0

//go:build linux

package kmod

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestRemoveFlags_Bits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		flags RemoveFlags
		want  int
	}{
		{RemoveNone, 0},
		{RemoveForce, unix.O_NONBLOCK | unix.O_TRUNC},
		{RemoveNonBlock, unix.O_NONBLOCK},
	}
	for _, tt := range tests {
		k := newFakeKernel(testRelease)
		k.loaded["kvm"] = true
		if err := DeleteModule(k, "kvm", tt.flags); err != nil {
			t.Fatalf("DeleteModule(%s) error: %v", tt.flags, err)
		}
		if got := k.calls[0].flags; got != tt.want {
			t.Errorf("DeleteModule(%s) flags = %#o, want %#o", tt.flags, got, tt.want)
		}
	}
}
