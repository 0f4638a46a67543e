// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
	"testing"

	"github.com/invowk/lmod/pkg/kmod"
)

func TestValuesCoversCatalog(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != len(issues) {
		t.Fatalf("len(Values()) = %d, want %d", len(values), len(issues))
	}
	for i, v := range values {
		if i > 0 && values[i-1].Id() >= v.Id() {
			t.Errorf("Values() not sorted at %d", i)
		}
		if len(v.DocLinks()) == 0 {
			t.Errorf("issue %d has no doc links", v.Id())
		}
		if strings.TrimSpace(string(v.MarkdownMsg())) == "" {
			t.Errorf("issue %d has an empty message", v.Id())
		}
		if Get(v.Id()) != v {
			t.Errorf("Get(%d) did not return the catalog entry", v.Id())
		}
	}
	if Get(0) != nil {
		t.Error("Get(0) should be nil")
	}
}

func TestIssueRender(t *testing.T) {
	t.Parallel()

	out, err := Get(ModuleNotFoundId).Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "Module not found") {
		t.Errorf("Render() missing heading:\n%s", out)
	}
	if !strings.Contains(out, "depmod.8.html") {
		t.Errorf("Render() missing doc link:\n%s", out)
	}
}

func TestDocLinksReturnsCopy(t *testing.T) {
	t.Parallel()

	links := Get(PermissionDeniedId).DocLinks()
	links[0] = "mutated"
	if Get(PermissionDeniedId).DocLinks()[0] == "mutated" {
		t.Error("DocLinks() exposed internal slice")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	notFound := &kmod.ModuleNotFoundError{Name: "nope", Release: "6.8.0"}
	missingTree := &fs.PathError{Op: "open", Path: "/lib/modules/6.8.0/modules.order", Err: syscall.ENOENT}

	tests := []struct {
		name string
		err  error
		want Id
	}{
		{"nil", nil, 0},
		{"not found", notFound, ModuleNotFoundId},
		{"wrapped not found", fmt.Errorf("insert dependency x: %w", notFound), ModuleNotFoundId},
		{"unsupported", kmod.ErrUnsupportedPlatform, UnsupportedPlatformId},
		{"busy", syscall.EBUSY, ModuleInUseId},
		{"bad format", syscall.ENOEXEC, InvalidModuleFormatId},
		{"eperm", syscall.EPERM, PermissionDeniedId},
		{"eacces", syscall.EACCES, PermissionDeniedId},
		{"exists", syscall.EEXIST, ModuleAlreadyLoadedId},
		{"missing tree", missingTree, ModuleTreeMissingId},
		{"unknown symbol", syscall.ENOENT, UnknownSymbolId},
		{"unrelated", errors.New("boom"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyRemove(t *testing.T) {
	t.Parallel()

	if got := ClassifyRemove(syscall.ENOENT); got != ModuleNotLoadedId {
		t.Errorf("ClassifyRemove(ENOENT) = %d, want %d", got, ModuleNotLoadedId)
	}
	if got := ClassifyRemove(syscall.EWOULDBLOCK); got != 0 {
		t.Errorf("ClassifyRemove(EWOULDBLOCK) = %d, want 0", got)
	}
	if got := ClassifyRemove(fmt.Errorf("remove: %w", syscall.EBUSY)); got != ModuleInUseId {
		t.Errorf("ClassifyRemove(EBUSY) = %d, want %d", got, ModuleInUseId)
	}
}
