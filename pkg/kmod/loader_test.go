// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestInsertFile_Compressed(t *testing.T) {
	t.Parallel()

	for _, suffix := range []string{".ko", ".ko.gz", ".ko.xz", ".ko.zst"} {
		t.Run(suffix, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "dummy"+suffix)
			writeFile(t, path, compress(t, []byte("dummy\n"), compressionOf(path)))

			k := newFakeKernel(testRelease)
			if err := InsertFile(k, path, "answer=42"); err != nil {
				t.Fatalf("InsertFile() error: %v", err)
			}
			if len(k.calls) != 1 {
				t.Fatalf("expected one syscall, got %v", k.calls)
			}
			if c := k.calls[0]; c.op != "init" || c.name != "dummy" || c.params != "answer=42" {
				t.Errorf("unexpected call %+v", c)
			}
		})
	}
}

func TestInsertFile_Missing(t *testing.T) {
	t.Parallel()

	err := InsertFile(newFakeKernel(testRelease), filepath.Join(t.TempDir(), "nope.ko"), "")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("InsertFile(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestInsertFile_CorruptCompressed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.ko.zst")
	writeFile(t, path, []byte("definitely not zstd"))

	k := newFakeKernel(testRelease)
	if err := InsertFile(k, path, ""); err == nil {
		t.Fatal("InsertFile() should fail on a corrupt zstd stream")
	}
	if len(k.calls) != 0 {
		t.Errorf("no syscall expected for a corrupt image, got %v", k.calls)
	}
}

func TestInsertImage_Empty(t *testing.T) {
	t.Parallel()

	if err := InsertImage(newFakeKernel(testRelease), nil, ""); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("InsertImage(nil) error = %v, want ErrEmptyImage", err)
	}
}

func TestCompressionOf(t *testing.T) {
	t.Parallel()

	tests := map[string]compression{
		"a.ko":     compressionNone,
		"a.ko.gz":  compressionGzip,
		"a.ko.xz":  compressionXZ,
		"a.ko.zst": compressionZstd,
	}
	for in, want := range tests {
		if got := compressionOf(in); got != want {
			t.Errorf("compressionOf(%q) = %s, want %s", in, got, want)
		}
	}
}
