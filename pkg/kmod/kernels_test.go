// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestInstalledKernels(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, rel := range []string{"5.15.0-91-generic", "6.8.0-45-generic", "6.1.0", "custom_build", "4.19.0"} {
		writeTree(t, root, rel, moduleTree{order: []string{"kernel/a.ko"}})
	}
	// A directory without modules.order is not a usable module tree.
	if err := os.MkdirAll(filepath.Join(root, "6.9.0-partial"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "README"), []byte("not a kernel"))

	got, err := InstalledKernels(root)
	if err != nil {
		t.Fatalf("InstalledKernels() error: %v", err)
	}
	want := []KernelRelease{"6.8.0-45-generic", "6.1.0", "5.15.0-91-generic", "4.19.0", "custom_build"}
	if !slices.Equal(got, want) {
		t.Errorf("InstalledKernels() = %v, want %v", got, want)
	}
}

func TestInstalledKernels_SameBaseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		releases []string
		want     []KernelRelease
	}{
		{
			name:     "numeric abi",
			releases: []string{"6.8.0-45-generic", "6.8.0-100-generic", "6.8.0-9-generic"},
			want:     []KernelRelease{"6.8.0-100-generic", "6.8.0-45-generic", "6.8.0-9-generic"},
		},
		{
			name:     "debian style",
			releases: []string{"6.1.0-9-amd64", "6.1.0-18-amd64", "6.1.0-18-cloud-amd64"},
			want:     []KernelRelease{"6.1.0-18-cloud-amd64", "6.1.0-18-amd64", "6.1.0-9-amd64"},
		},
		{
			name:     "release candidates",
			releases: []string{"6.9.0-rc2", "6.9.0", "6.9.0-rc10"},
			want:     []KernelRelease{"6.9.0", "6.9.0-rc10", "6.9.0-rc2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			for _, rel := range tt.releases {
				writeTree(t, root, rel, moduleTree{order: []string{"kernel/a.ko"}})
			}
			got, err := InstalledKernels(root)
			if err != nil {
				t.Fatalf("InstalledKernels() error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("InstalledKernels() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSuffixFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"45-generic", []string{"45", "generic"}},
		{"18-cloud-amd64", []string{"18", "cloud", "amd", "64"}},
		{"rc10", []string{"rc", "10"}},
		{"1.el9_4.x86_64", []string{"1", "el", "9", "_", "4", "x", "86", "_", "64"}},
	}

	for _, tt := range tests {
		if got := suffixFields(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("suffixFields(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInstalledKernels_MissingRoot(t *testing.T) {
	t.Parallel()

	if _, err := InstalledKernels(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("InstalledKernels() on a missing root should fail")
	}
}
