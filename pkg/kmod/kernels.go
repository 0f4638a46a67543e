// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"cmp"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// InstalledKernels lists the kernel releases with a module tree under root,
// newest first. A release qualifies when its directory holds modules.order.
// Releases that do not parse as versions sort last, lexically.
func InstalledKernels(root string) ([]KernelRelease, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		release KernelRelease
		version *semver.Version
	}

	var found []candidate
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, modulesOrderFile)); err != nil {
			continue
		}
		c := candidate{release: KernelRelease(e.Name())}
		if v, err := semver.NewVersion(e.Name()); err == nil {
			c.version = v
		}
		found = append(found, c)
	}

	sort.SliceStable(found, func(i, j int) bool {
		a, b := found[i], found[j]
		switch {
		case a.version != nil && b.version != nil:
			if c := compareReleases(a.version, b.version); c != 0 {
				return c > 0
			}
			return a.release > b.release
		case a.version != nil:
			return true
		case b.version != nil:
			return false
		default:
			return a.release < b.release
		}
	})

	releases := make([]KernelRelease, 0, len(found))
	for _, c := range found {
		releases = append(releases, c.release)
	}
	return releases, nil
}

// compareReleases orders two kernel versions. The suffix after
// major.minor.patch is split on '.' and '-' and compared field by field,
// numerically where both fields are numbers, so 6.8.0-100-generic is newer
// than 6.8.0-9-generic. A release without a suffix is newer than one with.
func compareReleases(a, b *semver.Version) int {
	if c := cmp.Compare(a.Major(), b.Major()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Minor(), b.Minor()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Patch(), b.Patch()); c != 0 {
		return c
	}

	pa, pb := a.Prerelease(), b.Prerelease()
	switch {
	case pa == pb:
		return 0
	case pa == "":
		return 1
	case pb == "":
		return -1
	}
	return compareSuffix(pa, pb)
}

func compareSuffix(a, b string) int {
	fa, fb := suffixFields(a), suffixFields(b)
	for i := 0; i < len(fa) && i < len(fb); i++ {
		na, errA := strconv.ParseUint(fa[i], 10, 64)
		nb, errB := strconv.ParseUint(fb[i], 10, 64)
		var c int
		switch {
		case errA == nil && errB == nil:
			c = cmp.Compare(na, nb)
		case errA == nil:
			c = -1
		case errB == nil:
			c = 1
		default:
			c = strings.Compare(fa[i], fb[i])
		}
		if c != 0 {
			return c
		}
	}
	return cmp.Compare(len(fa), len(fb))
}

// suffixFields splits "18-cloud-amd64" into [18 cloud amd 64].
func suffixFields(s string) []string {
	var fields []string
	start := -1
	for i := 0; i <= len(s); i++ {
		if start >= 0 && (i == len(s) || s[i] == '.' || s[i] == '-' || isDigit(s[i]) != isDigit(s[start])) {
			fields = append(fields, s[start:i])
			start = -1
		}
		if i < len(s) && start < 0 && s[i] != '.' && s[i] != '-' {
			start = i
		}
	}
	return fields
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
