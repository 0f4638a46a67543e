// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	// RemoveNone unloads a module without any flags.
	RemoveNone RemoveFlags = iota
	// RemoveForce forces module unloading (O_NONBLOCK|O_TRUNC).
	RemoveForce
	// RemoveNonBlock fails instead of waiting when the module is in use (O_NONBLOCK).
	RemoveNonBlock
)

var (
	// ErrInvalidModuleName is returned when a ModuleName value is not usable.
	ErrInvalidModuleName = errors.New("invalid module name")
	// ErrInvalidKernelRelease is returned when a KernelRelease value is not usable.
	ErrInvalidKernelRelease = errors.New("invalid kernel release")
	// ErrInvalidRemoveFlags is returned when a RemoveFlags value is not recognized.
	ErrInvalidRemoveFlags = errors.New("invalid remove flags")
)

type (
	// ModuleName is the name of a kernel module as the kernel reports it
	// (for example "kvm_intel"). Use Normalize to fold dashes into underscores.
	ModuleName string

	// InvalidModuleNameError is returned when a ModuleName is empty or contains
	// whitespace or path separators. It wraps ErrInvalidModuleName.
	InvalidModuleNameError struct {
		Value ModuleName
	}

	// KernelRelease is a kernel release string as printed by `uname -r`.
	KernelRelease string

	// InvalidKernelReleaseError is returned when a KernelRelease cannot name a
	// directory under the module root. It wraps ErrInvalidKernelRelease.
	InvalidKernelReleaseError struct {
		Value KernelRelease
	}

	// Params is a module parameter string passed verbatim to the kernel,
	// e.g. "nested=1 enable_apicv=0".
	Params string

	// RemoveFlags selects how delete_module treats a module that is in use.
	RemoveFlags int

	// InvalidRemoveFlagsError is returned for out-of-range RemoveFlags values.
	InvalidRemoveFlagsError struct {
		Value RemoveFlags
	}

	// Selection chooses the kernel release whose module tree is searched.
	// The zero value selects the running kernel.
	Selection struct {
		release KernelRelease
	}
)

// CurrentKernel selects the running kernel.
func CurrentKernel() Selection { return Selection{} }

// OtherKernel selects a kernel release explicitly.
func OtherKernel(release string) Selection {
	return Selection{release: KernelRelease(release)}
}

// IsCurrent reports whether the selection refers to the running kernel.
func (s Selection) IsCurrent() bool { return s.release == "" }

// Resolve returns the release named by the selection, asking k for the
// running kernel's release when the selection is current.
func (s Selection) Resolve(k Kernel) (KernelRelease, error) {
	if !s.IsCurrent() {
		if valid, errs := s.release.IsValid(); !valid {
			return "", errs[0]
		}
		return s.release, nil
	}
	rel, err := k.Release()
	if err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	return KernelRelease(rel), nil
}

// String returns "current" or the explicit release.
func (s Selection) String() string {
	if s.IsCurrent() {
		return "current"
	}
	return string(s.release)
}

// String returns the string representation of the ModuleName.
func (n ModuleName) String() string { return string(n) }

// Normalize folds dashes into underscores, the form used by the kernel.
func (n ModuleName) Normalize() ModuleName {
	return ModuleName(strings.ReplaceAll(string(n), "-", "_"))
}

// IsValid returns whether the ModuleName can be passed to the kernel.
func (n ModuleName) IsValid() (bool, []error) {
	if n == "" || strings.ContainsRune(string(n), '/') || strings.IndexFunc(string(n), unicode.IsSpace) >= 0 {
		return false, []error{&InvalidModuleNameError{Value: n}}
	}
	return true, nil
}

// Error implements the error interface for InvalidModuleNameError.
func (e *InvalidModuleNameError) Error() string {
	return fmt.Sprintf("invalid module name %q: must be non-empty without whitespace or '/'", e.Value)
}

// Unwrap returns ErrInvalidModuleName for errors.Is() compatibility.
func (e *InvalidModuleNameError) Unwrap() error { return ErrInvalidModuleName }

// String returns the string representation of the KernelRelease.
func (r KernelRelease) String() string { return string(r) }

// IsValid returns whether the KernelRelease names a single directory.
func (r KernelRelease) IsValid() (bool, []error) {
	s := string(r)
	if strings.TrimSpace(s) == "" || s == "." || s == ".." || strings.ContainsRune(s, '/') {
		return false, []error{&InvalidKernelReleaseError{Value: r}}
	}
	return true, nil
}

// Error implements the error interface for InvalidKernelReleaseError.
func (e *InvalidKernelReleaseError) Error() string {
	return fmt.Sprintf("invalid kernel release %q", e.Value)
}

// Unwrap returns ErrInvalidKernelRelease for errors.Is() compatibility.
func (e *InvalidKernelReleaseError) Unwrap() error { return ErrInvalidKernelRelease }

// String returns the parameter string.
func (p Params) String() string { return string(p) }

// ParseParams joins command-line style parameter arguments into a single
// parameter string. Values containing spaces are double-quoted, which the
// kernel's parameter parser understands.
func ParseParams(args []string) Params {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "" {
			continue
		}
		key, value, found := strings.Cut(arg, "=")
		if found && strings.ContainsAny(value, " \t") && !strings.HasPrefix(value, `"`) {
			arg = key + `="` + value + `"`
		}
		parts = append(parts, arg)
	}
	return Params(strings.Join(parts, " "))
}

// String returns the flag name.
func (f RemoveFlags) String() string {
	switch f {
	case RemoveNone:
		return "none"
	case RemoveForce:
		return "force"
	case RemoveNonBlock:
		return "nonblock"
	default:
		return fmt.Sprintf("RemoveFlags(%d)", int(f))
	}
}

// IsValid returns whether the RemoveFlags value is one of the defined flags.
func (f RemoveFlags) IsValid() (bool, []error) {
	switch f {
	case RemoveNone, RemoveForce, RemoveNonBlock:
		return true, nil
	default:
		return false, []error{&InvalidRemoveFlagsError{Value: f}}
	}
}

// Error implements the error interface for InvalidRemoveFlagsError.
func (e *InvalidRemoveFlagsError) Error() string {
	return fmt.Sprintf("invalid remove flags %d (valid: none, force, nonblock)", int(e.Value))
}

// Unwrap returns ErrInvalidRemoveFlags for errors.Is() compatibility.
func (e *InvalidRemoveFlagsError) Unwrap() error { return ErrInvalidRemoveFlags }
