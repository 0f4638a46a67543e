// SPDX-License-Identifier: MPL-2.0

package kmod

import "errors"

// ErrUnsupportedPlatform is returned by the system kernel on platforms
// without Linux module syscalls.
var ErrUnsupportedPlatform = errors.New("kernel modules are not supported on this platform")

// Kernel is the syscall surface used for module management. The system
// implementation returns raw errno values so callers see the kernel's
// error unchanged.
type Kernel interface {
	// InitModule loads a module from an in-memory ELF image.
	InitModule(image []byte, params string) error
	// FinitModule loads a module from an open file descriptor.
	FinitModule(fd int, params string, flags int) error
	// DeleteModule unloads the named module.
	DeleteModule(name string, flags int) error
	// Release returns the running kernel's release (uname -r).
	Release() (string, error)
}

// SystemKernel returns the Kernel backed by the host's syscalls.
func SystemKernel() Kernel {
	return sysKernel{}
}
