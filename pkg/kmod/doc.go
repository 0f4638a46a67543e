// SPDX-License-Identifier: MPL-2.0

// Package kmod loads and unloads Linux kernel modules.
//
// The package is a direct binding over the kernel's module syscalls
// (init_module, finit_module and delete_module). Errors returned by the
// kernel are propagated unchanged: callers can match them with errors.Is
// against the original errno (for example unix.EEXIST or unix.EBUSY).
//
// # Loading
//
// Modprobe resolves a module by name against the depmod manifests of the
// selected kernel release (modules.order, modules.dep, modules.alias and
// modules.builtin under /lib/modules/<release>), loads its dependencies
// deepest first and finally loads the module itself:
//
//	if err := kmod.Modprobe("kvm", "", kmod.CurrentKernel()); err != nil {
//		return err
//	}
//
// Load inserts a single module file by path (insmod), and LoadImage inserts
// an in-memory module image. Files compressed with gzip, xz or zstd are
// decompressed in userspace before insertion.
//
// # Unloading
//
// Rmmod removes a module from the running kernel:
//
//	err := kmod.Rmmod("kvm", kmod.RemoveForce)
//
// # Testing
//
// All operations go through the Kernel interface. Modprober accepts a
// custom Kernel and module root so that resolution can be exercised
// without privileges.
package kmod
