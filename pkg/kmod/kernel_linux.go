// SPDX-License-Identifier: MPL-2.0

//go:build linux

package kmod

import "golang.org/x/sys/unix"

// sysKernel issues module syscalls through golang.org/x/sys/unix.
type sysKernel struct{}

func (sysKernel) InitModule(image []byte, params string) error {
	return unix.InitModule(image, params)
}

func (sysKernel) FinitModule(fd int, params string, flags int) error {
	return unix.FinitModule(fd, params, flags)
}

func (sysKernel) DeleteModule(name string, flags int) error {
	return unix.DeleteModule(name, flags)
}

func (sysKernel) Release() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}

// bits maps RemoveFlags to delete_module flag bits.
func (f RemoveFlags) bits() int {
	switch f {
	case RemoveForce:
		return unix.O_NONBLOCK | unix.O_TRUNC
	case RemoveNonBlock:
		return unix.O_NONBLOCK
	default:
		return 0
	}
}
