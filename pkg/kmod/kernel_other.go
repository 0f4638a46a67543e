// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package kmod

// sysKernel fails every call with ErrUnsupportedPlatform.
type sysKernel struct{}

func (sysKernel) InitModule([]byte, string) error { return ErrUnsupportedPlatform }

func (sysKernel) FinitModule(int, string, int) error { return ErrUnsupportedPlatform }

func (sysKernel) DeleteModule(string, int) error { return ErrUnsupportedPlatform }

func (sysKernel) Release() (string, error) { return "", ErrUnsupportedPlatform }

// bits maps RemoveFlags to the asm-generic delete_module flag bits.
func (f RemoveFlags) bits() int {
	const (
		oNonBlock = 0o4000
		oTrunc    = 0o1000
	)
	switch f {
	case RemoveForce:
		return oNonBlock | oTrunc
	case RemoveNonBlock:
		return oNonBlock
	default:
		return 0
	}
}
