// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrEmptyImage is returned when asked to load a zero-length module image.
var ErrEmptyImage = errors.New("empty module image")

// InsertImage loads an in-memory module image through init_module.
func InsertImage(k Kernel, image []byte, params Params) error {
	if len(image) == 0 {
		return ErrEmptyImage
	}
	return k.InitModule(image, params.String())
}

// InsertFile loads the module file at path.
//
// Uncompressed files are handed to finit_module. Kernels without
// finit_module (ENOSYS) fall back to init_module with the file contents.
// Compressed files are always decompressed in userspace.
func InsertFile(k Kernel, path string, params Params) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	comp := compressionOf(path)
	if comp != compressionNone {
		image, err := decompress(f, comp)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return InsertImage(k, image, params)
	}

	err = k.FinitModule(int(f.Fd()), params.String(), 0)
	if !errors.Is(err, errors.ErrUnsupported) {
		return err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	image, err := decompress(f, compressionNone)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return InsertImage(k, image, params)
}
