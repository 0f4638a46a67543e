// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"context"
	"sync"
)

var systemModprober = sync.OnceValue(func() *Modprober {
	return NewModprober(Options{})
})

// Modprobe loads the named module and its dependencies for the selected
// kernel, using the system module tree.
func Modprobe(name string, params Params, sel Selection) error {
	return systemModprober().Modprobe(context.Background(), name, params, sel)
}

// Rmmod removes the named module from the running kernel.
func Rmmod(name string, flags RemoveFlags) error {
	return DeleteModule(SystemKernel(), name, flags)
}

// Load inserts the module file at path with the given parameters.
func Load(path string, params Params) error {
	return InsertFile(SystemKernel(), path, params)
}

// LoadImage inserts an in-memory module image with the given parameters.
func LoadImage(image []byte, params Params) error {
	return InsertImage(SystemKernel(), image, params)
}
