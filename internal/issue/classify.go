// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"io/fs"
	"syscall"

	"github.com/invowk/lmod/pkg/kmod"
)

// Classify maps an error from a module load to the catalog entry that
// explains it. It returns 0 when no entry applies.
func Classify(err error) Id {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, kmod.ErrModuleNotFound):
		return ModuleNotFoundId
	case errors.Is(err, kmod.ErrUnsupportedPlatform):
		return UnsupportedPlatformId
	case errors.Is(err, syscall.EBUSY):
		return ModuleInUseId
	case errors.Is(err, syscall.ENOEXEC):
		return InvalidModuleFormatId
	case errors.Is(err, fs.ErrPermission):
		return PermissionDeniedId
	case kmod.IsAlreadyLoaded(err):
		return ModuleAlreadyLoadedId
	case errors.As(err, new(*fs.PathError)) && errors.Is(err, fs.ErrNotExist):
		return ModuleTreeMissingId
	case errors.Is(err, syscall.ENOENT):
		// init_module reports unresolved symbols as ENOENT.
		return UnknownSymbolId
	default:
		return 0
	}
}

// ClassifyRemove maps an error from delete_module to its catalog entry.
func ClassifyRemove(err error) Id {
	if errors.Is(err, syscall.ENOENT) && !errors.As(err, new(*fs.PathError)) {
		return ModuleNotLoadedId
	}
	return Classify(err)
}
