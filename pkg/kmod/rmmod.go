// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"context"
	"errors"
	"fmt"
)

// ErrBuiltinModule is returned when asked to remove a module that is
// compiled into the kernel.
var ErrBuiltinModule = errors.New("module is built in")

// DeleteModule unloads the named module through delete_module.
// The errno reported by the kernel is returned unchanged.
func DeleteModule(k Kernel, name string, flags RemoveFlags) error {
	mod := ModuleName(name).Normalize()
	if valid, errs := mod.IsValid(); !valid {
		return errs[0]
	}
	if valid, errs := flags.IsValid(); !valid {
		return errs[0]
	}
	return k.DeleteModule(mod.String(), flags.bits())
}

// Delete unloads a single module (rmmod).
func (m *Modprober) Delete(ctx context.Context, name string, flags RemoveFlags) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.dryRun {
		m.logger.Info("would remove module", "module", name, "flags", flags)
		return nil
	}
	m.logger.Debug("removing module", "module", name, "flags", flags)
	return DeleteModule(m.kernel, name, flags)
}

// Remove unloads name and then every dependency left unused (modprobe -r).
//
// Dependencies are visited in modules.dep order and only removed while
// their refcount in the loaded-module list is zero; ones still in use are
// left in place.
func (m *Modprober) Remove(ctx context.Context, name string, sel Selection) error {
	plan, err := m.Resolve(ctx, name, sel)
	if err != nil {
		return err
	}
	if plan.Builtin {
		return fmt.Errorf("%w: %s", ErrBuiltinModule, plan.Target)
	}

	if err := m.Delete(ctx, plan.Target.String(), RemoveNone); err != nil {
		return err
	}

	for i := len(plan.Steps) - 2; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		dep := plan.Steps[i].Name
		if !m.dryRun {
			mods, err := ReadLoadedModules(m.procModules)
			if err != nil {
				return err
			}
			loaded, ok := FindLoaded(mods, dep.String())
			if !ok {
				continue
			}
			if loaded.InUse() {
				m.logger.Debug("dependency still in use", "module", dep, "refcount", loaded.RefCount)
				continue
			}
		}
		if err := m.Delete(ctx, dep.String(), RemoveNone); err != nil {
			return fmt.Errorf("remove dependency %s: %w", dep, err)
		}
	}
	return nil
}
