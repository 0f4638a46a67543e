// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ModuleNotFoundId Id = iota + 1
	ModuleTreeMissingId
	PermissionDeniedId
	ModuleInUseId
	ModuleNotLoadedId
	ModuleAlreadyLoadedId
	InvalidModuleFormatId
	UnknownSymbolId
	UnsupportedPlatformId
	ConfigLoadFailedId
	ScriptExecutionFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

The module is not listed in the depmod manifests of the selected kernel
(modules.order, modules.dep, modules.alias or modules.builtin).

## Things you can try:
- Check the spelling; dashes and underscores are interchangeable:
~~~
$ lmod modprobe kvm-intel
~~~

- Make sure the module was built for the selected kernel:
~~~
$ lmod kernels
$ lmod deps <module> --kernel <release>
~~~

- Regenerate the manifests after installing out-of-tree modules:
~~~
$ depmod -a
~~~`,
		docLinks: []HttpLink{"https://man7.org/linux/man-pages/man8/depmod.8.html"},
	}

	moduleTreeMissingIssue = &Issue{
		id: ModuleTreeMissingId,
		mdMsg: `
# No module tree for this kernel!

There is no /lib/modules/<release> directory (or it lacks modules.order)
for the selected kernel release.

## Things you can try:
- List the kernels that have a module tree:
~~~
$ lmod kernels
~~~

- Point lmod at a different module root:
~~~
$ lmod --module-dir /usr/lib/modules modprobe <module>
~~~`,
		docLinks: []HttpLink{"https://man7.org/linux/man-pages/man5/modules.dep.5.html"},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

Loading and unloading kernel modules requires the CAP_SYS_MODULE capability.

## Things you can try:
- Run the command as root:
~~~
$ sudo lmod modprobe <module>
~~~

- Check whether module loading is disabled:
~~~
$ cat /proc/sys/kernel/modules_disabled
~~~

- With Secure Boot or lockdown enabled, unsigned modules are rejected.`,
		docLinks: []HttpLink{"https://man7.org/linux/man-pages/man2/init_module.2.html"},
	}

	moduleInUseIssue = &Issue{
		id: ModuleInUseId,
		mdMsg: `
# Module is in use!

The kernel refused to unload the module because something still holds a
reference to it.

## Things you can try:
- See which modules depend on it:
~~~
$ lmod lsmod
~~~

- Remove the holders first, or remove the whole stack:
~~~
$ lmod modprobe --remove <holder>
~~~

- As a last resort, force the removal (may crash the kernel):
~~~
$ lmod rmmod --force <module>
~~~`,
		docLinks: []HttpLink{"https://man7.org/linux/man-pages/man2/delete_module.2.html"},
	}

	moduleNotLoadedIssue = &Issue{
		id: ModuleNotLoadedId,
		mdMsg: `
# Module is not loaded

The kernel has no module with this name. List the loaded modules with:
~~~
$ lmod lsmod
~~~`,
		docLinks: []HttpLink{"https://man7.org/linux/man-pages/man2/delete_module.2.html"},
	}

	moduleAlreadyLoadedIssue = &Issue{
		id: ModuleAlreadyLoadedId,
		mdMsg: `
# Module already loaded

The kernel already has a module with this name. To reload it with new
parameters, remove it first:
~~~
$ lmod rmmod <module>
$ lmod modprobe <module> <param>=<value>
~~~`,
		docLinks: []HttpLink{"https://man7.org/linux/man-pages/man2/init_module.2.html"},
	}

	invalidModuleFormatIssue = &Issue{
		id: InvalidModuleFormatId,
		mdMsg: `
# Invalid module format!

The kernel rejected the module image. This usually means the module was
built for another kernel version or configuration.

## Things you can try:
- Compare the module's vermagic with the running kernel:
~~~
$ modinfo -F vermagic <module>
$ uname -r
~~~

- Rebuild the module against the running kernel's headers.`,
		docLinks: []HttpLink{"https://man7.org/linux/man-pages/man2/init_module.2.html"},
	}

	unknownSymbolIssue = &Issue{
		id: UnknownSymbolId,
		mdMsg: `
# Unknown symbol in module!

The module references symbols that no loaded module exports. A dependency
is missing or was loaded in the wrong order.

## Things you can try:
- Load by name so dependencies are resolved:
~~~
$ lmod modprobe <module>
~~~

- Inspect the kernel log for the missing symbol:
~~~
$ dmesg | tail
~~~`,
		docLinks: []HttpLink{"https://man7.org/linux/man-pages/man8/modprobe.8.html"},
	}

	unsupportedPlatformIssue = &Issue{
		id: UnsupportedPlatformId,
		mdMsg: `
# Unsupported platform!

Kernel module management is only available on Linux. Commands that only
read manifests (deps, kernels) still work with --module-dir.`,
		docLinks: []HttpLink{"https://man7.org/linux/man-pages/man2/init_module.2.html"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be parsed or failed schema validation.

## Things you can try:
- Show where lmod looks for its configuration:
~~~
$ lmod config path
~~~

- Write a fresh default file:
~~~
$ lmod config init
~~~`,
		docLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	scriptExecutionFailedIssue = &Issue{
		id: ScriptExecutionFailedId,
		mdMsg: `
# Script failed!

A module script exited with a non-zero status. Built-in applets report
their errors prefixed with [lmod]; other commands ran on the host.

## Things you can try:
- Run with verbose logging:
~~~
$ lmod --log-level debug sh <script>
~~~`,
		docLinks: []HttpLink{"https://pkg.go.dev/mvdan.cc/sh/v3/interp"},
	}

	issues = map[Id]*Issue{
		moduleNotFoundIssue.Id():        moduleNotFoundIssue,
		moduleTreeMissingIssue.Id():     moduleTreeMissingIssue,
		permissionDeniedIssue.Id():      permissionDeniedIssue,
		moduleInUseIssue.Id():           moduleInUseIssue,
		moduleNotLoadedIssue.Id():       moduleNotLoadedIssue,
		moduleAlreadyLoadedIssue.Id():   moduleAlreadyLoadedIssue,
		invalidModuleFormatIssue.Id():   invalidModuleFormatIssue,
		unknownSymbolIssue.Id():         unknownSymbolIssue,
		unsupportedPlatformIssue.Id():   unsupportedPlatformIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		scriptExecutionFailedIssue.Id(): scriptExecutionFailedIssue,
	}
)

// Values returns all catalog entries ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
