// SPDX-License-Identifier: MPL-2.0

// Package applet provides busybox-style commands that run inside lmod's
// embedded shell or directly when the binary is invoked under an applet name
// (e.g. a "modprobe" symlink to lmod).
//
// # Applets
//
// The module applets drive a *kmod.Modprober:
//
//	modprobe [-n] [-q] [-r] [-S release] name [param=value...]
//	rmmod [-f] [-w] name...
//	insmod path [param=value...]
//	lsmod
//
// cat and ls wrap u-root's pkg/core implementations so module scripts can
// inspect /proc and /sys without host binaries.
//
// # Error Format
//
// Applet errors are prefixed with "[lmod] <applet>:" so they can be told
// apart from host command failures in script output:
//
//	[lmod] rmmod: snd_hda_intel: device or resource busy
//
// # POSIX Combined Short Flags
//
// Registry.Run splits combined short flags ("-nq" into "-n -q") with
// unixflag.ArgsToGoArgs before dispatching to applets that parse with
// flag.FlagSet. The u-root wrappers do this themselves and are skipped.
package applet
