// SPDX-License-Identifier: MPL-2.0

// Package config loads lmod settings with Viper, using CUE as the file format.
//
// The file lives at $XDG_CONFIG_HOME/lmod/config.cue (~/.config/lmod/config.cue
// when XDG_CONFIG_HOME is unset), with ./config.cue as a fallback. It is
// validated against the embedded config_schema.cue before being merged over
// the defaults. LMOD_* environment variables override file values.
package config
