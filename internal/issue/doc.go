// SPDX-License-Identifier: MPL-2.0

// Package issue holds the catalog of user-facing problems lmod knows how to
// explain, plus ActionableError for attaching operation context and
// remediation hints to errors returned by pkg/kmod.
package issue
