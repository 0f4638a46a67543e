// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"
	"path/filepath"

	cmd "github.com/invowk/lmod/cmd/lmod"
)

func main() {
	if name := filepath.Base(os.Args[0]); cmd.IsApplet(name) {
		os.Exit(cmd.RunApplet(name, os.Args))
	}
	cmd.Execute()
}
