// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/invowk/lmod/pkg/kmod"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

const (
	outputTable outputFormat = "table"
	outputJSON  outputFormat = "json"
	outputTOML  outputFormat = "toml"
	outputText  outputFormat = "text"
)

// ErrInvalidOutputFormat is the sentinel error wrapped by InvalidOutputFormatError.
var ErrInvalidOutputFormat = errors.New("invalid output format")

type (
	// outputFormat selects how listing commands render their results.
	outputFormat string

	// InvalidOutputFormatError is returned when --output names an
	// unsupported format.
	InvalidOutputFormatError struct {
		Value   string
		Allowed []outputFormat
	}

	// lsmodDocument is the top-level TOML document for lsmod output.
	lsmodDocument struct {
		Modules []kmod.LoadedModule `toml:"module"`
	}
)

func (e *InvalidOutputFormatError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, f := range e.Allowed {
		allowed[i] = string(f)
	}
	return fmt.Sprintf("invalid output format %q (valid: %s)", e.Value, strings.Join(allowed, ", "))
}

func (e *InvalidOutputFormatError) Unwrap() error { return ErrInvalidOutputFormat }

// parseOutputFormat validates s against the formats a command supports.
func parseOutputFormat(s string, allowed ...outputFormat) (outputFormat, error) {
	for _, f := range allowed {
		if string(f) == s {
			return f, nil
		}
	}
	return "", &InvalidOutputFormatError{Value: s, Allowed: allowed}
}

// newLsmodCommand creates the `lmod lsmod` command.
func newLsmodCommand(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "lsmod",
		Short: "List loaded modules",
		Long:  `List the modules currently loaded, as read from /proc/modules (see proc_modules).`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output, outputTable, outputJSON, outputTOML)
			if err != nil {
				return err
			}

			mods, err := kmod.ReadLoadedModules(app.modprober.ProcModules())
			if err != nil {
				return app.fail(cmd, err, nil)
			}
			return writeLoadedModules(app.stdout, mods, format)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(outputTable), "output format: table, json or toml")

	return cmd
}

func writeLoadedModules(w io.Writer, mods []kmod.LoadedModule, format outputFormat) error {
	switch format {
	case outputJSON:
		if mods == nil {
			mods = []kmod.LoadedModule{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(mods)
	case outputTOML:
		return toml.NewEncoder(w).Encode(lsmodDocument{Modules: mods})
	default:
		_, err := fmt.Fprintln(w, lsmodTable(mods).Render())
		return err
	}
}

func lsmodTable(mods []kmod.LoadedModule) *table.Table {
	rows := make([][]string, 0, len(mods))
	for _, mod := range mods {
		holders := make([]string, len(mod.Holders))
		for i, h := range mod.Holders {
			holders[i] = h.String()
		}
		rows = append(rows, []string{
			mod.Name.String(),
			strconv.FormatUint(mod.Size, 10),
			strconv.Itoa(mod.RefCount),
			strings.Join(holders, ","),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers("Module", "Size", "Used", "By").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
}
