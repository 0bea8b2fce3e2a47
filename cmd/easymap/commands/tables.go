package commands

import (
	"easymap-backend/lib/textutil"
	"easymap-backend/lib/towninfo"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(countiesCmd)
	rootCmd.AddCommand(townsCmd)
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func renderCodeTable(out io.Writer, codes *towninfo.CodeTable) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Code", "Name"})
	for _, code := range codes.Codes() {
		name, _ := codes.Code2Name(code)
		t.AppendRow(table.Row{code, name})
	}
	t.Render()
}

var countiesCmd = &cobra.Command{
	Use:   "counties",
	Short: "Lists the county code table.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := newRepository()
		if err != nil {
			return err
		}
		counties, err := repo.Counties(cmd.Context())
		if err != nil {
			return err
		}
		if counties == nil {
			return fmt.Errorf("the registry has no counties")
		}
		renderCodeTable(cmd.OutOrStdout(), counties)
		return nil
	},
}

// countyCode accepts a county code or a county name, names are compared
// in their normalized form.
func countyCode(cmd *cobra.Command, repo *towninfo.Repository, county string) (string, error) {
	counties, err := repo.Counties(cmd.Context())
	if err != nil {
		return "", err
	}
	if counties == nil {
		return county, nil
	}
	if _, ok := counties.Code2Name(county); ok {
		return county, nil
	}
	normalized := textutil.NormalizeName(county)
	for name, code := range counties.NameToCode() {
		if textutil.NormalizeName(name) == normalized {
			return code, nil
		}
	}
	return "", fmt.Errorf("unknown county %q", county)
}

var townsCmd = &cobra.Command{
	Use:   "towns <county code|county name>",
	Short: "Lists the town code table of a county.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := newRepository()
		if err != nil {
			return err
		}
		county, err := countyCode(cmd, repo, args[0])
		if err != nil {
			return err
		}
		towns, err := repo.Towns(cmd.Context(), county)
		if err != nil {
			return err
		}
		if towns == nil {
			return fmt.Errorf("no town table for county %q", county)
		}
		renderCodeTable(cmd.OutOrStdout(), towns)
		return nil
	},
}
