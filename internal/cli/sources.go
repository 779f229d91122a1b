package cli

import (
	"github.com/scbrown/clicat/internal/source"
	"github.com/spf13/cobra"
)

// sourceInfo is the JSON structure for the sources command output.
type sourceInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the input formats ingest understands",
	Example: `  clicat sources
  clicat sources --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := source.Names()
		infos := make([]sourceInfo, 0, len(names))
		for _, name := range names {
			src := source.Get(name)
			infos = append(infos, sourceInfo{Name: src.Name(), Description: src.Description()})
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), infos)
		}
		tbl := NewTable(cmd.OutOrStdout(), "NAME", "DESCRIPTION")
		for _, s := range infos {
			tbl.Row(s.Name, s.Description)
		}
		return tbl.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
