package cli

import (
	"fmt"

	"github.com/scbrown/clicat/internal/chain"
	"github.com/spf13/cobra"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "Work with workflow chains",
}

var chainsCheckCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Report chain steps that reference missing or deleted commands",
	Long: `Check loads workflow chains from FILE (YAML or JSON, one chain or a list)
and verifies that every command a step references exists and is not
soft-deleted in the catalog. Exits 1 when any reference is broken.`,
	Example: `  clicat chains check chains.yaml`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chains, err := readChains(args[0])
		if err != nil {
			return &ExitError{Code: ExitStructural, Err: err}
		}
		r, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()

		broken, err := chain.Check(background(cmd), r, chains, nil)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			if broken == nil {
				broken = []chain.Broken{}
			}
			if err := writeJSON(w, broken); err != nil {
				return err
			}
		} else {
			for _, b := range broken {
				fmt.Fprintln(w, b)
			}
			fmt.Fprintf(w, "%d chains checked, %d broken references\n", len(chains), len(broken))
		}
		if len(broken) > 0 {
			return &ExitError{Code: ExitPartial, Err: fmt.Errorf("%d broken chain references", len(broken))}
		}
		return nil
	},
}

func init() {
	chainsCmd.AddCommand(chainsCheckCmd)
	rootCmd.AddCommand(chainsCmd)
}
