package cli

import (
	"fmt"

	"github.com/scbrown/clicat/internal/score"
	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute popularity and trust scores for the whole catalog",
	Long: `Score recomputes every profile's popularity (from its last known download
count) and trust (from popularity, verification status, install recipes and
repository presence). New values are smoothed against the previous ones, so
repeated runs converge rather than jump.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := score.New(s, logger).RefreshAll(background(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d profiles scored\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
