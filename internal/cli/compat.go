package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/score"
	"github.com/spf13/cobra"
)

var compatCmd = &cobra.Command{
	Use:   "compat SLUG [AGENT]",
	Short: "Show how reliably agents can drive a tool",
	Long: `Compat lists the compatibility records of a profile, or the record for one
agent. Records not verified within stale_after (default 30d) are shown as
"unknown" regardless of their last computed status.`,
	Example: `  clicat compat gh
  clicat compat gh codex --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()
		ctx := background(cmd)
		slug := args[0]

		var recs []model.CompatibilityRecord
		if len(args) == 2 {
			rec, err := r.GetCompatibility(ctx, slug, args[1])
			if err != nil {
				return notFound(err, "compatibility record", slug+"/"+args[1])
			}
			recs = append(recs, *rec)
		} else {
			if _, err := r.GetProfile(ctx, slug); err != nil {
				return notFound(err, "profile", slug)
			}
			recs, err = r.ListCompatibility(ctx, slug)
			if err != nil {
				return err
			}
		}

		viewCompat(recs)

		if jsonOutput {
			if len(args) == 2 {
				return writeJSON(cmd.OutOrStdout(), recs[0])
			}
			if recs == nil {
				recs = []model.CompatibilityRecord{}
			}
			return writeJSON(cmd.OutOrStdout(), recs)
		}
		if len(recs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No compatibility data for %s.\n", slug)
			return nil
		}
		tbl := NewTable(cmd.OutOrStdout(), "AGENT", "STATUS", "SUCCESS", "SAMPLES", "LAST VERIFIED")
		for _, rec := range recs {
			tbl.Row(rec.Agent, tbl.Compat(rec.Status),
				strconv.FormatFloat(rec.SuccessRate*100, 'f', 1, 64)+"%",
				count(int64(rec.Samples)), ago(rec.LastVerified))
		}
		return tbl.Flush()
	},
}

// viewCompat downgrades records older than stale_after to unknown.
func viewCompat(recs []model.CompatibilityRecord) {
	now, stale := time.Now(), cfg.Staleness()
	for i := range recs {
		recs[i] = score.View(recs[i], now, stale)
	}
}

func init() {
	rootCmd.AddCommand(compatCmd)
}
