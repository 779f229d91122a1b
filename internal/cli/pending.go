package cli

import (
	"fmt"
	"strings"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/store"
	"github.com/spf13/cobra"
)

var (
	pendingKind  string
	pendingSlug  string
	pendingLimit int
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List records and changes waiting for a curator",
	Long: `Pending lists the curation queue: candidates whose identity was ambiguous,
candidates that ran out of slug choices, scraped changes to verified profiles
and possible duplicates. Nothing in the queue was applied.`,
	Example: `  clicat pending
  clicat pending --kind verified-conflict --slug gh`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()

		items, err := r.ListCuration(background(cmd), store.CurationOpts{
			Kind:  model.CurationKind(pendingKind),
			Slug:  pendingSlug,
			Limit: pendingLimit,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			if items == nil {
				items = []model.CurationItem{}
			}
			return writeJSON(cmd.OutOrStdout(), items)
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing pending.")
			return nil
		}
		tbl := NewTable(cmd.OutOrStdout(), "KIND", "SLUG", "CANDIDATE", "DETAIL", "QUEUED")
		for _, it := range items {
			tbl.Row(string(it.Kind), orDash(it.Slug), it.Candidate, truncate(detail(it), 60), ago(it.CreatedAt))
		}
		return tbl.Flush()
	},
}

func init() {
	pendingCmd.Flags().StringVar(&pendingKind, "kind", "", "filter by kind")
	pendingCmd.Flags().StringVar(&pendingSlug, "slug", "", "filter by slug")
	pendingCmd.Flags().IntVar(&pendingLimit, "limit", 0, "maximum items to show")
	rootCmd.AddCommand(pendingCmd)
}

func detail(it model.CurationItem) string {
	if len(it.Proposed) > 0 {
		parts := make([]string, len(it.Proposed))
		for i, c := range it.Proposed {
			parts[i] = fmt.Sprintf("%s: %q -> %q", c.Field, c.Before, c.After)
		}
		return strings.Join(parts, "; ")
	}
	if len(it.Related) > 0 {
		return it.Reason + " [" + strings.Join(it.Related, ", ") + "]"
	}
	return it.Reason
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
