package cli

import (
	"fmt"
	"strconv"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/store"
	"github.com/spf13/cobra"
)

var (
	listTag      string
	listCategory string
	listLimit    int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog profiles",
	Long:  `List displays catalog profiles ordered by slug, optionally filtered by tag or category.`,
	Example: `  clicat list
  clicat list --tag typescript
  clicat list --category devtools --limit 20 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()

		profiles, err := r.ListProfiles(background(cmd), store.ListOpts{
			Tag:      listTag,
			Category: listCategory,
			Limit:    listLimit,
		})
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}

		if jsonOutput {
			if profiles == nil {
				profiles = []model.Profile{}
			}
			return writeJSON(cmd.OutOrStdout(), profiles)
		}
		if len(profiles) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No profiles found.")
			return nil
		}
		tbl := NewTable(cmd.OutOrStdout(), "SLUG", "BINARY", "PUBLISHER", "STATUS", "POP", "TRUST", "VERSION")
		for _, p := range profiles {
			tbl.Row(p.Slug, p.PrimaryBinary(), truncate(p.Publisher, 24), tbl.Verification(p.Verification),
				strconv.FormatFloat(p.Popularity, 'f', 1, 64), strconv.FormatFloat(p.Trust, 'f', 1, 64),
				"v"+strconv.Itoa(p.Version))
		}
		return tbl.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listTag, "tag", "", "filter by tag")
	listCmd.Flags().StringVar(&listCategory, "category", "", "filter by category")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum number of results")
	rootCmd.AddCommand(listCmd)
}
