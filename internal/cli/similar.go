package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/scbrown/clicat/internal/similarity"
	"github.com/scbrown/clicat/internal/store"
	"github.com/spf13/cobra"
)

var (
	similarThreshold float64
	similarTopN      int
)

// similarCmd ranks catalog slugs by how closely they match a name.
var similarCmd = &cobra.Command{
	Use:   "similar NAME",
	Short: "Find catalog slugs similar to a name",
	Long: `Similar ranks catalog slugs and binary names by string similarity to NAME.
Use it to find the slug of a tool when you only remember roughly what it is
called, or to spot near-duplicate listings.`,
	Example: `  clicat similar ts-node
  clicat similar better_auth --threshold 0.3 --top 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()

		threshold := similarThreshold
		if threshold == 0 {
			threshold = similarity.DefaultThreshold
		}
		known, err := catalogNames(background(cmd), r)
		if err != nil {
			return err
		}
		suggestions := similarity.SuggestN(args[0], known, similarTopN, threshold)

		if jsonOutput {
			if suggestions == nil {
				suggestions = []similarity.Suggestion{}
			}
			return writeJSON(cmd.OutOrStdout(), suggestions)
		}
		writeSimilarTable(cmd.OutOrStdout(), args[0], suggestions)
		return nil
	},
}

func init() {
	similarCmd.Flags().Float64Var(&similarThreshold, "threshold", 0, "minimum similarity score (default 0.5)")
	similarCmd.Flags().IntVar(&similarTopN, "top", similarity.DefaultTopN, "maximum number of suggestions")
	rootCmd.AddCommand(similarCmd)
}

// catalogNames returns every slug plus any binary name that differs from it.
func catalogNames(ctx context.Context, r store.Reader) ([]string, error) {
	profiles, err := r.ListProfiles(ctx, store.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	seen := make(map[string]bool)
	var names []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			names = append(names, s)
		}
	}
	for _, p := range profiles {
		add(p.Slug)
		for _, b := range p.Binaries {
			add(b)
		}
	}
	return names, nil
}

// didYouMean appends the closest slugs to a not-found error.
func didYouMean(ctx context.Context, r store.Reader, name string, err error) error {
	known, lerr := catalogNames(ctx, r)
	if lerr != nil {
		return err
	}
	s := similarity.Suggest(name, known)
	if len(s) == 0 {
		return err
	}
	return fmt.Errorf("%w (did you mean %q?)", err, s[0].Name)
}

func writeSimilarTable(w io.Writer, query string, suggestions []similarity.Suggestion) {
	if len(suggestions) == 0 {
		fmt.Fprintf(w, "No suggestions found for %q\n", query)
		return
	}
	tbl := NewTable(w, "RANK", "NAME", "SCORE")
	for i, s := range suggestions {
		tbl.Row(fmt.Sprintf("%d", i+1), s.Name, fmt.Sprintf("%.2f", s.Score))
	}
	tbl.Flush()
}
