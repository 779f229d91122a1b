package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/store"
	"github.com/spf13/cobra"
)

// catalogStats summarizes the catalog.
type catalogStats struct {
	Profiles       int                        `json:"profiles"`
	Versions       int                        `json:"versions"`
	ByVerification map[string]int             `json:"by_verification"`
	Pending        map[model.CurationKind]int `json:"pending"`
	SharedBinaries []sharedBinary             `json:"shared_binaries,omitempty"`
}

// sharedBinary is a binary name provided by more than one profile.
type sharedBinary struct {
	Binary string   `json:"binary"`
	Slugs  []string `json:"slugs"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show summary statistics about the catalog",
	Long: `Display catalog totals: profiles, listing versions, profiles per
verification status, curation items waiting per kind, and binary names
shared by several profiles.`,
	Example: `  clicat stats
  clicat stats --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()
		ctx := background(cmd)

		profiles, err := r.ListProfiles(ctx, store.ListOpts{})
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		pending, err := r.ListCuration(ctx, store.CurationOpts{})
		if err != nil {
			return fmt.Errorf("list curation: %w", err)
		}
		st := buildStats(profiles, pending)
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), st)
		}
		return printStats(cmd.OutOrStdout(), st)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func buildStats(profiles []model.Profile, pending []model.CurationItem) catalogStats {
	st := catalogStats{
		Profiles:       len(profiles),
		ByVerification: make(map[string]int),
		Pending:        make(map[model.CurationKind]int),
	}
	byBin := make(map[string][]string)
	for _, p := range profiles {
		st.Versions += p.Version
		st.ByVerification[string(p.Verification)]++
		for _, b := range p.Binaries {
			byBin[b] = append(byBin[b], p.Slug)
		}
	}
	for _, it := range pending {
		st.Pending[it.Kind]++
	}
	for b, slugs := range byBin {
		if len(slugs) > 1 {
			sort.Strings(slugs)
			st.SharedBinaries = append(st.SharedBinaries, sharedBinary{Binary: b, Slugs: slugs})
		}
	}
	sort.Slice(st.SharedBinaries, func(i, j int) bool {
		a, b := st.SharedBinaries[i], st.SharedBinaries[j]
		if len(a.Slugs) != len(b.Slugs) {
			return len(a.Slugs) > len(b.Slugs)
		}
		return a.Binary < b.Binary
	})
	return st
}

func printStats(w io.Writer, st catalogStats) error {
	fmt.Fprintf(w, "Profiles:  %s\n", count(int64(st.Profiles)))
	fmt.Fprintf(w, "Versions:  %s\n", count(int64(st.Versions)))
	if st.Profiles == 0 {
		return nil
	}

	tbl := NewTable(w)
	fmt.Fprintln(w, "\nVerification:")
	for _, s := range []model.VerificationStatus{model.Verified, model.CommunityCurated, model.Unverified} {
		tbl.Row("  "+tbl.Verification(s), fmt.Sprint(st.ByVerification[string(s)]))
	}
	if err := tbl.Flush(); err != nil {
		return err
	}

	if len(st.Pending) > 0 {
		fmt.Fprintln(w, "\nPending curation:")
		pt := NewTable(w)
		kinds := make([]string, 0, len(st.Pending))
		for k := range st.Pending {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			pt.Row("  "+k, fmt.Sprint(st.Pending[model.CurationKind(k)]))
		}
		if err := pt.Flush(); err != nil {
			return err
		}
	}

	if len(st.SharedBinaries) > 0 {
		fmt.Fprintln(w, "\nShared binaries:")
		bt := NewTable(w)
		for _, sb := range st.SharedBinaries {
			bt.Row("  "+sb.Binary, fmt.Sprint(sb.Slugs))
		}
		return bt.Flush()
	}
	return nil
}
