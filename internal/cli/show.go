package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/scbrown/clicat/internal/ledger"
	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/store"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show SLUG",
	Short: "Show one profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()

		ctx := background(cmd)
		p, err := r.GetProfile(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return didYouMean(ctx, r, args[0], notFound(err, "profile", args[0]))
		}
		if err != nil {
			return err
		}
		viewCompat(p.Compatibility)
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), p)
		}
		return printProfile(cmd.OutOrStdout(), p)
	},
}

var binaryCmd = &cobra.Command{
	Use:   "binary NAME",
	Short: "List every profile that installs a given binary",
	Long: `Binary lists all profiles exposing NAME. Several unrelated tools may ship
the same binary name (tsx, for example); each keeps its own slug.`,
	Example: `  clicat binary tsx`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()

		profiles, err := r.ListByBinary(background(cmd), args[0])
		if err != nil {
			return err
		}
		for i := range profiles {
			viewCompat(profiles[i].Compatibility)
		}
		if jsonOutput {
			if profiles == nil {
				profiles = []model.Profile{}
			}
			return writeJSON(cmd.OutOrStdout(), profiles)
		}
		if len(profiles) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No profiles provide %q.\n", args[0])
			return nil
		}
		tbl := NewTable(cmd.OutOrStdout(), "SLUG", "PUBLISHER", "STATUS", "TRUST", "DESCRIPTION")
		for _, p := range profiles {
			tbl.Row(p.Slug, p.Publisher, tbl.Verification(p.Verification),
				strconv.FormatFloat(p.Trust, 'f', 1, 64), truncate(p.Description, 50))
		}
		return tbl.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history SLUG",
	Short: "List the listing versions of a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()

		versions, err := r.VersionHistory(background(cmd), args[0])
		if err != nil {
			return notFound(err, "profile", args[0])
		}
		if jsonOutput {
			if versions == nil {
				versions = []model.ListingVersion{}
			}
			return writeJSON(cmd.OutOrStdout(), versions)
		}
		tbl := NewTable(cmd.OutOrStdout(), "VERSION", "WHEN", "SOURCE", "CHANGELOG")
		for _, v := range versions {
			tbl.Row("v"+strconv.Itoa(v.Number), ago(v.Timestamp), string(v.Provenance), v.Changelog)
		}
		return tbl.Flush()
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff SLUG FROM TO",
	Short: "Show the net field changes between two versions",
	Long: `Diff replays the listing versions after FROM up to and including TO and
prints the net change per field. FROM may be 0 to diff from nothing.`,
	Example: `  clicat diff gh 1 4
  clicat diff gh 0 2 --json`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid FROM %q", args[1])
		}
		to, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid TO %q", args[2])
		}

		r, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()

		versions, err := r.VersionHistory(background(cmd), args[0])
		if err != nil {
			return notFound(err, "profile", args[0])
		}
		changes, err := ledger.Diff(versions, from, to)
		if err != nil {
			return err
		}
		if jsonOutput {
			if changes == nil {
				changes = []model.FieldChange{}
			}
			return writeJSON(cmd.OutOrStdout(), changes)
		}
		if len(changes) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No net changes between v%d and v%d.\n", from, to)
			return nil
		}
		w := cmd.OutOrStdout()
		for _, c := range changes {
			fmt.Fprintf(w, "%s\n  - %s\n  + %s\n", c.Field, orNone(c.Before), orNone(c.After))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd, binaryCmd, historyCmd, diffCmd)
}

func printProfile(w io.Writer, p *model.Profile) error {
	tbl := NewTable(w)
	row := func(k, v string) {
		if v != "" {
			tbl.Row(tbl.Bold(k+":"), v)
		}
	}
	row("Slug", p.Slug)
	row("Name", p.Name)
	row("Publisher", p.Publisher)
	row("Status", tbl.Verification(p.Verification))
	row("Version", "v"+strconv.Itoa(p.Version))
	row("Description", p.Description)
	row("Binaries", strings.Join(p.Binaries, ", "))
	row("Packages", strings.Join(p.Packages, ", "))
	row("Categories", strings.Join(p.Categories, ", "))
	row("Tags", strings.Join(p.Tags, ", "))
	row("Repository", p.Repository)
	row("Website", p.Website)
	row("Docs", p.Docs)
	row("Latest", p.LatestVersion)
	row("Popularity", strconv.FormatFloat(p.Popularity, 'f', 2, 64))
	row("Trust", strconv.FormatFloat(p.Trust, 'f', 2, 64))
	if p.Downloads > 0 {
		row("Downloads", count(p.Downloads))
	}
	row("Updated", ago(p.UpdatedAt))
	if err := tbl.Flush(); err != nil {
		return err
	}

	if len(p.Install) > 0 {
		fmt.Fprintln(w, "\nInstall:")
		it := NewTable(w)
		for _, r := range p.Install {
			it.Row("  "+r.OS, r.PackageManager, r.Command)
		}
		if err := it.Flush(); err != nil {
			return err
		}
	}
	if p.Auth != nil {
		fmt.Fprintf(w, "\nAuth: %s\n", p.Auth.Type)
		for _, s := range p.Auth.Steps {
			fmt.Fprintf(w, "  %d. %s\n", s.Order, s.Instruction)
		}
	}
	if cmds := p.ActiveCommands(); len(cmds) > 0 {
		fmt.Fprintln(w, "\nCommands:")
		ct := NewTable(w)
		for _, c := range cmds {
			ct.Row("  "+c.ID, c.Command, truncate(c.Description, 50))
		}
		if err := ct.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func notFound(err error, kind, name string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %q not found", kind, name)
	}
	return err
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
