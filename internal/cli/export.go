package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/store"
	"github.com/spf13/cobra"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export catalog profiles",
	Long: `Export dumps every profile to stdout as JSON lines (default), CSV, or curated
YAML. Curated output carries only curator-owned fields and active commands,
so it can be edited and fed back through "clicat curate".`,
	Example: `  clicat export > catalog.jsonl
  clicat export --format csv > catalog.csv
  clicat export --format curated > curated.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openReader()
		if err != nil {
			return err
		}
		defer closeFn()

		profiles, err := r.ListProfiles(background(cmd), store.ListOpts{})
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}

		w := cmd.OutOrStdout()
		switch exportFormat {
		case "jsonl", "json":
			return exportJSONL(w, profiles)
		case "csv":
			return exportCSV(w, profiles)
		case "curated", "yaml":
			return exportCurated(w, profiles)
		default:
			return fmt.Errorf("unsupported --format %q (use jsonl, csv or curated)", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "jsonl", "output format: jsonl, csv or curated")
	rootCmd.AddCommand(exportCmd)
}

func exportJSONL(w io.Writer, profiles []model.Profile) error {
	enc := json.NewEncoder(w)
	for _, p := range profiles {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

func exportCSV(w io.Writer, profiles []model.Profile) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"slug", "name", "publisher", "verification", "binaries", "packages",
		"tags", "repository", "popularity", "trust", "downloads", "version"})
	for _, p := range profiles {
		cw.Write([]string{
			p.Slug, p.Name, p.Publisher, string(p.Verification),
			strings.Join(p.Binaries, " "), strings.Join(p.Packages, " "), strings.Join(p.Tags, " "),
			p.Repository,
			strconv.FormatFloat(p.Popularity, 'f', 2, 64),
			strconv.FormatFloat(p.Trust, 'f', 2, 64),
			strconv.FormatInt(p.Downloads, 10),
			strconv.Itoa(p.Version),
		})
	}
	cw.Flush()
	return cw.Error()
}

func exportCurated(w io.Writer, profiles []model.Profile) error {
	out := make([]model.Profile, len(profiles))
	for i, p := range profiles {
		c := p.Clone()
		c.Commands = c.ActiveCommands()
		c.Compatibility = nil
		c.Popularity, c.Trust, c.Downloads = 0, 0, 0
		out[i] = c
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
