package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/scbrown/clicat/internal/chain"
	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/pipeline"
	"github.com/scbrown/clicat/internal/score"
	"github.com/scbrown/clicat/internal/source"
	"github.com/spf13/cobra"
)

var (
	ingestInput   string
	ingestFormat  string
	ingestDryRun  bool
	ingestOnly    []string
	ingestChains  string
	ingestWorkers int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest scraped records or curated profiles into the catalog",
	Long: `Ingest reads a batch of records, resolves each one to an existing or new
slug, merges it into the profile and appends a listing version for every
profile that actually changed. Re-ingesting the same input writes nothing.

Formats: json (array), jsonl (one record per line), yaml (list of records)
and curated (authoritative YAML profiles). The format is detected from the
file extension unless --format is given; use --input - to read stdin.

Records that cannot be resolved safely (ambiguous identity, exhausted slug
choices, changes to verified profiles) are queued for curation instead of
guessed at; see "clicat pending".

Exit status is 0 when everything applied, 1 when some records were
rejected, queued or failed, and 2 when the input could not be read at all.`,
	Example: `  clicat ingest --input scrape.jsonl
  clicat ingest --input scrape.json --dry-run
  clicat ingest --input scrape.jsonl --only tsx,gh --workers 4
  cat scrape.jsonl | clicat ingest --input - --format jsonl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, ingestFormat)
	},
}

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Apply curated profiles (shorthand for ingest --format curated)",
	Long: `Curate applies authoritative YAML profiles. Curated values override scraped
ones, may set the verification status, and replace the command list: commands
missing from a curated profile are soft-deleted and any workflow chain passed
with --chains is checked for references to them.`,
	Example: `  clicat curate --input curated/gh.yaml
  clicat curate --input curated/gh.yaml --dry-run --chains chains.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, "curated")
	},
}

func init() {
	for _, c := range []*cobra.Command{ingestCmd, curateCmd} {
		c.Flags().StringVarP(&ingestInput, "input", "i", "", "input file, or - for stdin (required)")
		c.Flags().BoolVar(&ingestDryRun, "dry-run", false, "compute changes without writing")
		c.Flags().StringSliceVar(&ingestOnly, "only", nil, "restrict the run to these slugs")
		c.Flags().StringVar(&ingestChains, "chains", "", "workflow chain file to check after the run")
		c.Flags().IntVar(&ingestWorkers, "workers", 0, "parallel workers (default: config workers or CPU count)")
		c.MarkFlagRequired("input")
		rootCmd.AddCommand(c)
	}
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "", "input format: "+strings.Join(source.Names(), ", "))
}

func runIngest(cmd *cobra.Command, format string) error {
	items, err := readItems(ingestInput, format)
	if err != nil {
		return &ExitError{Code: ExitStructural, Err: err}
	}
	var chains []model.WorkflowChain
	if ingestChains != "" {
		chains, err = readChains(ingestChains)
		if err != nil {
			return &ExitError{Code: ExitStructural, Err: err}
		}
	}
	ok, bad := source.Counts(items)
	logger.Info("input loaded", "path", ingestInput, "format", format, "items", ok, "malformed", bad)

	s, err := openStore()
	if err != nil {
		return &ExitError{Code: ExitStructural, Err: err}
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(background(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers := ingestWorkers
	if workers == 0 {
		workers = cfg.Workers
	}
	only := make(map[string]bool, len(ingestOnly))
	for _, slug := range ingestOnly {
		if slug = strings.TrimSpace(slug); slug != "" {
			only[slug] = true
		}
	}

	runner := pipeline.New(s, score.New(s, logger), logger)
	rep, err := runner.Run(ctx, items, pipeline.Options{
		Workers: workers,
		DryRun:  ingestDryRun,
		Only:    only,
		Chains:  chains,
	})
	if err != nil {
		return &ExitError{Code: ExitStructural, Err: fmt.Errorf("ingest: %w", err)}
	}

	if err := printReport(cmd.OutOrStdout(), rep); err != nil {
		return err
	}
	if rep.Partial() {
		return &ExitError{Code: ExitPartial, Err: fmt.Errorf("ingest finished with problems: %s", rep.Summary())}
	}
	return nil
}

// readItems decodes path (or stdin for "-") with the named format, detecting
// it from the extension when empty.
func readItems(path, format string) ([]source.Item, error) {
	if format == "" {
		if path == "-" {
			return nil, fmt.Errorf("--format is required when reading stdin")
		}
		f, err := source.Detect(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	src := source.Get(format)
	if src == nil {
		return nil, fmt.Errorf("unknown format %q (available: %s)", format, strings.Join(source.Names(), ", "))
	}
	r, closeFn, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	items, err := src.Read(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return items, nil
}

func readChains(path string) ([]model.WorkflowChain, error) {
	r, closeFn, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	chains, err := chain.Load(r)
	if err != nil {
		return nil, fmt.Errorf("read chains %s: %w", path, err)
	}
	return chains, nil
}

func openInput(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, f.Close, nil
}

func printReport(w io.Writer, rep *pipeline.Report) error {
	if jsonOutput {
		return writeJSON(w, rep)
	}
	if len(rep.Changes) > 0 {
		tbl := NewTable(w, "SLUG", "VERSION", "CHANGES")
		for _, c := range rep.Changes {
			tbl.Row(c.Slug, "v"+strconv.Itoa(c.Version), truncate(c.Changelog, 60))
		}
		if err := tbl.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
		if rep.DryRun {
			for _, c := range rep.Changes {
				fmt.Fprintf(w, "%s v%d:\n", c.Slug, c.Version)
				for _, fc := range c.Changes {
					fmt.Fprintf(w, "  %s: %s -> %s\n", fc.Field, orNone(fc.Before), orNone(fc.After))
				}
			}
			fmt.Fprintln(w)
		}
	}
	for _, q := range rep.Queued {
		target := q.Slug
		if target == "" {
			target = q.Candidate
		}
		fmt.Fprintf(w, "queued %-20s %s: %s\n", q.Kind, target, q.Reason)
	}
	for _, r := range rep.Rejected {
		fmt.Fprintf(w, "rejected #%d %s\n", r.Pos, r.Error)
	}
	for _, f := range rep.Failed {
		fmt.Fprintf(w, "failed %s: %s\n", f.Slug, f.Error)
	}
	for _, b := range rep.Broken {
		fmt.Fprintf(w, "broken chain %s\n", b)
	}
	fmt.Fprintln(w, rep.Summary())
	return nil
}

// background is used by commands that do not need signal handling.
func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
