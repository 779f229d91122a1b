// Package cli defines the cobra command tree for the clicat CLI.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/scbrown/clicat/internal/config"
	"github.com/scbrown/clicat/internal/store"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitPartial    = 1
	ExitStructural = 2
)

// ExitError carries a process exit code. Partial ingestion results are
// reported through it after the summary has been printed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitPartial
}

var (
	dbPath     string
	jsonOutput bool
	logLevel   string

	// cfg is loaded before every command runs.
	cfg    = &config.Config{}
	logger = slog.New(slog.DiscardHandler)
)

// configPath is the path to the config file, settable for testing.
var configPath = config.Path()

// rootCmd is the top-level clicat command.
var rootCmd = &cobra.Command{
	Use:   "clicat",
	Short: "clicat - a versioned catalog of command-line tools",
	Long: `clicat ingests scraped package-registry records and curated profiles into
a catalog of CLI tools. Each tool gets a stable slug, a versioned history of
field-level changes, popularity and trust scores, and per-agent compatibility
records built from verification results.

Data is stored in a SQLite database at ~/.clicat/catalog.db (configurable via
--db flag or clicat config db_path). Read commands support --json and can be
pointed at a shared "clicat serve" instance with store_mode=remote.`,
	Example: `  # Ingest a crawler dump, then inspect the result
  clicat ingest --input npm-scrape.jsonl
  clicat binary tsx
  clicat history tsx

  # Apply curated profiles and review what is waiting on a human
  clicat curate --input curated/gh.yaml
  clicat pending

  # Feed verification results from the harness
  harness run | clicat verify --input -`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadFrom(configPath)
		if err != nil {
			return &ExitError{Code: ExitStructural, Err: err}
		}
		cfg = loaded
		if cfg.DBPath != "" && !cmd.Flags().Changed("db") {
			dbPath = cfg.DBPath
		}
		if cfg.DefaultFormat == "json" && !cmd.Flags().Changed("json") {
			jsonOutput = true
		}
		level := logLevel
		if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
			level = cfg.LogLevel
		}
		l, err := newLogger(cmd.ErrOrStderr(), level)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "path to SQLite database")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})), nil
}

// openStore opens the local SQLite catalog for commands that write.
func openStore() (*store.SQLiteStore, error) {
	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// openReader returns the catalog for read commands. When store_mode is
// "remote", it returns a RemoteStore pointing at remote_url.
func openReader() (store.Reader, func() error, error) {
	if cfg.StoreMode == "remote" {
		if cfg.RemoteURL == "" {
			return nil, nil, fmt.Errorf("store_mode is \"remote\" but remote_url is not set; use: clicat config remote_url <url>")
		}
		rs := store.NewRemote(cfg.RemoteURL)
		return rs, rs.Close, nil
	}
	s, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// stdin is replaced in tests.
var stdin io.Reader = os.Stdin
