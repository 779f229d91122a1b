package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/score"
	"github.com/scbrown/clicat/internal/source"
	"github.com/scbrown/clicat/internal/store"
	"github.com/spf13/cobra"
)

var (
	verifyInput string
	verifyBatch int
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Fold verification results into compatibility records",
	Long: `Verify consumes verification results from the agent test harness, one JSON
object per line:

  {"slug":"gh","agent":"codex","command_id":"pr-list","success":true,"timestamp":"..."}

Each result updates the (slug, agent) compatibility record: an exponentially
weighted success rate, a sample count and a derived status (verified,
partial or broken). Input is read until EOF, so the harness can stream into
"clicat verify --input -" for as long as it runs.

With store_mode=remote the results are posted to the remote server in
batches instead of being applied locally.`,
	Example: `  clicat verify --input results.jsonl
  harness run --all | clicat verify --input -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openInput(verifyInput)
		if err != nil {
			return &ExitError{Code: ExitStructural, Err: err}
		}
		defer closeFn()

		ctx, stop := signal.NotifyContext(background(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var (
			apply  func(model.VerificationResult) error
			flush  = func() error { return nil }
			closer func() error
		)
		if cfg.Remote() {
			rs := store.NewRemote(cfg.RemoteURL)
			var batch []model.VerificationResult
			flush = func() error {
				if len(batch) == 0 {
					return nil
				}
				err := rs.SubmitVerifications(ctx, batch)
				batch = batch[:0]
				return err
			}
			apply = func(res model.VerificationResult) error {
				batch = append(batch, res)
				if len(batch) >= verifyBatch {
					return flush()
				}
				return nil
			}
			closer = rs.Close
		} else {
			s, err := openStore()
			if err != nil {
				return &ExitError{Code: ExitStructural, Err: err}
			}
			sc := score.New(s, logger)
			apply = func(res model.VerificationResult) error {
				rec, err := sc.Record(ctx, res)
				if err == nil {
					logger.Debug("verification recorded", "slug", rec.Slug, "agent", rec.Agent,
						"rate", rec.SuccessRate, "status", string(rec.Status))
				}
				return err
			}
			closer = s.Close
		}
		defer closer()

		failed := 0
		n, err := source.StreamVerifications(ctx, r, apply, func(n int, err error) {
			failed++
			logger.Warn("verification result refused", "line", n, "error", err)
		})
		if ferr := flush(); ferr != nil {
			return &ExitError{Code: ExitPartial, Err: fmt.Errorf("submit verifications: %w", ferr)}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d results read, %d applied, %d refused\n", n, n-failed, failed)
		if err != nil {
			code := ExitPartial
			if n == 0 {
				code = ExitStructural
			}
			return &ExitError{Code: code, Err: err}
		}
		if failed > 0 {
			return &ExitError{Code: ExitPartial, Err: fmt.Errorf("%d verification results refused", failed)}
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyInput, "input", "i", "-", "results file, or - for stdin")
	verifyCmd.Flags().IntVar(&verifyBatch, "batch", 100, "results per request in remote mode")
	rootCmd.AddCommand(verifyCmd)
}
