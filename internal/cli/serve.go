package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scbrown/clicat/internal/score"
	"github.com/scbrown/clicat/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server exposing the catalog",
	Long: `Start an HTTP server that wraps the local SQLite catalog. Read endpoints
live under /api/v1/ (profiles, binaries, versions, diffs, compatibility,
commands and the curation queue); POST /api/v1/verifications accepts one
verification result or an array of them. A health check is available at
/api/v1/health.

Use clicat config to set store_mode=remote and remote_url to point other
clicat instances at this server instead of a local database.`,
	Example: `  clicat serve
  clicat serve --addr localhost:9090 --db /srv/clicat/catalog.db`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		addr := serveAddr
		if !cmd.Flags().Changed("addr") {
			addr = cfg.Listen()
		}
		srv := server.New(s, score.New(s, logger), logger).WithStaleness(cfg.Staleness())

		// Listen first so we can report the actual address.
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		logger.Info("serving catalog", "addr", ln.Addr().String(), "db", dbPath)

		ctx, stop := signal.NotifyContext(background(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Serve(ln)
		}()

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "address to listen on (default: listen_addr or :7274)")
	rootCmd.AddCommand(serveCmd)
}
