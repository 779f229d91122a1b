package cli

import (
	"fmt"

	"github.com/scbrown/clicat/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Show or modify configuration",
	Long: `View or change clicat configuration stored in ~/.clicat/config.toml.

With no arguments, shows all configuration settings.
With one argument, shows the value of that key.
With two arguments, sets the key to the given value ("" unsets it).

Settings:
  db_path         Path to the SQLite catalog
  default_format  Default output format: "table" or "json"
  log_level       debug, info, warn or error
  workers         Parallel ingestion workers (default: CPU count)
  stale_after     Age after which compatibility shows as unknown (e.g. 30d)
  listen_addr     Address for clicat serve (default :7274)
  store_mode      "local" or "remote"
  remote_url      Base URL of a clicat serve instance`,
	Example: `  clicat config
  clicat config workers 8
  clicat config stale_after 14d
  clicat config store_mode remote
  clicat config remote_url http://catalog.internal:7274`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadFrom(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			return showConfig(cmd, c)
		case 1:
			val, err := c.Get(args[0])
			if err != nil {
				return err
			}
			if val != "" {
				fmt.Fprintln(cmd.OutOrStdout(), val)
			}
			return nil
		default:
			if err := c.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := c.SaveTo(configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func showConfig(cmd *cobra.Command, c *config.Config) error {
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), c)
	}
	tbl := NewTable(cmd.OutOrStdout(), "KEY", "VALUE")
	for _, key := range config.ValidKeys() {
		val, _ := c.Get(key)
		if val == "" {
			val = "(not set)"
		}
		tbl.Row(key, val)
	}
	return tbl.Flush()
}
