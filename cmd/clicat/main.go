package main

import (
	"fmt"
	"os"

	"github.com/scbrown/clicat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "clicat:", err)
		os.Exit(cli.ExitCode(err))
	}
}
