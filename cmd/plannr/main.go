// Package main provides the entry point for the plannr CLI.
package main

import (
	"os"

	"github.com/randalmurphal/plannr/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
