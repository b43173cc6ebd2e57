package main

import (
	"os"

	"github.com/pterm/pterm"

	"droste-effect/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(cli.GetExitCode(err))
	}
}
