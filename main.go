// eightd - 8D audio converter with a browser UI and a headless CLI.
//
// - No args → serve the browser UI
// - Subcommands/flags → CLI
package main

import (
	"os"

	"github.com/eightd/eightd/internal/cli"
)

func main() {
	if len(os.Args) == 1 {
		// Launching without arguments opens the UI, matching a double-click start
		os.Args = append(os.Args, "serve")
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
