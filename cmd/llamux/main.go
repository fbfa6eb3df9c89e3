// Command llamux is the CLI entry point: it loads a gguf model and either
// runs a single prompt to completion (run) or starts the worker loop behind
// the procfs facade, driven from stdin (serve). Command wiring follows the
// a small root command with two subcommands rather than a full
// model-management surface.
package main

import (
	"fmt"
	"os"

	"github.com/BurgessTheGamer/Llamux/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
