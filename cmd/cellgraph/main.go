// Command cellgraph builds and evaluates reactive cell graphs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cellgraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
