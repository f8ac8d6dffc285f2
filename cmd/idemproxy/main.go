// Command idemproxy inspects and drives the idempotent object-lifecycle
// bookkeeping of a switch state proxy.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/idemproxy/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
