// Command abeflag runs manifest-driven module passes over a scenario
// document and records an audit receipt of what they computed.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/abeflag/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// ExitErrors were already reported through the output formatter.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
