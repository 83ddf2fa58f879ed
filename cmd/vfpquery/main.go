// Command vfpquery translates query documents into dialect SQL and runs
// them against a database.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/vfpquery/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands print their own errors; cobra's flag errors are not.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
