package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/wemix/blockwait/internal/cli"
)

// Exit codes. Timed out waits get their own code so scripts can tell a
// slow chain from a broken one.
const (
	exitFailure  = 1
	exitTimedOut = 2
)

func main() {
	root := cli.NewRootCommand()

	if err := root.Execute(); err != nil {
		switch {
		case errors.Is(err, cli.ErrWaitTimedOut):
			os.Exit(exitTimedOut)
		case errors.Is(err, cli.ErrWaitFailed):
			// Outcome details were already rendered by the command.
			os.Exit(exitFailure)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitFailure)
		}
	}
}
