// Command actionflow validates pipeline settings and manages dead letters.
package main

import (
	"fmt"
	"os"

	"github.com/randalmurphal/actionflow/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
