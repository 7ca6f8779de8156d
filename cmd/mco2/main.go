// Command mco2 runs the replicated movie catalogue service and its
// maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
