// Command pbd teaches a dual-arm robot actions by demonstration.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/opencode-ai/pbd/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		var preflight *cli.PreflightError
		if errors.As(err, &preflight) {
			fmt.Fprintln(os.Stderr, preflight.Error())
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
