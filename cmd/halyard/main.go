// Halyard - session and transfer tool for remote storage backends
package main

import (
	"os"

	"github.com/halyard-dev/halyard/internal/cli"
)

// Version information, overridden at build time via -ldflags.
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

func main() {
	cli.Version = Version
	cli.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
